package report

import "errors"

var (
	ErrInvalidID        = errors.New("report: invalid id")
	ErrInvalidType      = errors.New("report: invalid type")
	ErrInvalidDateRange = errors.New("report: end date must not be before start date")
	ErrInvalidContent   = errors.New("report: invalid content")
	ErrInvalidPageSize  = errors.New("report: invalid page size")
	ErrInvalidPageToken = errors.New("report: invalid page token")
	ErrReportNotFound   = errors.New("report: not found")
	ErrEmployeeNotFound = errors.New("report: employee not found")
)
