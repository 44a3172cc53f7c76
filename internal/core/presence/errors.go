package presence

import "errors"

var (
	ErrInvalidID         = errors.New("presence: invalid id")
	ErrInvalidEmployeeID = errors.New("presence: invalid employee id")
	ErrInvalidStatus     = errors.New("presence: invalid status")
	ErrInvalidPageSize   = errors.New("presence: invalid page size")
	ErrInvalidPageToken  = errors.New("presence: invalid page token")
	ErrInvalidDateRange  = errors.New("presence: invalid date range")
	ErrInvalidTimeOrder  = errors.New("presence: departure must be after arrival")
	ErrStatusMismatch    = errors.New("presence: status does not match recorded times")
	ErrAlreadyRecorded   = errors.New("presence: already recorded")
	ErrArrivalMissing    = errors.New("presence: arrival must be recorded first")
	ErrDuplicatePresence = errors.New("presence: already exists for employee and date")
	ErrPresenceNotFound  = errors.New("presence: not found")
	ErrEmployeeNotFound  = errors.New("presence: employee not found")
)
