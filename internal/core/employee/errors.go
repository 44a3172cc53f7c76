package employee

import "errors"

var (
	ErrInvalidID             = errors.New("employee: invalid id")
	ErrInvalidUserID         = errors.New("employee: invalid user id")
	ErrInvalidName           = errors.New("employee: invalid name")
	ErrInvalidPosition       = errors.New("employee: invalid position")
	ErrInvalidEmail          = errors.New("employee: invalid email")
	ErrInvalidPhone          = errors.New("employee: invalid phone")
	ErrInvalidPageSize       = errors.New("employee: invalid page size")
	ErrInvalidPageToken      = errors.New("employee: invalid page token")
	ErrEmployeeNotFound      = errors.New("employee: not found")
	ErrUserNotFound          = errors.New("employee: user not found")
	ErrEmployeeAlreadyExists = errors.New("employee: user already has an employee record")
)
