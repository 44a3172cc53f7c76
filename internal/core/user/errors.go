package user

import "errors"

var (
	ErrInvalidID    = errors.New("user: invalid id")
	ErrUserNotFound = errors.New("user: not found")
)
