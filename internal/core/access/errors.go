package access

import "errors"

var (
	ErrUnauthenticated    = errors.New("access: unauthenticated")
	ErrPermissionDenied   = errors.New("access: permission denied")
	ErrObjectAccessDenied = errors.New("access: object access denied")
)
