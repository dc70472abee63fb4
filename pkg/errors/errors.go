package errors

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountNotFound    = errors.New("account not found")
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("incorrect inputs")
	ErrInvalidToken       = errors.New("invalid token")
	ErrMissingSecret      = errors.New("jwt secret is not configured")
	ErrNilUser            = errors.New("user is nil")
	ErrNilAccount         = errors.New("account is nil")
	ErrInternal           = errors.New("internal error")
)
