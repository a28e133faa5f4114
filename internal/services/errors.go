package services

import "errors"

var (
	// ErrValidation wraps malformed input rejected before it reaches storage.
	ErrValidation = errors.New("invalid input")

	// ErrConflict reports a duplicate username or email.
	ErrConflict = errors.New("already exists")

	// ErrInvalidCredentials is the single login failure, whatever the cause.
	ErrInvalidCredentials = errors.New("incorrect email or password")

	ErrNotFound = errors.New("not found")

	// ErrForbidden means the caller is authenticated but does not own the record.
	ErrForbidden = errors.New("forbidden")
)
