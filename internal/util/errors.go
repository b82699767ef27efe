package util

import "errors"

var (
	ErrValidation             = errors.New("validation failed")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrIdentityMismatch       = errors.New("caller identity does not match user")
	ErrAttemptNotFound        = errors.New("attempt not found")
	ErrAttemptFinalized       = errors.New("attempt already finalized")
	ErrNotFinalizable         = errors.New("attempt is missing or already finalized")
	ErrConcurrentFinalization = errors.New("finalization already in progress")
	ErrResourceNotFound       = errors.New("resource not found")
	ErrReadTimeNotFound       = errors.New("no read time recorded for resource")
	ErrGradebookWrite         = errors.New("gradebook write failed")
)
