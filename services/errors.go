package services

import "errors"

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidState      = errors.New("invalid state")
	ErrNotFound          = errors.New("not found")
	ErrCycleDetected     = errors.New("payment config source cycle detected")
	ErrProviderAuth      = errors.New("payment provider rejected credentials")
	ErrProviderRejected  = errors.New("payment provider rejected request")
	ErrProviderFailure   = errors.New("payment provider unavailable")
	ErrPendingExists     = errors.New("pending waiter call already exists")
)
