package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrValidation     = errors.New("validation failed")
	ErrMarketInactive = errors.New("market is not active")
	ErrInvalidOutcome = errors.New("invalid outcome")
	ErrAlreadySettled = errors.New("bet already settled")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrLockHeld       = errors.New("lock already held")
	ErrUnavailable    = errors.New("upstream unavailable")
)
