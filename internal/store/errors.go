package store

import "errors"

var (
	ErrValidation       = errors.New("validation failed")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidState     = errors.New("invalid state")
	ErrNotFound         = errors.New("not found")
	ErrDuplicateRequest = errors.New("duplicate pending request")
	ErrAlreadyVoted     = errors.New("already voted")
	ErrNotEligible      = errors.New("voter not eligible")
	ErrSessionNotFound  = errors.New("session not found")
	ErrBadCredentials   = errors.New("invalid credentials")
)
