package types

import "errors"

// Matching and registry errors shared across the core components
var (
	ErrInvalidRegistration = errors.New("invalid registration")
	ErrAlreadyRegistered   = errors.New("connection is already registered")
	ErrDuplicateConnection = errors.New("duplicate connection id")
	ErrUnknownConnection   = errors.New("unknown connection")
)

// Validation reasons, always wrapped in ErrInvalidRegistration
var (
	ErrMissingUserID    = errors.New("userId is required")
	ErrUserIDTooLong    = errors.New("userId must be at most 50 characters")
	ErrNoInterests      = errors.New("at least one interest is required")
	ErrTooManyInterests = errors.New("too many interests")
	ErrInterestTooLong  = errors.New("interest must be at most 64 characters")
)
