package types

import "errors"

// Shared error values matched across the store, presence, and API layers.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrSessionExists       = errors.New("session already exists")

	ErrInvalidSessionID   = errors.New("session id must be 1-64 characters, alphanumeric + underscore/hyphen")
	ErrInvalidUserID      = errors.New("user id must be 1-64 characters, alphanumeric + underscore/hyphen")
	ErrInvalidUserName    = errors.New("display name must be 1-50 characters")
	ErrInvalidPosition    = errors.New("position coordinates must be finite and within world bounds")
	ErrInvalidMessageText = errors.New("message text must be 1-2000 characters")
	ErrInvalidLocation    = errors.New("location requires a country and valid coordinates")
	ErrInvalidPhaseLength = errors.New("focus and break lengths must be positive minutes")
)
