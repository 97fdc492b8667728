package model

import "errors"

// Common errors used across the application
var (
	// Roster errors
	ErrDuplicateClient = errors.New("client already has a record")
	ErrClientNotFound  = errors.New("client not found")

	// Admission errors
	ErrAdmissionRejected = errors.New("connection rejected")

	// Identity errors
	ErrIdentityNotFound = errors.New("identity not found")
	ErrNotAuthenticated = errors.New("not signed in")

	// Directory errors
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionFull        = errors.New("session is full")
	ErrNoSessionAvailable = errors.New("no session available")
	ErrNotHost            = errors.New("identity is not the host")
	ErrAlreadyMember      = errors.New("identity is already a member")
	ErrNotMember          = errors.New("identity is not a member")

	// Lobby client errors
	ErrAlreadyInSession = errors.New("already hosting or joined")
	ErrNotInSession     = errors.New("not hosting or joined")
)
