package model

import "time"

// IdentityID uniquely identifies an authenticated player across the directory
type IdentityID string

// Identity represents a signed-in player as seen by the directory
type Identity struct {
	ID          IdentityID
	DisplayName string
	IsAnonymous bool // true for anonymous sign-ins
	CreatedAt   time.Time
}

// RegisteredIdentity extends Identity with authentication data
// Stored separately so the password hash never travels with a session
type RegisteredIdentity struct {
	IdentityID   IdentityID
	Username     string // login username (immutable)
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
