package storage

import (
	"context"
	"time"

	"github.com/mcoot/lobbynet/internal/model"
)

// Storage defines the interface for directory persistence
// Sessions carry a TTL; an expired session behaves exactly like a deleted one.
type Storage interface {
	// Identity operations
	SaveIdentity(ctx context.Context, identity *model.Identity) error
	GetIdentity(ctx context.Context, id model.IdentityID) (*model.Identity, error)
	DeleteIdentity(ctx context.Context, id model.IdentityID) error

	// Registered identity operations
	SaveRegisteredIdentity(ctx context.Context, ri *model.RegisteredIdentity) error
	GetRegisteredIdentity(ctx context.Context, id model.IdentityID) (*model.RegisteredIdentity, error)
	GetRegisteredIdentityByUsername(ctx context.Context, username string) (*model.RegisteredIdentity, error)

	// Session operations
	SaveSession(ctx context.Context, session *model.LobbySession, ttl time.Duration) error
	GetSession(ctx context.Context, id model.SessionID) (*model.LobbySession, error)
	GetSessionByCode(ctx context.Context, code model.JoinCode) (*model.LobbySession, error)
	DeleteSession(ctx context.Context, id model.SessionID) error
	ListSessions(ctx context.Context) ([]*model.LobbySession, error)
	SessionCodeExists(ctx context.Context, code model.JoinCode) (bool, error)
}
