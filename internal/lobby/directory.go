package lobby

import (
	"context"

	"github.com/mcoot/lobbynet/internal/model"
)

// CreateRequest describes a session to publish in the directory
type CreateRequest struct {
	Name      string
	Capacity  int
	IsPrivate bool
	HostAddr  string
}

// Directory is the external session directory
// Every call acts as the identity the implementation was signed in with.
type Directory interface {
	Create(ctx context.Context, req CreateRequest) (*model.LobbySession, error)
	Query(ctx context.Context, filter model.SessionFilter) ([]model.LobbySession, error)
	JoinByCode(ctx context.Context, code model.JoinCode) (*model.LobbySession, error)
	JoinByID(ctx context.Context, id model.SessionID) (*model.LobbySession, error)
	QuickJoin(ctx context.Context) (*model.LobbySession, error)
	Heartbeat(ctx context.Context, id model.SessionID) error
	Delete(ctx context.Context, id model.SessionID) error
	RemoveMember(ctx context.Context, id model.SessionID, identity model.IdentityID) error
}

// Network starts and stops the session transport once the directory has agreed
type Network interface {
	// StartHost begins accepting connections as the session authority
	StartHost(session *model.LobbySession) error
	// Connect dials the session's host; it runs off the tick loop and must honour ctx
	Connect(ctx context.Context, session *model.LobbySession) error
	// Stop tears down whichever side is running
	Stop()
}
