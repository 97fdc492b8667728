package directory

import (
	"context"

	"github.com/mcoot/lobbynet/internal/lobby"
	"github.com/mcoot/lobbynet/internal/model"
)

// Local calls a Service in-process as a fixed identity
type Local struct {
	service  *Service
	identity model.Identity
}

// Ensure Local implements lobby.Directory
var _ lobby.Directory = (*Local)(nil)

// NewLocal binds identity to service
func NewLocal(service *Service, identity model.Identity) *Local {
	return &Local{service: service, identity: identity}
}

func (l *Local) Create(ctx context.Context, req lobby.CreateRequest) (*model.LobbySession, error) {
	return l.service.Create(ctx, l.identity, CreateParams{
		Name:      req.Name,
		Capacity:  req.Capacity,
		IsPrivate: req.IsPrivate,
		HostAddr:  req.HostAddr,
	})
}

func (l *Local) Query(ctx context.Context, filter model.SessionFilter) ([]model.LobbySession, error) {
	return l.service.Query(ctx, filter)
}

func (l *Local) JoinByCode(ctx context.Context, code model.JoinCode) (*model.LobbySession, error) {
	return l.service.JoinByCode(ctx, l.identity, code)
}

func (l *Local) JoinByID(ctx context.Context, id model.SessionID) (*model.LobbySession, error) {
	return l.service.JoinByID(ctx, l.identity, id)
}

func (l *Local) QuickJoin(ctx context.Context) (*model.LobbySession, error) {
	return l.service.QuickJoin(ctx, l.identity)
}

func (l *Local) Heartbeat(ctx context.Context, id model.SessionID) error {
	_, err := l.service.Heartbeat(ctx, l.identity, id)
	return err
}

func (l *Local) Delete(ctx context.Context, id model.SessionID) error {
	return l.service.Delete(ctx, l.identity, id)
}

func (l *Local) RemoveMember(ctx context.Context, id model.SessionID, identity model.IdentityID) error {
	return l.service.RemoveMember(ctx, l.identity, id, identity)
}
