package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/lobbynet/internal/dependencies/clock"
	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
// Session expiry is checked lazily against the injected clock.
type Storage struct {
	mu    sync.RWMutex
	clock clock.Clock

	identities           map[model.IdentityID]*model.Identity
	registeredIdentities map[model.IdentityID]*model.RegisteredIdentity
	usernameIndex        map[string]model.IdentityID
	sessions             map[model.SessionID]*sessionEntry
	codeIndex            map[model.JoinCode]model.SessionID
}

type sessionEntry struct {
	session   *model.LobbySession
	expiresAt time.Time // zero means no expiry
}

func (e *sessionEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// New creates a new in-memory storage instance
func New(clk clock.Clock) *Storage {
	return &Storage{
		clock:                clk,
		identities:           make(map[model.IdentityID]*model.Identity),
		registeredIdentities: make(map[model.IdentityID]*model.RegisteredIdentity),
		usernameIndex:        make(map[string]model.IdentityID),
		sessions:             make(map[model.SessionID]*sessionEntry),
		codeIndex:            make(map[model.JoinCode]model.SessionID),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Identity operations

func (s *Storage) SaveIdentity(ctx context.Context, identity *model.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *identity
	s.identities[identity.ID] = &c
	return nil
}

func (s *Storage) GetIdentity(ctx context.Context, id model.IdentityID) (*model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[id]
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	c := *identity
	return &c, nil
}

func (s *Storage) DeleteIdentity(ctx context.Context, id model.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.identities, id)
	return nil
}

// Registered identity operations

func (s *Storage) SaveRegisteredIdentity(ctx context.Context, ri *model.RegisteredIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *ri
	s.registeredIdentities[ri.IdentityID] = &c
	s.usernameIndex[ri.Username] = ri.IdentityID
	return nil
}

func (s *Storage) GetRegisteredIdentity(ctx context.Context, id model.IdentityID) (*model.RegisteredIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ri, ok := s.registeredIdentities[id]
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	c := *ri
	return &c, nil
}

func (s *Storage) GetRegisteredIdentityByUsername(ctx context.Context, username string) (*model.RegisteredIdentity, error) {
	s.mu.RLock()
	id, ok := s.usernameIndex[username]
	s.mu.RUnlock()
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	return s.GetRegisteredIdentity(ctx, id)
}

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.LobbySession, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &sessionEntry{session: session.Clone()}
	if ttl > 0 {
		entry.expiresAt = s.clock.Now().Add(ttl)
	}
	if old, ok := s.sessions[session.ID]; ok && old.session.JoinCode != session.JoinCode {
		delete(s.codeIndex, old.session.JoinCode)
	}
	s.sessions[session.ID] = entry
	s.codeIndex[session.JoinCode] = session.ID
	return nil
}

// liveLocked returns the entry for id, evicting it if it has expired
func (s *Storage) liveLocked(id model.SessionID) (*sessionEntry, bool) {
	entry, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if entry.expired(s.clock.Now()) {
		s.deleteLocked(id)
		return nil, false
	}
	return entry, true
}

func (s *Storage) deleteLocked(id model.SessionID) {
	if entry, ok := s.sessions[id]; ok {
		delete(s.codeIndex, entry.session.JoinCode)
		delete(s.sessions, id)
	}
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.LobbySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.liveLocked(id)
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return entry.session.Clone(), nil
}

func (s *Storage) GetSessionByCode(ctx context.Context, code model.JoinCode) (*model.LobbySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.codeIndex[code]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	entry, ok := s.liveLocked(id)
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return entry.session.Clone(), nil
}

func (s *Storage) DeleteSession(ctx context.Context, id model.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(id)
	return nil
}

func (s *Storage) ListSessions(ctx context.Context) ([]*model.LobbySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	result := make([]*model.LobbySession, 0, len(s.sessions))
	for id, entry := range s.sessions {
		if entry.expired(now) {
			s.deleteLocked(id)
			continue
		}
		result = append(result, entry.session.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *Storage) SessionCodeExists(ctx context.Context, code model.JoinCode) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.codeIndex[code]
	if !ok {
		return false, nil
	}
	_, live := s.liveLocked(id)
	return live, nil
}
