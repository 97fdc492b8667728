// Package directory implements the lobby directory: discoverable, heartbeating session records.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/lobbynet/internal/admission"
	"github.com/mcoot/lobbynet/internal/dependencies/clock"
	"github.com/mcoot/lobbynet/internal/dependencies/random"
	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/storage"
)

const (
	// JoinCodeLength is the length of generated join codes
	JoinCodeLength = 6
	// JoinCodeAlphabet is the characters used in join codes (avoid confusing chars)
	JoinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// DefaultSessionTTL is how long a session survives without a heartbeat
	DefaultSessionTTL = 30 * time.Second
	// DefaultMaxCapacity bounds the capacity a host may ask for
	DefaultMaxCapacity = 16

	maxCodeAttempts  = 10
	maxNameLength    = 64
	defaultLobbyName = "Lobby"
)

var (
	ErrInvalidCapacity = errors.New("invalid capacity")
	ErrInvalidName     = errors.New("lobby name too long")
	ErrCodeExhausted   = errors.New("could not generate a unique join code")
)

// Config holds configuration for the directory service
type Config struct {
	SessionTTL  time.Duration
	MaxCapacity int
}

// DefaultConfig returns default directory configuration
func DefaultConfig() Config {
	return Config{
		SessionTTL:  DefaultSessionTTL,
		MaxCapacity: DefaultMaxCapacity,
	}
}

// CreateParams describes a session to create
type CreateParams struct {
	Name      string
	Capacity  int
	IsPrivate bool
	HostAddr  string
}

// Service manages directory sessions
// Read-modify-write sequences are serialized by a single mutex.
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
	cfg     Config

	mu sync.Mutex
}

// New creates a new directory Service
func New(storage storage.Storage, clock clock.Clock, random random.Random, cfg Config, logger *slog.Logger) *Service {
	defaults := DefaultConfig()
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaults.SessionTTL
	}
	if cfg.MaxCapacity <= 0 {
		cfg.MaxCapacity = defaults.MaxCapacity
	}
	return &Service{
		storage: storage,
		clock:   clock,
		random:  random,
		logger:  logger.With(slog.String("component", "directory")),
		cfg:     cfg,
	}
}

// SessionTTL returns the configured expiry window
func (s *Service) SessionTTL() time.Duration {
	return s.cfg.SessionTTL
}

// Create publishes a new session with host as its first member
func (s *Service) Create(ctx context.Context, host model.Identity, params CreateParams) (*model.LobbySession, error) {
	if params.Capacity == 0 {
		params.Capacity = admission.DefaultCapacity
	}
	if params.Capacity < 1 || params.Capacity > s.cfg.MaxCapacity {
		return nil, fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidCapacity, params.Capacity, s.cfg.MaxCapacity)
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		name = defaultLobbyName
	}
	if len(name) > maxNameLength {
		return nil, ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.generateCode(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session := &model.LobbySession{
		ID:            model.SessionID(s.random.UUID()),
		JoinCode:      code,
		HostIdentity:  host.ID,
		Name:          name,
		Capacity:      params.Capacity,
		IsPrivate:     params.IsPrivate,
		HostAddr:      params.HostAddr,
		Members:       []model.SessionMember{{Identity: host.ID, JoinedAt: now}},
		CreatedAt:     now,
		LastHeartbeat: now,
	}

	if err := s.storage.SaveSession(ctx, session, s.cfg.SessionTTL); err != nil {
		return nil, err
	}

	s.logger.Info("session created",
		slog.String("session_id", string(session.ID)),
		slog.String("join_code", string(code)),
		slog.String("host", string(host.ID)),
		slog.Bool("private", params.IsPrivate))
	return session, nil
}

func (s *Service) generateCode(ctx context.Context) (model.JoinCode, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := model.JoinCode(s.random.String(JoinCodeLength, JoinCodeAlphabet))
		if code == "" {
			continue
		}
		exists, err := s.storage.SessionCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

// remainingTTL keeps a session's expiry anchored to its last heartbeat
func (s *Service) remainingTTL(session *model.LobbySession) time.Duration {
	remaining := session.LastHeartbeat.Add(s.cfg.SessionTTL).Sub(s.clock.Now())
	if remaining < time.Millisecond {
		return time.Millisecond
	}
	return remaining
}

func (s *Service) expired(session *model.LobbySession) bool {
	return !s.clock.Now().Before(session.LastHeartbeat.Add(s.cfg.SessionTTL))
}

// live loads a session and treats an expired one as missing
func (s *Service) live(session *model.LobbySession, err error) (*model.LobbySession, error) {
	if err != nil {
		return nil, err
	}
	if s.expired(session) {
		return nil, model.ErrSessionNotFound
	}
	return session, nil
}

// Get returns a session by id, including private ones
func (s *Service) Get(ctx context.Context, id model.SessionID) (*model.LobbySession, error) {
	return s.live(s.storage.GetSession(ctx, id))
}

// Query returns public, live sessions that pass filter, oldest first
func (s *Service) Query(ctx context.Context, filter model.SessionFilter) ([]model.LobbySession, error) {
	sessions, err := s.storage.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]model.LobbySession, 0, len(sessions))
	for _, session := range sessions {
		if session.IsPrivate || s.expired(session) || !filter.Matches(session) {
			continue
		}
		result = append(result, *session)
	}
	return result, nil
}

// JoinByCode adds identity to the session with the given join code
func (s *Service) JoinByCode(ctx context.Context, identity model.Identity, code model.JoinCode) (*model.LobbySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.live(s.storage.GetSessionByCode(ctx, model.JoinCode(strings.ToUpper(string(code)))))
	if err != nil {
		return nil, err
	}
	return s.addMemberLocked(ctx, session, identity)
}

// JoinByID adds identity to the session with the given id
func (s *Service) JoinByID(ctx context.Context, identity model.Identity, id model.SessionID) (*model.LobbySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.live(s.storage.GetSession(ctx, id))
	if err != nil {
		return nil, err
	}
	return s.addMemberLocked(ctx, session, identity)
}

// QuickJoin adds identity to a random joinable public session
func (s *Service) QuickJoin(ctx context.Context, identity model.Identity) (*model.LobbySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates, err := s.Query(ctx, model.JoinableFilter())
	if err != nil {
		return nil, err
	}

	joinable := candidates[:0]
	for _, c := range candidates {
		if c.GetMember(identity.ID) == nil {
			joinable = append(joinable, c)
		}
	}
	if len(joinable) == 0 {
		return nil, model.ErrNoSessionAvailable
	}

	chosen := joinable[s.random.Intn(len(joinable))]
	return s.addMemberLocked(ctx, &chosen, identity)
}

func (s *Service) addMemberLocked(ctx context.Context, session *model.LobbySession, identity model.Identity) (*model.LobbySession, error) {
	if session.GetMember(identity.ID) != nil {
		return nil, model.ErrAlreadyMember
	}
	if session.AvailableSlots() == 0 {
		return nil, model.ErrSessionFull
	}

	session.Members = append(session.Members, model.SessionMember{
		Identity: identity.ID,
		JoinedAt: s.clock.Now(),
	})
	if err := s.storage.SaveSession(ctx, session, s.remainingTTL(session)); err != nil {
		return nil, err
	}

	s.logger.Info("member joined",
		slog.String("session_id", string(session.ID)),
		slog.String("identity", string(identity.ID)),
		slog.Int("members", len(session.Members)))
	return session, nil
}

// Heartbeat refreshes a session's liveness; host only
func (s *Service) Heartbeat(ctx context.Context, caller model.Identity, id model.SessionID) (*model.LobbySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.live(s.storage.GetSession(ctx, id))
	if err != nil {
		return nil, err
	}
	if !session.IsHost(caller.ID) {
		return nil, model.ErrNotHost
	}

	session.LastHeartbeat = s.clock.Now()
	if err := s.storage.SaveSession(ctx, session, s.cfg.SessionTTL); err != nil {
		return nil, err
	}

	s.logger.Debug("heartbeat", slog.String("session_id", string(id)))
	return session, nil
}

// Delete removes a session; host only
func (s *Service) Delete(ctx context.Context, caller model.Identity, id model.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(ctx, caller, id)
}

func (s *Service) deleteLocked(ctx context.Context, caller model.Identity, id model.SessionID) error {
	session, err := s.live(s.storage.GetSession(ctx, id))
	if err != nil {
		return err
	}
	if !session.IsHost(caller.ID) {
		return model.ErrNotHost
	}

	if err := s.storage.DeleteSession(ctx, id); err != nil {
		return err
	}

	s.logger.Info("session deleted", slog.String("session_id", string(id)))
	return nil
}

// RemoveMember removes target from a session
// The host may remove anyone; other members may only remove themselves.
// A host removing itself deletes the session.
func (s *Service) RemoveMember(ctx context.Context, caller model.Identity, id model.SessionID, target model.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.live(s.storage.GetSession(ctx, id))
	if err != nil {
		return err
	}
	if !session.IsHost(caller.ID) && caller.ID != target {
		return model.ErrNotHost
	}
	if session.IsHost(target) {
		return s.deleteLocked(ctx, caller, id)
	}

	members := session.Members[:0]
	found := false
	for _, m := range session.Members {
		if m.Identity == target {
			found = true
			continue
		}
		members = append(members, m)
	}
	if !found {
		return model.ErrNotMember
	}
	session.Members = members

	if err := s.storage.SaveSession(ctx, session, s.remainingTTL(session)); err != nil {
		return err
	}

	s.logger.Info("member removed",
		slog.String("session_id", string(id)),
		slog.String("identity", string(target)),
		slog.String("by", string(caller.ID)))
	return nil
}
