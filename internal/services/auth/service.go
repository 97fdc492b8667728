package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/lobbynet/internal/dependencies/clock"
	"github.com/mcoot/lobbynet/internal/dependencies/random"
	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidDisplayName = errors.New("display name must be 1-32 characters")
)

const (
	maxDisplayNameLength = 32
	tokenPrefix          = "tok_"
)

// Session is an authenticated bearer token bound to an identity
type Session struct {
	Token     string
	Identity  model.Identity
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Service handles sign-in and token validation for the directory
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	sessionDuration time.Duration
}

// Config holds configuration for the auth service
type Config struct {
	SessionDuration time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		SessionDuration: 24 * time.Hour,
	}
}

// New creates a new auth Service
func New(storage storage.Storage, clock clock.Clock, random random.Random, cfg Config, logger *slog.Logger) *Service {
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = DefaultConfig().SessionDuration
	}
	return &Service{
		storage:         storage,
		clock:           clock,
		random:          random,
		logger:          logger.With(slog.String("component", "auth")),
		sessions:        make(map[string]*Session),
		sessionDuration: cfg.SessionDuration,
	}
}

func validateDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxDisplayNameLength {
		return "", ErrInvalidDisplayName
	}
	return name, nil
}

// SignInAnonymously creates an anonymous identity and session
func (s *Service) SignInAnonymously(ctx context.Context, displayName string) (*Session, error) {
	name, err := validateDisplayName(displayName)
	if err != nil {
		return nil, err
	}

	identity := &model.Identity{
		ID:          model.IdentityID(s.random.UUID()),
		DisplayName: name,
		IsAnonymous: true,
		CreatedAt:   s.clock.Now(),
	}

	if err := s.storage.SaveIdentity(ctx, identity); err != nil {
		return nil, err
	}

	s.logger.Info("anonymous sign-in", slog.String("identity", string(identity.ID)))
	return s.createSession(identity), nil
}

// Register creates a username/password identity and session
func (s *Service) Register(ctx context.Context, username, password, displayName string) (*Session, error) {
	name, err := validateDisplayName(displayName)
	if err != nil {
		return nil, err
	}

	// Check if username exists
	_, err = s.storage.GetRegisteredIdentityByUsername(ctx, username)
	if err == nil {
		return nil, ErrUsernameExists
	}
	if !errors.Is(err, model.ErrIdentityNotFound) {
		return nil, err
	}

	// Hash password
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	identity := &model.Identity{
		ID:          model.IdentityID(s.random.UUID()),
		DisplayName: name,
		CreatedAt:   now,
	}
	registered := &model.RegisteredIdentity{
		IdentityID:   identity.ID,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveIdentity(ctx, identity); err != nil {
		return nil, err
	}
	if err := s.storage.SaveRegisteredIdentity(ctx, registered); err != nil {
		return nil, err
	}

	s.logger.Info("identity registered", slog.String("identity", string(identity.ID)))
	return s.createSession(identity), nil
}

// Login authenticates a registered identity and creates a session
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	registered, err := s.storage.GetRegisteredIdentityByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrIdentityNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(registered.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	identity, err := s.storage.GetIdentity(ctx, registered.IdentityID)
	if err != nil {
		return nil, err
	}

	return s.createSession(identity), nil
}

// ValidateSession checks if a session token is valid and returns the session
func (s *Service) ValidateSession(token string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidSession
	}

	if s.clock.Now().After(session.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return nil, ErrInvalidSession
	}

	return session, nil
}

// InvalidateSession removes a session
func (s *Service) InvalidateSession(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

func (s *Service) createSession(identity *model.Identity) *Session {
	token := s.random.Token(tokenPrefix)
	now := s.clock.Now()

	session := &Session{
		Token:     token,
		Identity:  *identity,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionDuration),
	}

	s.mu.Lock()
	s.sessions[token] = session
	s.mu.Unlock()

	return session
}

// CleanExpiredSessions removes expired sessions and returns how many were removed
func (s *Service) CleanExpiredSessions() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// SessionCount returns how many auth sessions are held, expired or not
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
