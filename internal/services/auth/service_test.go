package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/lobbynet/internal/dependencies/mocks"
	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/storage/memory"
	"github.com/mcoot/lobbynet/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	random  *mocks.MockRandom
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.storage = memory.New(s.clock)
	s.random = mocks.NewMockRandom()
	s.service = New(s.storage, s.clock, s.random, DefaultConfig(), testutil.NopLogger())
	s.ctx = context.Background()
}

// SignInAnonymously tests

func (s *ServiceSuite) TestSignInAnonymouslySucceeds() {
	s.random.QueueUUID("11111111-1111-4111-8111-111111111111")

	session, err := s.service.SignInAnonymously(s.ctx, "  Alice ")
	s.Require().NoError(err)

	s.NotEmpty(session.Token)
	s.Equal(model.IdentityID("11111111-1111-4111-8111-111111111111"), session.Identity.ID)
	s.Equal("Alice", session.Identity.DisplayName)
	s.True(session.Identity.IsAnonymous)

	stored, err := s.storage.GetIdentity(s.ctx, session.Identity.ID)
	s.Require().NoError(err)
	s.Equal("Alice", stored.DisplayName)
}

func (s *ServiceSuite) TestSessionTokenComesFromRandom() {
	s.random.QueueToken("tok_fixed")

	session, err := s.service.SignInAnonymously(s.ctx, "Alice")
	s.Require().NoError(err)
	s.Equal("tok_fixed", session.Token)

	validated, err := s.service.ValidateSession("tok_fixed")
	s.Require().NoError(err)
	s.Equal(session.Identity.ID, validated.Identity.ID)

	// Once the queue is empty tokens stay unique
	other, err := s.service.SignInAnonymously(s.ctx, "Bob")
	s.Require().NoError(err)
	s.NotEqual(session.Token, other.Token)
}

func (s *ServiceSuite) TestSignInAnonymouslyRejectsBadName() {
	_, err := s.service.SignInAnonymously(s.ctx, "   ")
	s.ErrorIs(err, ErrInvalidDisplayName)

	_, err = s.service.SignInAnonymously(s.ctx, "this display name is far too long to accept")
	s.ErrorIs(err, ErrInvalidDisplayName)
}

func (s *ServiceSuite) TestTokensAreUnique() {
	a, _ := s.service.SignInAnonymously(s.ctx, "A")
	b, _ := s.service.SignInAnonymously(s.ctx, "B")

	s.NotEqual(a.Token, b.Token)
	s.NotEqual(a.Identity.ID, b.Identity.ID)
}

// Register / Login tests

func (s *ServiceSuite) TestRegisterThenLogin() {
	registered, err := s.service.Register(s.ctx, "alice", "secret123", "Alice")
	s.Require().NoError(err)
	s.False(registered.Identity.IsAnonymous)

	session, err := s.service.Login(s.ctx, "alice", "secret123")
	s.Require().NoError(err)
	s.Equal(registered.Identity.ID, session.Identity.ID)
	s.NotEqual(registered.Token, session.Token)
}

func (s *ServiceSuite) TestRegisterDuplicateUsername() {
	_, err := s.service.Register(s.ctx, "alice", "secret123", "Alice")
	s.Require().NoError(err)

	_, err = s.service.Register(s.ctx, "alice", "other", "Alice 2")
	s.ErrorIs(err, ErrUsernameExists)
}

func (s *ServiceSuite) TestLoginWrongPassword() {
	_, _ = s.service.Register(s.ctx, "alice", "secret123", "Alice")

	_, err := s.service.Login(s.ctx, "alice", "wrong")
	s.ErrorIs(err, ErrInvalidCredentials)

	_, err = s.service.Login(s.ctx, "nobody", "secret123")
	s.ErrorIs(err, ErrInvalidCredentials)
}

// Session tests

func (s *ServiceSuite) TestValidateSession() {
	session, _ := s.service.SignInAnonymously(s.ctx, "Alice")

	validated, err := s.service.ValidateSession(session.Token)
	s.Require().NoError(err)
	s.Equal(session.Identity.ID, validated.Identity.ID)

	_, err = s.service.ValidateSession("tok_bogus")
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestSessionExpires() {
	session, _ := s.service.SignInAnonymously(s.ctx, "Alice")

	s.clock.Advance(25 * time.Hour)

	_, err := s.service.ValidateSession(session.Token)
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestInvalidateSession() {
	session, _ := s.service.SignInAnonymously(s.ctx, "Alice")

	s.service.InvalidateSession(session.Token)

	_, err := s.service.ValidateSession(session.Token)
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestCleanExpiredSessions() {
	_, _ = s.service.SignInAnonymously(s.ctx, "Old")
	s.clock.Advance(23 * time.Hour)
	fresh, _ := s.service.SignInAnonymously(s.ctx, "Fresh")
	s.clock.Advance(2 * time.Hour)

	s.Equal(1, s.service.CleanExpiredSessions())

	_, err := s.service.ValidateSession(fresh.Token)
	s.NoError(err)
}
