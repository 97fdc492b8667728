package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/lobbynet/internal/dependencies/mocks"
	"github.com/mcoot/lobbynet/internal/model"
)

type StorageSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.storage = New(s.clock)
	s.ctx = context.Background()
}

func (s *StorageSuite) newSession(id model.SessionID, code model.JoinCode) *model.LobbySession {
	return &model.LobbySession{
		ID:        id,
		JoinCode:  code,
		Capacity:  4,
		Members:   []model.SessionMember{{Identity: "host"}},
		CreatedAt: s.clock.Now(),
	}
}

func (s *StorageSuite) TestIdentityRoundTrip() {
	s.Require().NoError(s.storage.SaveIdentity(s.ctx, &model.Identity{ID: "id-1", DisplayName: "Alice"}))

	identity, err := s.storage.GetIdentity(s.ctx, "id-1")
	s.Require().NoError(err)
	s.Equal("Alice", identity.DisplayName)

	s.Require().NoError(s.storage.DeleteIdentity(s.ctx, "id-1"))
	_, err = s.storage.GetIdentity(s.ctx, "id-1")
	s.ErrorIs(err, model.ErrIdentityNotFound)
}

func (s *StorageSuite) TestRegisteredIdentityByUsername() {
	_ = s.storage.SaveRegisteredIdentity(s.ctx, &model.RegisteredIdentity{IdentityID: "id-1", Username: "alice"})

	ri, err := s.storage.GetRegisteredIdentityByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.IdentityID("id-1"), ri.IdentityID)

	_, err = s.storage.GetRegisteredIdentityByUsername(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrIdentityNotFound)
}

func (s *StorageSuite) TestStoredSessionIsACopy() {
	session := s.newSession("s1", "ABCDEF")
	_ = s.storage.SaveSession(s.ctx, session, time.Minute)

	session.Members = append(session.Members, model.SessionMember{Identity: "intruder"})
	got, _ := s.storage.GetSession(s.ctx, "s1")
	s.Len(got.Members, 1)

	got.Members[0].Identity = "changed"
	again, _ := s.storage.GetSession(s.ctx, "s1")
	s.Equal(model.IdentityID("host"), again.Members[0].Identity)
}

func (s *StorageSuite) TestSessionExpiresOnClock() {
	_ = s.storage.SaveSession(s.ctx, s.newSession("s1", "ABCDEF"), 30*time.Second)

	s.clock.Advance(29 * time.Second)
	_, err := s.storage.GetSessionByCode(s.ctx, "ABCDEF")
	s.NoError(err)

	s.clock.Advance(time.Second)
	_, err = s.storage.GetSession(s.ctx, "s1")
	s.ErrorIs(err, model.ErrSessionNotFound)
	exists, _ := s.storage.SessionCodeExists(s.ctx, "ABCDEF")
	s.False(exists)
}

func (s *StorageSuite) TestZeroTTLNeverExpires() {
	_ = s.storage.SaveSession(s.ctx, s.newSession("s1", "ABCDEF"), 0)

	s.clock.Advance(24 * time.Hour)

	_, err := s.storage.GetSession(s.ctx, "s1")
	s.NoError(err)
}

func (s *StorageSuite) TestListSessionsSkipsExpiredInCreationOrder() {
	_ = s.storage.SaveSession(s.ctx, s.newSession("short", "AAAAAA"), 5*time.Second)
	s.clock.Advance(time.Second)
	_ = s.storage.SaveSession(s.ctx, s.newSession("b", "BBBBBB"), time.Minute)
	s.clock.Advance(time.Second)
	_ = s.storage.SaveSession(s.ctx, s.newSession("c", "CCCCCC"), time.Minute)

	s.clock.Advance(5 * time.Second)
	sessions, err := s.storage.ListSessions(s.ctx)

	s.Require().NoError(err)
	s.Require().Len(sessions, 2)
	s.Equal(model.SessionID("b"), sessions[0].ID)
	s.Equal(model.SessionID("c"), sessions[1].ID)
}

func (s *StorageSuite) TestDeleteSession() {
	_ = s.storage.SaveSession(s.ctx, s.newSession("s1", "ABCDEF"), time.Minute)

	s.Require().NoError(s.storage.DeleteSession(s.ctx, "s1"))

	_, err := s.storage.GetSessionByCode(s.ctx, "ABCDEF")
	s.ErrorIs(err, model.ErrSessionNotFound)
	s.NoError(s.storage.DeleteSession(s.ctx, "s1"))
}
