package dirclient_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/lobbynet/internal/api"
	"github.com/mcoot/lobbynet/internal/dirclient"
	"github.com/mcoot/lobbynet/internal/factory"
	"github.com/mcoot/lobbynet/internal/lobby"
	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/testutil"
)

type ClientSuite struct {
	suite.Suite
	server *httptest.Server
	ctx    context.Context

	host  *dirclient.Client
	alice *dirclient.Client
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	app, err := factory.New(factory.Config{})
	s.Require().NoError(err)

	s.server = httptest.NewServer(api.NewRouter(api.RouterConfig{
		Logger:           testutil.NopLogger(),
		AuthService:      app.AuthService,
		DirectoryService: app.DirectoryService,
	}))
	s.ctx = context.Background()

	s.host = dirclient.New(s.server.URL, "")
	_, err = s.host.SignInAnonymously(s.ctx, "Host")
	s.Require().NoError(err)

	s.alice = dirclient.New(s.server.URL, "")
	_, err = s.alice.SignInAnonymously(s.ctx, "Alice")
	s.Require().NoError(err)
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientSuite) TestHealth() {
	s.NoError(dirclient.New(s.server.URL, "").Health(s.ctx))
}

func (s *ClientSuite) TestSignInAdoptsToken() {
	c := dirclient.New(s.server.URL+"/", "")
	s.Empty(c.Token())

	resp, err := c.SignInAnonymously(s.ctx, "Zed")
	s.Require().NoError(err)
	s.Equal(resp.SessionToken, c.Token())

	me, err := c.Me(s.ctx)
	s.Require().NoError(err)
	s.Equal("Zed", me.DisplayName)
	s.True(me.IsAnonymous)

	s.Require().NoError(c.SignOut(s.ctx))
	s.Empty(c.Token())
}

func (s *ClientSuite) TestUnauthenticatedCallsFail() {
	_, err := dirclient.New(s.server.URL, "").QuickJoin(s.ctx)
	s.Error(err)
}

func (s *ClientSuite) TestDirectoryRoundTrip() {
	created, err := s.host.Create(s.ctx, lobby.CreateRequest{Name: "Round", Capacity: 2, HostAddr: "127.0.0.1:4000"})
	s.Require().NoError(err)
	s.Equal("Round", created.Name)
	s.Len(created.Members, 1)

	sessions, err := s.alice.Query(s.ctx, model.JoinableFilter())
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)
	s.Equal(created.ID, sessions[0].ID)
	s.Equal("127.0.0.1:4000", sessions[0].HostAddr)

	joined, err := s.alice.JoinByCode(s.ctx, created.JoinCode)
	s.Require().NoError(err)
	s.Len(joined.Members, 2)

	sessions, err = s.alice.Query(s.ctx, model.JoinableFilter())
	s.Require().NoError(err)
	s.Empty(sessions)

	s.Require().NoError(s.host.Heartbeat(s.ctx, created.ID))
	s.Require().NoError(s.host.RemoveMember(s.ctx, created.ID, joined.Members[1].Identity))

	fetched, err := s.host.Get(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Len(fetched.Members, 1)

	s.Require().NoError(s.host.Delete(s.ctx, created.ID))
	_, err = s.host.Get(s.ctx, created.ID)
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *ClientSuite) TestErrorsMapToSentinels() {
	_, err := s.alice.QuickJoin(s.ctx)
	s.ErrorIs(err, model.ErrNoSessionAvailable)

	_, err = s.alice.JoinByID(s.ctx, "missing")
	s.ErrorIs(err, model.ErrSessionNotFound)

	created, err := s.host.Create(s.ctx, lobby.CreateRequest{Capacity: 1})
	s.Require().NoError(err)

	_, err = s.alice.JoinByID(s.ctx, created.ID)
	s.ErrorIs(err, model.ErrSessionFull)

	s.ErrorIs(s.alice.Heartbeat(s.ctx, created.ID), model.ErrNotHost)
	s.ErrorIs(s.alice.Delete(s.ctx, created.ID), model.ErrNotHost)
}

func (s *ClientSuite) TestQuickJoin() {
	created, err := s.host.Create(s.ctx, lobby.CreateRequest{})
	s.Require().NoError(err)

	joined, err := s.alice.QuickJoin(s.ctx)
	s.Require().NoError(err)
	s.Equal(created.ID, joined.ID)

	s.Require().NoError(s.alice.RemoveMember(s.ctx, created.ID, joined.Members[1].Identity))
}
