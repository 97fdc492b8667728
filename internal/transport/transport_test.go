package transport

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/lobbynet/internal/admission"
	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/protocol"
	"github.com/mcoot/lobbynet/internal/testutil"
)

type TransportSuite struct {
	suite.Suite
	server *Server
	http   *httptest.Server
	url    string
	ctx    context.Context
}

func TestTransportSuite(t *testing.T) {
	suite.Run(t, new(TransportSuite))
}

func (s *TransportSuite) SetupTest() {
	// Capacity 3 with the host counted leaves room for two remote clients
	s.server = NewServer(admission.NewController(3), 1, testutil.NopLogger())
	s.http = httptest.NewServer(s.server.Handler())
	s.url = "ws" + strings.TrimPrefix(s.http.URL, "http") + SessionPath
	s.ctx = context.Background()
}

func (s *TransportSuite) TearDownTest() {
	_ = s.server.Close()
	s.http.Close()
}

func (s *TransportSuite) nextServerEvent() Event {
	select {
	case e := <-s.server.Events():
		return e
	case <-time.After(2 * time.Second):
		s.FailNow("timed out waiting for server event")
		return Event{}
	}
}

func nextConnEvent(s *TransportSuite, c *Conn) Event {
	select {
	case e := <-c.Events():
		return e
	case <-time.After(2 * time.Second):
		s.FailNow("timed out waiting for client event")
		return Event{}
	}
}

func (s *TransportSuite) dial() (*Conn, model.ClientID) {
	conn, err := Dial(s.ctx, s.url, testutil.NopLogger())
	s.Require().NoError(err)
	e := s.nextServerEvent()
	s.Require().Equal(Connected, e.Kind)
	return conn, e.Client
}

func (s *TransportSuite) TestClientIDsStartAtOne() {
	_, first := s.dial()
	_, second := s.dial()

	s.Equal(model.ClientID(1), first)
	s.Equal(model.ClientID(2), second)
	s.Equal([]model.ClientID{1, 2}, s.server.Clients())
}

func (s *TransportSuite) TestSenderIsStampedByServer() {
	conn, id := s.dial()

	env := protocol.MutationEnvelope(protocol.SetName("Alice"))
	env.Sender = 99
	s.Require().NoError(conn.Send(env))

	e := s.nextServerEvent()
	s.Equal(Message, e.Kind)
	s.Equal(id, e.Client)
	s.Equal(id, e.Envelope.Sender)
	s.Equal("Alice", e.Envelope.Mutation.Name)
}

func (s *TransportSuite) TestRejectedWhenFull() {
	s.dial()
	s.dial()

	_, err := Dial(s.ctx, s.url, testutil.NopLogger())

	var rejected *RejectedError
	s.Require().ErrorAs(err, &rejected)
	s.Equal("session full", rejected.Reason)
	s.ErrorIs(err, model.ErrAdmissionRejected)

	// No id was consumed by the rejected attempt
	s.server.Disconnect(1, "bye")
	s.Equal(Disconnected, s.nextServerEvent().Kind)
	_, id := s.dial()
	s.Equal(model.ClientID(3), id)
}

func (s *TransportSuite) TestFourthRemoteRejectedAtCapacityFour() {
	_ = s.server.Close()
	s.http.Close()
	s.server = NewServer(admission.NewController(4), 1, testutil.NopLogger())
	s.http = httptest.NewServer(s.server.Handler())
	s.url = "ws" + strings.TrimPrefix(s.http.URL, "http") + SessionPath

	// The host plus three remotes fill the session
	for i := 0; i < 3; i++ {
		s.dial()
	}

	_, err := Dial(s.ctx, s.url, testutil.NopLogger())
	var rejected *RejectedError
	s.Require().ErrorAs(err, &rejected)
	s.Equal(admission.ReasonFull, rejected.Reason)
	s.Len(s.server.Clients(), 3)
}

func (s *TransportSuite) TestSendAndBroadcastReachClients() {
	a, idA := s.dial()
	b, _ := s.dial()

	s.Require().NoError(s.server.Send(idA, protocol.Envelope{Type: protocol.TypeWelcome, ClientID: idA}))
	s.server.Broadcast(protocol.Envelope{Type: protocol.TypePhase, Phase: "game"})

	first := nextConnEvent(s, a)
	s.Equal(protocol.TypeWelcome, first.Envelope.Type)
	s.Equal(idA, first.Envelope.ClientID)
	s.Equal(protocol.TypePhase, nextConnEvent(s, a).Envelope.Type)
	s.Equal(protocol.TypePhase, nextConnEvent(s, b).Envelope.Type)
}

func (s *TransportSuite) TestSendToUnknownClient() {
	err := s.server.Send(42, protocol.Envelope{Type: protocol.TypePhase})
	s.ErrorIs(err, model.ErrClientNotFound)
	s.ErrorIs(s.server.Disconnect(42, "x"), model.ErrClientNotFound)
}

func (s *TransportSuite) TestDisconnectSendsKickedThenCloses() {
	conn, id := s.dial()

	s.Require().NoError(s.server.Disconnect(id, "kicked by host"))

	kicked := nextConnEvent(s, conn)
	s.Equal(protocol.TypeKicked, kicked.Envelope.Type)
	s.Equal("kicked by host", kicked.Envelope.Reason)

	gone := nextConnEvent(s, conn)
	s.Equal(Disconnected, gone.Kind)
	s.Equal("kicked by host", gone.Reason)

	e := s.nextServerEvent()
	s.Equal(Disconnected, e.Kind)
	s.Equal(id, e.Client)
	s.Empty(s.server.Clients())
}

func (s *TransportSuite) TestClientCloseIsReportedOnce() {
	conn, id := s.dial()

	conn.Close()
	conn.Close()

	e := s.nextServerEvent()
	s.Equal(Disconnected, e.Kind)
	s.Equal(id, e.Client)

	select {
	case extra := <-s.server.Events():
		s.Failf("unexpected event", "%+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
	s.ErrorIs(conn.Send(protocol.MutationEnvelope(protocol.SetReady(true))), ErrClosed)
}

func (s *TransportSuite) TestMalformedFramesAreSkipped() {
	ws, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	s.Require().NoError(err)
	defer ws.Close()
	s.Equal(Connected, s.nextServerEvent().Kind)

	s.Require().NoError(ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	s.Require().NoError(ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"mutation","mutation":{"op":"set_ready","ready":true}}`)))

	e := s.nextServerEvent()
	s.Equal(Message, e.Kind)
	s.True(e.Envelope.Mutation.Ready)
}

func (s *TransportSuite) TestDialUnreachable() {
	_, err := Dial(s.ctx, "ws://127.0.0.1:1/session", testutil.NopLogger())

	s.Error(err)
	var rejected *RejectedError
	s.False(errors.As(err, &rejected))
}

func (s *TransportSuite) TestURLFromAdvertisedAddress() {
	s.Equal("ws://10.0.0.2:7777/session", URL("10.0.0.2:7777"))
	s.Equal("wss://lobby.example/session", URL("wss://lobby.example/session"))

	conn, err := Dial(s.ctx, URL(strings.TrimPrefix(s.http.URL, "http://")), testutil.NopLogger())
	s.Require().NoError(err)
	defer conn.Close()
	s.Equal(Connected, s.nextServerEvent().Kind)
}
