package lobby

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/lobbynet/internal/dependencies/mocks"
	"github.com/mcoot/lobbynet/internal/events"
	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/testutil"
)

var errUnavailable = errors.New("directory unavailable")

type fakeDirectory struct {
	mu         sync.Mutex
	session    *model.LobbySession
	listed     []model.LobbySession
	err        error
	calls      map[string]int
	lastCreate CreateRequest
	removed    []model.IdentityID

	// queryGate, when set, holds Query until it is closed
	queryGate chan struct{}
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		session: &model.LobbySession{ID: "sess-1", JoinCode: "ABCDEF", Capacity: 4, HostAddr: "ws://host/session"},
		calls:   make(map[string]int),
	}
}

func (d *fakeDirectory) record(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[name]++
	return d.err
}

func (d *fakeDirectory) count(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[name]
}

func (d *fakeDirectory) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDirectory) Create(_ context.Context, req CreateRequest) (*model.LobbySession, error) {
	d.mu.Lock()
	d.lastCreate = req
	d.mu.Unlock()
	if err := d.record("create"); err != nil {
		return nil, err
	}
	return d.session.Clone(), nil
}

func (d *fakeDirectory) Query(context.Context, model.SessionFilter) ([]model.LobbySession, error) {
	if err := d.record("query"); err != nil {
		return nil, err
	}
	if d.queryGate != nil {
		<-d.queryGate
	}
	return d.listed, nil
}

func (d *fakeDirectory) JoinByCode(context.Context, model.JoinCode) (*model.LobbySession, error) {
	if err := d.record("join_code"); err != nil {
		return nil, err
	}
	return d.session.Clone(), nil
}

func (d *fakeDirectory) JoinByID(context.Context, model.SessionID) (*model.LobbySession, error) {
	if err := d.record("join_id"); err != nil {
		return nil, err
	}
	return d.session.Clone(), nil
}

func (d *fakeDirectory) QuickJoin(context.Context) (*model.LobbySession, error) {
	if err := d.record("quick_join"); err != nil {
		return nil, err
	}
	return d.session.Clone(), nil
}

func (d *fakeDirectory) Heartbeat(context.Context, model.SessionID) error {
	return d.record("heartbeat")
}

func (d *fakeDirectory) Delete(context.Context, model.SessionID) error {
	return d.record("delete")
}

func (d *fakeDirectory) RemoveMember(_ context.Context, _ model.SessionID, identity model.IdentityID) error {
	if err := d.record("remove_member"); err != nil {
		return err
	}
	d.mu.Lock()
	d.removed = append(d.removed, identity)
	d.mu.Unlock()
	return nil
}

type fakeNetwork struct {
	hosted    int
	connected int
	stopped   int
	err       error
}

func (n *fakeNetwork) StartHost(*model.LobbySession) error {
	if n.err != nil {
		return n.err
	}
	n.hosted++
	return nil
}

func (n *fakeNetwork) Connect(context.Context, *model.LobbySession) error {
	if n.err != nil {
		return n.err
	}
	n.connected++
	return nil
}

func (n *fakeNetwork) Stop() { n.stopped++ }

type ClientSuite struct {
	suite.Suite
	directory *fakeDirectory
	network   *fakeNetwork
	bus       *events.Bus
	sub       *events.Subscription
	client    *Client
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	logger := testutil.NopLogger()
	s.directory = newFakeDirectory()
	s.network = &fakeNetwork{}
	s.bus = events.NewBus(mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)), logger)
	s.sub = s.bus.Subscribe("test", 64)
	s.client = NewClient(s.directory, s.network, s.bus, Config{HostAddr: "ws://me/session"}, logger)
}

func (s *ClientSuite) TearDownTest() {
	s.client.Close()
}

// await ticks the client until the task resolves
func await[T any](s *ClientSuite, task *Task[T]) (T, error) {
	s.Require().Eventually(func() bool {
		s.client.Tick(0)
		return task.IsDone()
	}, time.Second, time.Millisecond)
	return task.Result()
}

// eventTypes drains the subscription
func (s *ClientSuite) eventTypes() []model.EventType {
	var types []model.EventType
	for {
		select {
		case e := <-s.sub.C():
			types = append(types, e.Type)
		default:
			return types
		}
	}
}

func (s *ClientSuite) host() {
	_, err := await(s, s.client.CreateSession("My Lobby", false))
	s.Require().NoError(err)
	s.eventTypes()
}

// Create

func (s *ClientSuite) TestCreateSessionStartsHosting() {
	task := s.client.CreateSession("My Lobby", true)

	session, err := await(s, task)
	s.Require().NoError(err)

	s.Equal(model.SessionID("sess-1"), session.ID)
	s.Equal(Hosting, s.client.State())
	s.Equal(1, s.network.hosted)
	s.Equal(CreateRequest{Name: "My Lobby", Capacity: 4, IsPrivate: true, HostAddr: "ws://me/session"}, s.directory.lastCreate)
	s.Equal([]model.EventType{model.EventCreateStarted, model.EventSessionHosted}, s.eventTypes())
}

func (s *ClientSuite) TestTaskResolvesOnlyAfterTick() {
	task := s.client.CreateSession("My Lobby", false)

	s.Require().Eventually(func() bool { return s.directory.count("create") == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	s.False(task.IsDone())
	s.Equal(Unbound, s.client.State())

	_, err := await(s, task)
	s.NoError(err)
}

func (s *ClientSuite) TestCreateFailureStaysUnbound() {
	s.directory.fail(errUnavailable)

	_, err := await(s, s.client.CreateSession("My Lobby", false))

	s.ErrorIs(err, errUnavailable)
	s.Equal(Unbound, s.client.State())
	s.Equal(0, s.network.hosted)
	s.Equal([]model.EventType{model.EventCreateStarted, model.EventCreateFailed}, s.eventTypes())
}

func (s *ClientSuite) TestCreateWhenHostFailsToStartDeletesSession() {
	s.network.err = errors.New("address in use")

	_, err := await(s, s.client.CreateSession("My Lobby", false))

	s.Error(err)
	s.Equal(Unbound, s.client.State())
	s.Eventually(func() bool { return s.directory.count("delete") == 1 }, time.Second, time.Millisecond)
}

func (s *ClientSuite) TestCreateWhileBoundFails() {
	s.host()

	_, err := s.client.CreateSession("Again", false).Result()
	s.ErrorIs(err, model.ErrAlreadyInSession)

	_, err = s.client.QuickJoin().Result()
	s.ErrorIs(err, model.ErrAlreadyInSession)
	s.Equal(1, s.directory.count("create"))
}

func (s *ClientSuite) TestSecondAttemptWhileInFlightFails() {
	first := s.client.CreateSession("One", false)

	_, err := s.client.JoinByCode("ABCDEF").Result()
	s.ErrorIs(err, model.ErrAlreadyInSession)

	_, err = await(s, first)
	s.NoError(err)
}

// Join

func (s *ClientSuite) TestJoinVariantsMoveToJoined() {
	joins := map[string]func(c *Client) *Task[*model.LobbySession]{
		"quick_join": func(c *Client) *Task[*model.LobbySession] { return c.QuickJoin() },
		"join_id":    func(c *Client) *Task[*model.LobbySession] { return c.JoinByID("sess-1") },
		"join_code":  func(c *Client) *Task[*model.LobbySession] { return c.JoinByCode("ABCDEF") },
	}

	for name, join := range joins {
		s.Run(name, func() {
			s.SetupTest()
			_, err := await(s, join(s.client))
			s.Require().NoError(err)

			s.Equal(Joined, s.client.State())
			s.Equal(1, s.network.connected)
			s.Equal(1, s.directory.count(name))
			s.Equal([]model.EventType{model.EventJoinAttemptStarted, model.EventSessionJoined}, s.eventTypes())
		})
	}
}

func (s *ClientSuite) TestJoinFailurePublishesJoinFailed() {
	s.directory.fail(model.ErrSessionFull)

	_, err := await(s, s.client.JoinByCode("ABCDEF"))

	s.ErrorIs(err, model.ErrSessionFull)
	s.Equal(Unbound, s.client.State())
	s.Equal([]model.EventType{model.EventJoinAttemptStarted, model.EventJoinAttemptFailed}, s.eventTypes())
}

func (s *ClientSuite) TestQuickJoinFailurePublishesQuickJoinFailed() {
	s.directory.fail(model.ErrNoSessionAvailable)

	_, err := await(s, s.client.QuickJoin())

	s.ErrorIs(err, model.ErrNoSessionAvailable)
	s.Equal([]model.EventType{model.EventJoinAttemptStarted, model.EventQuickJoinFailed}, s.eventTypes())
}

func (s *ClientSuite) TestJoinWhenHostUnreachableLeavesDirectoryRecord() {
	s.client.SetIdentity("me")
	s.network.err = errors.New("connection refused")

	_, err := await(s, s.client.JoinByID("sess-1"))

	s.Error(err)
	s.Equal(Unbound, s.client.State())
	s.Eventually(func() bool { return s.directory.count("remove_member") == 1 }, time.Second, time.Millisecond)
}

// Leave / delete / kick

func (s *ClientSuite) TestLeaveWhenUnboundIsNoop() {
	task := s.client.Leave()

	s.True(task.IsDone())
	_, err := task.Result()
	s.NoError(err)
	s.Equal(0, s.directory.count("remove_member"))
}

func (s *ClientSuite) TestLeaveJoinedRemovesSelf() {
	s.client.SetIdentity("me")
	_, err := await(s, s.client.QuickJoin())
	s.Require().NoError(err)
	s.eventTypes()

	_, err = await(s, s.client.Leave())
	s.Require().NoError(err)

	s.Equal(Unbound, s.client.State())
	s.Nil(s.client.Session())
	s.Equal([]model.IdentityID{"me"}, s.directory.removed)
	s.Equal(1, s.network.stopped)
	s.Equal([]model.EventType{model.EventSessionLeft}, s.eventTypes())
}

func (s *ClientSuite) TestLeaveFailureKeepsBinding() {
	_, err := await(s, s.client.QuickJoin())
	s.Require().NoError(err)
	s.directory.fail(errUnavailable)

	_, err = await(s, s.client.Leave())

	s.ErrorIs(err, errUnavailable)
	s.Equal(Joined, s.client.State())
	s.Equal(0, s.network.stopped)
}

func (s *ClientSuite) TestLeaveAsHostDeletesSession() {
	s.host()

	_, err := await(s, s.client.Leave())
	s.Require().NoError(err)

	s.Equal(1, s.directory.count("delete"))
	s.Equal(Unbound, s.client.State())
}

func (s *ClientSuite) TestDeleteSessionRequiresHost() {
	_, err := s.client.DeleteSession().Result()
	s.ErrorIs(err, model.ErrNotHost)

	_, _ = await(s, s.client.QuickJoin())
	_, err = s.client.DeleteSession().Result()
	s.ErrorIs(err, model.ErrNotHost)
	s.Equal(0, s.directory.count("delete"))
}

func (s *ClientSuite) TestKickRequiresHost() {
	_, err := s.client.Kick("other").Result()
	s.ErrorIs(err, model.ErrNotHost)

	s.host()
	_, err = await(s, s.client.Kick("other"))
	s.Require().NoError(err)
	s.Equal([]model.IdentityID{"other"}, s.directory.removed)
	s.Equal(Hosting, s.client.State())
}

func (s *ClientSuite) TestKickOfDepartedMemberSucceeds() {
	s.host()
	s.directory.fail(model.ErrNotMember)

	_, err := await(s, s.client.Kick("gone"))
	s.NoError(err)
	s.Equal(Hosting, s.client.State())
}

func (s *ClientSuite) TestAbandonRemovesSelfAndUnbinds() {
	s.client.SetIdentity("me")
	_, err := await(s, s.client.QuickJoin())
	s.Require().NoError(err)
	s.eventTypes()

	s.client.Abandon()

	s.Equal(Unbound, s.client.State())
	s.Equal([]model.EventType{model.EventSessionLeft}, s.eventTypes())
	s.Eventually(func() bool {
		s.directory.mu.Lock()
		defer s.directory.mu.Unlock()
		return len(s.directory.removed) == 1 && s.directory.removed[0] == "me"
	}, time.Second, time.Millisecond)
}

func (s *ClientSuite) TestAbandonAsHostOnlyDetaches() {
	s.host()

	s.client.Abandon()

	s.Equal(Unbound, s.client.State())
	time.Sleep(10 * time.Millisecond)
	s.Equal(0, s.directory.count("remove_member"))
}

func (s *ClientSuite) TestDetachUnbindsWithoutDirectoryCall() {
	_, _ = await(s, s.client.QuickJoin())
	s.eventTypes()

	s.client.Detach()

	s.Equal(Unbound, s.client.State())
	s.Equal(0, s.directory.count("remove_member"))
	s.Equal([]model.EventType{model.EventSessionLeft}, s.eventTypes())
}

// Timers

func (s *ClientSuite) TestHeartbeatCountdown() {
	s.host()

	s.client.Tick(15*time.Second - time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	s.Equal(0, s.directory.count("heartbeat"))

	// Fires exactly when the interval has elapsed
	s.client.Tick(time.Millisecond)
	s.Eventually(func() bool { return s.directory.count("heartbeat") == 1 }, time.Second, time.Millisecond)

	s.client.Tick(0)
	s.client.Tick(100 * time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	s.Equal(1, s.directory.count("heartbeat"))

	for i := 0; i < 149; i++ {
		s.client.Tick(100 * time.Millisecond)
	}
	s.Eventually(func() bool { return s.directory.count("heartbeat") == 2 }, time.Second, time.Millisecond)
}

func (s *ClientSuite) TestHeartbeatFailureRetriesOnNextExpiry() {
	s.host()
	s.directory.fail(errUnavailable)

	s.client.Tick(15 * time.Second)
	s.Eventually(func() bool { return s.directory.count("heartbeat") == 1 }, time.Second, time.Millisecond)
	s.client.Tick(0)

	s.client.Tick(15 * time.Second)
	s.Eventually(func() bool { return s.directory.count("heartbeat") == 2 }, time.Second, time.Millisecond)
	s.Equal(Hosting, s.client.State())
}

func (s *ClientSuite) TestNoPollWithoutIdentity() {
	s.client.Tick(10 * time.Second)
	time.Sleep(10 * time.Millisecond)

	s.Equal(0, s.directory.count("query"))
}

func (s *ClientSuite) TestPollPublishesLobbyList() {
	s.directory.listed = []model.LobbySession{{ID: "a", Capacity: 4}}
	s.client.SetIdentity("me")

	s.client.Tick(0)
	s.Require().Eventually(func() bool {
		s.client.Tick(0)
		for _, t := range s.eventTypes() {
			if t == model.EventLobbyListChanged {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
	s.Equal(1, s.directory.count("query"))

	s.client.Tick(3 * time.Second)
	s.Eventually(func() bool { return s.directory.count("query") == 2 }, time.Second, time.Millisecond)
}

func (s *ClientSuite) TestPollStopsOnceHosting() {
	s.client.SetIdentity("me")
	s.host()
	queries := s.directory.count("query")

	s.client.Tick(10 * time.Second)
	time.Sleep(10 * time.Millisecond)

	s.Equal(queries, s.directory.count("query"))
}

func (s *ClientSuite) TestPollResultDroppedOnceBound() {
	gate := make(chan struct{})
	s.directory.queryGate = gate
	s.directory.listed = []model.LobbySession{{ID: "a", Capacity: 4}}
	s.client.SetIdentity("me")

	s.client.Tick(0)
	s.Require().Eventually(func() bool { return s.directory.count("query") == 1 }, time.Second, time.Millisecond)

	s.host()
	close(gate)
	s.Require().Eventually(func() bool {
		s.client.pendingMu.Lock()
		defer s.client.pendingMu.Unlock()
		return len(s.client.pending) == 1
	}, time.Second, time.Millisecond)
	s.client.Tick(0)

	s.NotContains(s.eventTypes(), model.EventLobbyListChanged)
	s.Equal(Hosting, s.client.State())
}

func (s *ClientSuite) TestHeartbeatStopsAfterDelete() {
	s.host()
	_, err := await(s, s.client.DeleteSession())
	s.Require().NoError(err)

	s.client.Tick(time.Minute)
	time.Sleep(10 * time.Millisecond)

	s.Equal(0, s.directory.count("heartbeat"))
}
