package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/mcoot/lobbynet/internal/admission"
	"github.com/mcoot/lobbynet/internal/dependencies/clock"
	"github.com/mcoot/lobbynet/internal/events"
	"github.com/mcoot/lobbynet/internal/lobby"
	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/readiness"
	"github.com/mcoot/lobbynet/internal/transport"
)

const (
	DefaultTickInterval = 100 * time.Millisecond
	DefaultDialTimeout  = 5 * time.Second
)

// Config holds a node's settings
type Config struct {
	Self  Participant
	Phase string

	// ListenAddr is where the transport listens when hosting
	ListenAddr string
	// Listener, when set, is used instead of listening on ListenAddr
	Listener net.Listener

	TickInterval time.Duration
	DialTimeout  time.Duration

	Lobby lobby.Config
}

// Status is a point-in-time view of the node
type Status struct {
	State    lobby.State
	Session  *model.LobbySession
	ClientID model.ClientID
	AllReady bool
	Phase    string
}

// Node is the per-process session service
// All session state is owned by the Run loop; public methods queue work onto it.
type Node struct {
	cfg    Config
	clock  clock.Clock
	bus    *events.Bus
	logger *slog.Logger
	lobby  *lobby.Client

	actions chan func()

	// Owned by the Run loop
	host         *Host
	server       *transport.Server
	serverEvents <-chan transport.Event
	client       *Client
	conn         *transport.Conn
	connEvents   <-chan transport.Event
}

// NewNode creates a Node that talks to directory as cfg.Self.Identity
func NewNode(cfg Config, directory lobby.Directory, clk clock.Clock, logger *slog.Logger) *Node {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.Phase == "" {
		cfg.Phase = readiness.DefaultPhase
	}
	if cfg.Lobby.HostAddr == "" {
		if cfg.Listener != nil {
			cfg.Lobby.HostAddr = cfg.Listener.Addr().String()
		} else {
			cfg.Lobby.HostAddr = cfg.ListenAddr
		}
	}

	n := &Node{
		cfg:     cfg,
		clock:   clk,
		bus:     events.NewBus(clk, logger),
		logger:  logger.With(slog.String("component", "node")),
		actions: make(chan func()),
	}
	n.lobby = lobby.NewClient(directory, n, n.bus, cfg.Lobby, logger)
	n.lobby.SetIdentity(cfg.Self.Identity)
	return n
}

// Events returns the bus carrying every published notification
func (n *Node) Events() *events.Bus {
	return n.bus
}

// Run drives the tick loop until ctx is done
func (n *Node) Run(ctx context.Context) error {
	ticks, stop := n.clock.NewTicker(n.cfg.TickInterval)
	defer stop()
	last := n.clock.Now()

	n.logger.Info("node started", slog.String("identity", string(n.cfg.Self.Identity)))
	for {
		select {
		case <-ctx.Done():
			n.shutdown()
			n.logger.Info("node stopped")
			return nil

		case now := <-ticks:
			dt := now.Sub(last)
			last = now
			n.lobby.Tick(dt)

		case e := <-n.serverEvents:
			if n.host == nil {
				continue
			}
			if identity := n.host.HandleEvent(e); identity != "" {
				n.release(identity)
			}

		case e, ok := <-n.connEvents:
			if !ok {
				n.connEvents = nil
				continue
			}
			if n.client != nil && n.client.HandleEvent(e) {
				n.hostLost()
			}

		case fn := <-n.actions:
			fn()
		}
	}
}

// do runs fn on the loop and waits for its result
func (n *Node) do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	select {
	case n.actions <- func() { result <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await starts a lobby task on the loop and waits for it to resolve
func await[T any](ctx context.Context, n *Node, start func() *lobby.Task[T]) (T, error) {
	var task *lobby.Task[T]
	if err := n.do(ctx, func() error {
		task = start()
		return nil
	}); err != nil {
		var zero T
		return zero, err
	}
	return task.Wait(ctx)
}

// StartHost implements lobby.Network
func (n *Node) StartHost(session *model.LobbySession) error {
	n.Stop()

	l := n.cfg.Listener
	n.cfg.Listener = nil
	if l == nil {
		var err error
		if l, err = net.Listen("tcp", n.cfg.ListenAddr); err != nil {
			return fmt.Errorf("listen on %s: %w", n.cfg.ListenAddr, err)
		}
	}

	n.server = transport.NewServer(admission.NewController(session.Capacity), 1, n.logger)
	n.serverEvents = n.server.Events()
	n.host = NewHost(session.ID, n.server, n.bus, n.cfg.Self, n.cfg.Phase, n.logger)

	server := n.server
	go func() {
		if err := server.Serve(l); err != nil {
			n.logger.Error("transport stopped", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Connect implements lobby.Network
// It dials on the caller's goroutine and attaches the connection on the Run loop.
func (n *Node) Connect(ctx context.Context, session *model.LobbySession) error {
	dialCtx, cancel := context.WithTimeout(ctx, n.cfg.DialTimeout)
	defer cancel()
	conn, err := transport.Dial(dialCtx, transport.URL(session.HostAddr), n.logger)
	if err != nil {
		var rejected *transport.RejectedError
		if errors.As(err, &rejected) {
			n.logger.Info("host refused connection", slog.String("reason", rejected.Reason))
		}
		return err
	}

	if err := n.do(ctx, func() error {
		n.Stop()
		n.conn = conn
		n.connEvents = conn.Events()
		n.client = NewClient(session.ID, conn, n.bus, n.cfg.Self, n.logger)
		return nil
	}); err != nil {
		conn.Close()
		return fmt.Errorf("attach connection: %w", err)
	}
	return nil
}

// Stop implements lobby.Network
func (n *Node) Stop() {
	if n.host != nil {
		n.host.Close()
		n.host = nil
	}
	if n.server != nil {
		if err := n.server.Close(); err != nil {
			n.logger.Warn("failed to close transport", slog.String("error", err.Error()))
		}
		n.server = nil
		n.serverEvents = nil
	}
	if n.client != nil {
		n.client.Close()
		n.client = nil
	}
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
		n.connEvents = nil
	}
}

// hostLost handles the authority dropping this client
// Unless the host kicked us, our directory membership is released too.
func (n *Node) hostLost() {
	kicked := n.client != nil && n.client.Kicked()
	if n.conn != nil {
		n.conn.Close()
	}
	if kicked {
		n.lobby.Detach()
	} else {
		n.lobby.Abandon()
	}
	n.Stop()
}

// release drops a departed client's identity from the directory record
func (n *Node) release(identity model.IdentityID) {
	n.logger.Info("releasing departed member", slog.String("identity", string(identity)))
	n.lobby.Kick(identity)
}

// shutdown leaves the directory session, waiting up to DialTimeout for the call
// A host's record expires on its own if this fails.
func (n *Node) shutdown() {
	if n.lobby.State() != lobby.Unbound {
		task := n.lobby.Leave()
		timeout := time.NewTimer(n.cfg.DialTimeout)
		defer timeout.Stop()
	wait:
		for !task.IsDone() {
			select {
			case <-timeout.C:
				n.logger.Warn("gave up leaving session on shutdown")
				break wait
			case <-time.After(10 * time.Millisecond):
				n.lobby.Tick(0)
			}
		}
	}
	n.Stop()
	n.lobby.Close()
	n.bus.Close()
}

// CreateSession publishes a session in the directory and starts hosting it
func (n *Node) CreateSession(ctx context.Context, name string, isPrivate bool) (*model.LobbySession, error) {
	return await(ctx, n, func() *lobby.Task[*model.LobbySession] {
		return n.lobby.CreateSession(name, isPrivate)
	})
}

// QuickJoin joins any joinable public session
func (n *Node) QuickJoin(ctx context.Context) (*model.LobbySession, error) {
	return await(ctx, n, n.lobby.QuickJoin)
}

// JoinByCode joins the session with the given join code
func (n *Node) JoinByCode(ctx context.Context, code model.JoinCode) (*model.LobbySession, error) {
	return await(ctx, n, func() *lobby.Task[*model.LobbySession] {
		return n.lobby.JoinByCode(code)
	})
}

// JoinByID joins the session with the given id
func (n *Node) JoinByID(ctx context.Context, id model.SessionID) (*model.LobbySession, error) {
	return await(ctx, n, func() *lobby.Task[*model.LobbySession] {
		return n.lobby.JoinByID(id)
	})
}

// Leave leaves the current session; a host leaving deletes it
func (n *Node) Leave(ctx context.Context) error {
	_, err := await(ctx, n, n.lobby.Leave)
	return err
}

// participant is the local side of whichever role is active
type participant interface {
	SetName(name string)
	SetCosmetic(i int)
	SetColor(c model.Color)
	SetReady(ready bool)
}

func (n *Node) withParticipant(ctx context.Context, fn func(p participant)) error {
	return n.do(ctx, func() error {
		switch {
		case n.host != nil:
			fn(n.host)
		case n.client != nil:
			fn(n.client)
		default:
			return model.ErrNotInSession
		}
		return nil
	})
}

// SetName changes the local display name
func (n *Node) SetName(ctx context.Context, name string) error {
	return n.withParticipant(ctx, func(p participant) {
		n.cfg.Self.Name = name
		p.SetName(name)
	})
}

// SetCosmetic changes the local cosmetic index
func (n *Node) SetCosmetic(ctx context.Context, i int) error {
	return n.withParticipant(ctx, func(p participant) { p.SetCosmetic(i) })
}

// SetColor changes the local color
func (n *Node) SetColor(ctx context.Context, c model.Color) error {
	return n.withParticipant(ctx, func(p participant) { p.SetColor(c) })
}

// SetReady changes the local ready intent
func (n *Node) SetReady(ctx context.Context, ready bool) error {
	return n.withParticipant(ctx, func(p participant) { p.SetReady(ready) })
}

// Kick removes a client from the session and from the directory record
func (n *Node) Kick(ctx context.Context, id model.ClientID) error {
	var task *lobby.Task[struct{}]
	err := n.do(ctx, func() error {
		if n.host == nil {
			return model.ErrNotHost
		}
		identity, err := n.host.Kick(id)
		if err != nil {
			return err
		}
		if identity != "" {
			task = n.lobby.Kick(identity)
		}
		return nil
	})
	if err != nil || task == nil {
		return err
	}
	_, err = task.Wait(ctx)
	return err
}

// Roster returns the local view of the roster in slot order
func (n *Node) Roster(ctx context.Context) ([]model.PlayerRecord, error) {
	var records []model.PlayerRecord
	err := n.do(ctx, func() error {
		switch {
		case n.host != nil:
			records = n.host.Records()
		case n.client != nil:
			records = n.client.Records()
		default:
			return model.ErrNotInSession
		}
		return nil
	})
	return records, err
}

// Status returns the node's binding and readiness
func (n *Node) Status(ctx context.Context) (Status, error) {
	var status Status
	err := n.do(ctx, func() error {
		status.State = n.lobby.State()
		status.Session = n.lobby.Session()
		switch {
		case n.host != nil:
			status.AllReady = n.host.AllReady()
			status.Phase = n.host.Phase()
		case n.client != nil:
			status.ClientID = n.client.ClientID()
			status.AllReady = n.client.AllReady()
			status.Phase = n.client.Phase()
		}
		return nil
	})
	return status, err
}
