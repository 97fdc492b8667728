// Package lobby drives the directory lifecycle of a session: create, join, heartbeat, discovery and leave.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/lobbynet/internal/admission"
	"github.com/mcoot/lobbynet/internal/events"
	"github.com/mcoot/lobbynet/internal/model"
)

// State is the directory binding of this process
type State string

const (
	Unbound State = "unbound"
	Hosting State = "hosting"
	Joined  State = "joined"
)

const (
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultPollInterval      = 3 * time.Second
	DefaultCallTimeout       = 10 * time.Second
)

// Config holds the lobby client's settings
type Config struct {
	Capacity          int
	HeartbeatInterval time.Duration
	PollInterval      time.Duration
	CallTimeout       time.Duration

	// HostAddr is advertised to joiners when creating a session
	HostAddr string
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = admission.DefaultCapacity
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	return c
}

// Client manages this process's directory session
// Directory calls run on goroutines; their continuations run inside Tick.
type Client struct {
	directory Directory
	network   Network
	bus       *events.Bus
	logger    *slog.Logger
	cfg       Config

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	session    *model.LobbySession
	identity   model.IdentityID
	attempting bool

	heartbeatTimer time.Duration
	pollTimer      time.Duration

	pendingMu sync.Mutex
	pending   []func()
}

// NewClient creates an Unbound Client
func NewClient(directory Directory, network Network, bus *events.Bus, cfg Config, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		directory: directory,
		network:   network,
		bus:       bus,
		logger:    logger.With(slog.String("component", "lobby")),
		cfg:       cfg.withDefaults(),
		ctx:       ctx,
		cancel:    cancel,
		state:     Unbound,
	}
}

// Close cancels in-flight directory calls
func (c *Client) Close() {
	c.cancel()
}

// SetIdentity records the signed-in identity; discovery polling starts once it is set
func (c *Client) SetIdentity(id model.IdentityID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = id
}

// State returns the current binding
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the bound session, or nil when Unbound
func (c *Client) Session() *model.LobbySession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.Clone()
}

func (c *Client) sessionID() model.SessionID {
	if c.session == nil {
		return ""
	}
	return c.session.ID
}

// Tick runs queued continuations, then advances the heartbeat and poll timers
func (c *Client) Tick(dt time.Duration) {
	c.drain()

	c.mu.Lock()
	var heartbeat, poll bool
	var id model.SessionID
	switch {
	case c.state == Hosting:
		c.heartbeatTimer -= dt
		if c.heartbeatTimer <= 0 {
			c.heartbeatTimer = c.cfg.HeartbeatInterval
			heartbeat = true
			id = c.session.ID
		}
	case c.state == Unbound && !c.attempting && c.identity != "":
		c.pollTimer -= dt
		if c.pollTimer <= 0 {
			c.pollTimer = c.cfg.PollInterval
			poll = true
		}
	}
	c.mu.Unlock()

	if heartbeat {
		c.heartbeat(id)
	}
	if poll {
		c.poll()
	}
}

func (c *Client) enqueue(fn func()) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.pending = append(c.pending, fn)
}

func (c *Client) drain() {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = nil
	c.pendingMu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

// run calls the directory on a goroutine and queues cont for the next Tick
// cont may replace the call's error; the task resolves with what it returns.
func run[T any](c *Client, call func(ctx context.Context) (T, error), cont func(T, error) error) *Task[T] {
	task := newTask[T]()
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.CallTimeout)
		defer cancel()
		v, err := call(ctx)
		c.enqueue(func() {
			task.resolve(v, cont(v, err))
		})
	}()
	return task
}

// beginAttemptLocked reserves the client for a create or join
func (c *Client) beginAttemptLocked() error {
	if c.state != Unbound || c.attempting {
		return model.ErrAlreadyInSession
	}
	c.attempting = true
	return nil
}

// CreateSession publishes a new session and starts hosting it
func (c *Client) CreateSession(name string, isPrivate bool) *Task[*model.LobbySession] {
	c.mu.Lock()
	if err := c.beginAttemptLocked(); err != nil {
		c.mu.Unlock()
		return Failed[*model.LobbySession](err)
	}
	c.mu.Unlock()

	c.bus.Emit(model.EventCreateStarted, "", model.LocalClientID, nil)
	req := CreateRequest{
		Name:      name,
		Capacity:  c.cfg.Capacity,
		IsPrivate: isPrivate,
		HostAddr:  c.cfg.HostAddr,
	}

	return run(c, func(ctx context.Context) (*model.LobbySession, error) {
		return c.directory.Create(ctx, req)
	}, func(session *model.LobbySession, err error) error {
		if err == nil {
			if err = c.network.StartHost(session); err != nil {
				err = fmt.Errorf("start host: %w", err)
				c.discard(session.ID)
			}
		}

		c.mu.Lock()
		c.attempting = false
		if err != nil {
			c.mu.Unlock()
			c.logger.Error("failed to create session", slog.String("error", err.Error()))
			c.bus.Emit(model.EventCreateFailed, "", model.LocalClientID, model.FailurePayload{Reason: err.Error()})
			return err
		}
		c.state = Hosting
		c.session = session.Clone()
		// Creation already counts as a refresh
		c.heartbeatTimer = c.cfg.HeartbeatInterval
		c.mu.Unlock()

		c.logger.Info("hosting session",
			slog.String("session_id", string(session.ID)),
			slog.String("join_code", string(session.JoinCode)))
		c.bus.Emit(model.EventSessionHosted, session.ID, model.LocalClientID, model.SessionPayload{Session: *session})
		return nil
	})
}

// discard deletes a session that was created but could not be hosted
func (c *Client) discard(id model.SessionID) {
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.CallTimeout)
		defer cancel()
		if err := c.directory.Delete(ctx, id); err != nil {
			c.logger.Warn("failed to delete unhosted session",
				slog.String("session_id", string(id)),
				slog.String("error", err.Error()))
		}
	}()
}

// QuickJoin joins any joinable public session
func (c *Client) QuickJoin() *Task[*model.LobbySession] {
	return c.join("quick", model.EventQuickJoinFailed, func(ctx context.Context) (*model.LobbySession, error) {
		return c.directory.QuickJoin(ctx)
	})
}

// JoinByID joins the session with the given id
func (c *Client) JoinByID(id model.SessionID) *Task[*model.LobbySession] {
	return c.join("id", model.EventJoinAttemptFailed, func(ctx context.Context) (*model.LobbySession, error) {
		return c.directory.JoinByID(ctx, id)
	})
}

// JoinByCode joins the session with the given join code
func (c *Client) JoinByCode(code model.JoinCode) *Task[*model.LobbySession] {
	return c.join("code", model.EventJoinAttemptFailed, func(ctx context.Context) (*model.LobbySession, error) {
		return c.directory.JoinByCode(ctx, code)
	})
}

func (c *Client) join(method string, failure model.EventType, call func(ctx context.Context) (*model.LobbySession, error)) *Task[*model.LobbySession] {
	c.mu.Lock()
	if err := c.beginAttemptLocked(); err != nil {
		c.mu.Unlock()
		return Failed[*model.LobbySession](err)
	}
	identity := c.identity
	c.mu.Unlock()

	c.bus.Emit(model.EventJoinAttemptStarted, "", model.LocalClientID, nil)

	return run(c, func(ctx context.Context) (*model.LobbySession, error) {
		session, err := call(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.network.Connect(ctx, session); err != nil {
			c.abandon(session.ID, identity)
			return nil, fmt.Errorf("connect to host: %w", err)
		}
		return session, nil
	}, func(session *model.LobbySession, err error) error {
		c.mu.Lock()
		c.attempting = false
		if err != nil {
			c.mu.Unlock()
			c.logger.Error("failed to join session",
				slog.String("method", method),
				slog.String("error", err.Error()))
			c.bus.Emit(failure, "", model.LocalClientID, model.FailurePayload{Reason: err.Error()})
			return err
		}
		c.state = Joined
		c.session = session.Clone()
		c.mu.Unlock()

		c.logger.Info("joined session",
			slog.String("method", method),
			slog.String("session_id", string(session.ID)))
		c.bus.Emit(model.EventSessionJoined, session.ID, model.LocalClientID, model.SessionPayload{Session: *session})
		return nil
	})
}

// abandon removes this identity from a session it can no longer reach
func (c *Client) abandon(id model.SessionID, identity model.IdentityID) {
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.CallTimeout)
		defer cancel()
		err := c.directory.RemoveMember(ctx, id, identity)
		switch {
		case err == nil:
		case errors.Is(err, model.ErrSessionNotFound), errors.Is(err, model.ErrNotMember):
			c.logger.Debug("session already released member", slog.String("session_id", string(id)))
		default:
			c.logger.Warn("failed to leave unreachable session",
				slog.String("session_id", string(id)),
				slog.String("error", err.Error()))
		}
	}()
}

// Leave leaves the bound session
// A host leaving deletes the session. Unbound is a no-op. On failure the binding is kept.
func (c *Client) Leave() *Task[struct{}] {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case Hosting:
		return c.DeleteSession()
	case Joined:
		return c.removeSelf()
	default:
		return Resolved(struct{}{})
	}
}

func (c *Client) removeSelf() *Task[struct{}] {
	c.mu.Lock()
	id, identity := c.sessionID(), c.identity
	c.mu.Unlock()

	return run(c, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.directory.RemoveMember(ctx, id, identity)
	}, func(_ struct{}, err error) error {
		if err != nil {
			c.logger.Error("failed to leave session",
				slog.String("session_id", string(id)),
				slog.String("error", err.Error()))
			return err
		}
		c.unbind(id)
		return nil
	})
}

// DeleteSession removes the hosted session from the directory
func (c *Client) DeleteSession() *Task[struct{}] {
	c.mu.Lock()
	if c.state != Hosting {
		c.mu.Unlock()
		return Failed[struct{}](model.ErrNotHost)
	}
	id := c.sessionID()
	c.mu.Unlock()

	return run(c, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.directory.Delete(ctx, id)
	}, func(_ struct{}, err error) error {
		if err != nil {
			c.logger.Error("failed to delete session",
				slog.String("session_id", string(id)),
				slog.String("error", err.Error()))
			return err
		}
		c.unbind(id)
		return nil
	})
}

// Kick removes a member from the hosted session's directory record
func (c *Client) Kick(identity model.IdentityID) *Task[struct{}] {
	c.mu.Lock()
	if c.state != Hosting {
		c.mu.Unlock()
		return Failed[struct{}](model.ErrNotHost)
	}
	id := c.sessionID()
	c.mu.Unlock()

	return run(c, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.directory.RemoveMember(ctx, id, identity)
	}, func(_ struct{}, err error) error {
		if errors.Is(err, model.ErrNotMember) {
			c.logger.Debug("member already gone",
				slog.String("session_id", string(id)),
				slog.String("identity", string(identity)))
			return nil
		}
		if err != nil {
			c.logger.Error("failed to kick member",
				slog.String("session_id", string(id)),
				slog.String("identity", string(identity)),
				slog.String("error", err.Error()))
			return err
		}
		c.logger.Info("member kicked",
			slog.String("session_id", string(id)),
			slog.String("identity", string(identity)))
		return nil
	})
}

// Detach unbinds locally without a directory call, e.g. after the host dropped us
func (c *Client) Detach() {
	c.mu.Lock()
	if c.state == Unbound {
		c.mu.Unlock()
		return
	}
	id := c.sessionID()
	c.mu.Unlock()
	c.unbind(id)
}

// Abandon unbinds after losing the host and removes this identity from the record in the background
func (c *Client) Abandon() {
	c.mu.Lock()
	joined := c.state == Joined
	id, identity := c.sessionID(), c.identity
	c.mu.Unlock()

	if joined && identity != "" {
		c.abandon(id, identity)
	}
	c.Detach()
}

func (c *Client) unbind(id model.SessionID) {
	c.mu.Lock()
	if c.state == Unbound || c.sessionID() != id {
		c.mu.Unlock()
		return
	}
	c.state = Unbound
	c.session = nil
	c.pollTimer = 0
	c.mu.Unlock()

	c.network.Stop()
	c.logger.Info("left session", slog.String("session_id", string(id)))
	c.bus.Emit(model.EventSessionLeft, id, model.LocalClientID, nil)
}

func (c *Client) heartbeat(id model.SessionID) {
	run(c, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.directory.Heartbeat(ctx, id)
	}, func(_ struct{}, err error) error {
		if err != nil {
			c.logger.Warn("heartbeat failed",
				slog.String("session_id", string(id)),
				slog.String("error", err.Error()))
		}
		return err
	})
}

func (c *Client) poll() {
	run(c, func(ctx context.Context) ([]model.LobbySession, error) {
		return c.directory.Query(ctx, model.JoinableFilter())
	}, func(sessions []model.LobbySession, err error) error {
		if err != nil {
			c.logger.Warn("lobby query failed", slog.String("error", err.Error()))
			return err
		}
		c.mu.Lock()
		browsing := c.state == Unbound && !c.attempting
		c.mu.Unlock()
		if !browsing {
			return nil
		}
		c.bus.Emit(model.EventLobbyListChanged, "", model.LocalClientID, model.LobbyListPayload{Sessions: sessions})
		return nil
	})
}
