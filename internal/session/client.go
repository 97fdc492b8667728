package session

import (
	"log/slog"

	"github.com/mcoot/lobbynet/internal/events"
	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/protocol"
	"github.com/mcoot/lobbynet/internal/readiness"
	"github.com/mcoot/lobbynet/internal/roster"
	"github.com/mcoot/lobbynet/internal/transport"
)

// Sender is a client's connection to the authority
type Sender interface {
	Send(env protocol.Envelope) error
}

// Client mirrors the authority's state on a joined process
type Client struct {
	sessionID model.SessionID
	conn      Sender
	bus       *events.Bus
	logger    *slog.Logger
	self      Participant

	replica  *roster.Replica
	local    readiness.Local
	observed readiness.Observed

	id       model.ClientID
	welcomed bool
	kicked   bool

	unsubscribe func()
}

// NewClient creates a replica that will introduce itself as self once welcomed
func NewClient(sessionID model.SessionID, conn Sender, bus *events.Bus, self Participant, logger *slog.Logger) *Client {
	c := &Client{
		sessionID: sessionID,
		conn:      conn,
		bus:       bus,
		logger: logger.With(
			slog.String("component", "client"),
			slog.String("session_id", string(sessionID))),
		self:    self,
		replica: roster.NewReplica(),
	}
	c.unsubscribe = c.replica.Subscribe(c.onChange)
	return c
}

// Close stops observing the replica
func (c *Client) Close() {
	c.unsubscribe()
}

func (c *Client) onChange(roster.Change) {
	c.bus.Emit(model.EventRosterChanged, c.sessionID, c.id, model.RosterChangedPayload{Records: c.replica.Records()})
}

// HandleEvent applies one transport event; returns true once the connection is gone
func (c *Client) HandleEvent(e transport.Event) bool {
	switch e.Kind {
	case transport.Message:
		c.handleMessage(e.Envelope)
		return false
	case transport.Disconnected:
		c.logger.Info("disconnected from host", slog.String("reason", e.Reason))
		c.bus.Emit(model.EventDisconnected, c.sessionID, c.id, model.FailurePayload{Reason: e.Reason})
		if !c.welcomed {
			c.bus.Emit(model.EventJoinAttemptFailed, c.sessionID, c.id, model.FailurePayload{Reason: e.Reason})
		}
		return true
	}
	return false
}

func (c *Client) handleMessage(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeWelcome:
		if c.welcomed || env.Snapshot == nil {
			return
		}
		c.id = env.ClientID
		c.welcomed = true
		c.replica.Reset(*env.Snapshot)
		c.observe(env.AllReady, env.Phase)
		c.handshake()

	case protocol.TypeRosterDiff:
		// Anything before the welcome is already in its snapshot
		if !c.welcomed || env.Diff == nil {
			return
		}
		c.replica.Apply(env.Seq, *env.Diff)

	case protocol.TypeReadiness:
		c.observe(env.AllReady, "")

	case protocol.TypePhase:
		c.observe(false, env.Phase)

	case protocol.TypeKicked:
		c.kicked = true
		c.logger.Info("kicked from session", slog.String("reason", env.Reason))
		c.bus.Emit(model.EventClientKicked, c.sessionID, c.id, model.KickedPayload{ClientID: c.id, Identity: c.self.Identity})

	default:
		c.logger.Debug("unexpected message dropped", slog.String("type", string(env.Type)))
	}
}

func (c *Client) observe(allReady bool, phase string) {
	if c.observed.Seen(allReady) {
		c.bus.Emit(model.EventReadyConsensusReached, c.sessionID, c.id, nil)
	}
	if c.observed.SeenPhase(phase) {
		c.bus.Emit(model.EventPhaseTransitionRequested, c.sessionID, c.id, model.PhaseTransitionPayload{Phase: phase})
	}
}

// handshake populates the bare record: name first, then identity
func (c *Client) handshake() {
	c.send(protocol.SetName(c.self.Name))
	if c.self.Identity != "" {
		c.send(protocol.SetIdentity(c.self.Identity))
	}
	if c.local.Ready() {
		c.send(protocol.SetReady(true))
	}
}

func (c *Client) send(m protocol.Mutation) {
	if err := c.conn.Send(protocol.MutationEnvelope(m)); err != nil {
		c.logger.Warn("failed to send mutation",
			slog.String("op", string(m.Op)),
			slog.String("error", err.Error()))
	}
}

// SetName asks the authority to change this client's display name
func (c *Client) SetName(name string) {
	c.self.Name = name
	c.send(protocol.SetName(name))
}

// SetCosmetic asks the authority to change this client's cosmetic index
func (c *Client) SetCosmetic(i int) { c.send(protocol.SetCosmetic(i)) }

// SetColor asks the authority to change this client's color
func (c *Client) SetColor(color model.Color) { c.send(protocol.SetColor(color)) }

// SetReady records the local intent and forwards it to the authority
func (c *Client) SetReady(ready bool) {
	if c.local.Set(ready) {
		c.bus.Emit(model.EventLocalReadyChanged, c.sessionID, c.id, model.LocalReadyPayload{Ready: ready})
	}
	c.send(protocol.SetReady(ready))
}

// ClientID returns the id the authority assigned, zero before the welcome
func (c *Client) ClientID() model.ClientID {
	return c.id
}

// Kicked reports whether the authority removed this client
func (c *Client) Kicked() bool {
	return c.kicked
}

// Records returns the replicated roster in slot order
func (c *Client) Records() []model.PlayerRecord {
	return c.replica.Records()
}

// AllReady returns the replicated consensus flag
func (c *Client) AllReady() bool {
	return c.observed.AllReady()
}

// Phase returns the replicated phase, empty until requested
func (c *Client) Phase() string {
	return c.observed.Phase()
}
