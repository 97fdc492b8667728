// Package session runs a session's authority and replica state on a single tick loop.
package session

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/mcoot/lobbynet/internal/events"
	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/protocol"
	"github.com/mcoot/lobbynet/internal/readiness"
	"github.com/mcoot/lobbynet/internal/roster"
	"github.com/mcoot/lobbynet/internal/transport"
)

// KickReason is sent to a client removed by the host
const KickReason = "kicked by host"

// ErrKickSelf is returned when the host tries to kick its own participant
var ErrKickSelf = errors.New("cannot kick the host")

// Transport is the authority's view of its connected clients
type Transport interface {
	Send(id model.ClientID, env protocol.Envelope) error
	Broadcast(env protocol.Envelope)
	Disconnect(id model.ClientID, reason string) error
}

// Participant describes the local player
type Participant struct {
	Identity model.IdentityID
	Name     string
}

// Host is the session authority
type Host struct {
	sessionID model.SessionID
	transport Transport
	bus       *events.Bus
	logger    *slog.Logger

	store     *roster.Store
	roster    *roster.Coordinator
	readiness *readiness.Coordinator
	local     readiness.Local

	unsubscribe func()
}

// NewHost creates the authority and inserts the host's own participant
func NewHost(sessionID model.SessionID, t Transport, bus *events.Bus, self Participant, phase string, logger *slog.Logger) *Host {
	logger = logger.With(slog.String("session_id", string(sessionID)))
	h := &Host{
		sessionID: sessionID,
		transport: t,
		bus:       bus,
		logger:    logger.With(slog.String("component", "host")),
		store:     roster.NewStore(),
		readiness: readiness.NewCoordinator(phase, logger),
	}
	h.roster = roster.NewCoordinator(h.store, h, logger)
	h.readiness.OnConsensus = h.onConsensus
	h.readiness.OnTransition = h.onTransition
	h.unsubscribe = h.store.Subscribe(h.onChange)

	if _, err := h.roster.Connect(model.LocalClientID); err != nil {
		h.logger.Error("failed to insert host participant", slog.String("error", err.Error()))
	}
	if self.Name != "" {
		h.applyLocal(protocol.SetName(self.Name))
	}
	if self.Identity != "" {
		h.applyLocal(protocol.SetIdentity(self.Identity))
	}
	return h
}

// Close stops observing the roster
func (h *Host) Close() {
	h.unsubscribe()
	h.roster.Close()
}

// Replicate broadcasts a roster diff to every client
func (h *Host) Replicate(seq uint64, diff protocol.RosterDiff) {
	h.transport.Broadcast(protocol.Envelope{Type: protocol.TypeRosterDiff, Seq: seq, Diff: &diff})
}

func (h *Host) onChange(roster.Change) {
	records := h.store.Records()
	h.bus.Emit(model.EventRosterChanged, h.sessionID, model.LocalClientID, model.RosterChangedPayload{Records: records})
	h.readiness.Evaluate(records)
}

func (h *Host) onConsensus() {
	h.transport.Broadcast(protocol.Envelope{Type: protocol.TypeReadiness, AllReady: true})
	h.bus.Emit(model.EventReadyConsensusReached, h.sessionID, model.LocalClientID, nil)
}

func (h *Host) onTransition(phase string) {
	h.transport.Broadcast(protocol.Envelope{Type: protocol.TypePhase, Phase: phase})
	h.bus.Emit(model.EventPhaseTransitionRequested, h.sessionID, model.LocalClientID,
		model.PhaseTransitionPayload{Phase: phase})
}

// HandleEvent applies one transport event
// For a disconnect it returns the identity the session no longer holds, empty if
// the client never sent one or another connection still carries it.
func (h *Host) HandleEvent(e transport.Event) model.IdentityID {
	switch e.Kind {
	case transport.Connected:
		h.connect(e.Client)
	case transport.Message:
		h.roster.Apply(e.Envelope)
	case transport.Disconnected:
		return h.disconnect(e.Client)
	}
	return ""
}

func (h *Host) disconnect(id model.ClientID) model.IdentityID {
	record, ok := h.store.Get(id)
	if h.roster.Disconnect(id) == 0 || !ok || record.Identity == "" {
		return ""
	}
	for _, r := range h.store.Records() {
		if r.Identity == record.Identity {
			return ""
		}
	}
	return record.Identity
}

func (h *Host) connect(id model.ClientID) {
	if _, err := h.roster.Connect(id); err != nil {
		h.logger.Warn("connect ignored",
			slog.Uint64("client_id", uint64(id)),
			slog.String("error", err.Error()))
		return
	}

	snapshot := h.roster.Snapshot()
	welcome := protocol.Envelope{
		Type:     protocol.TypeWelcome,
		ClientID: id,
		Snapshot: &snapshot,
		AllReady: h.readiness.AllReady(),
	}
	if h.readiness.State() == readiness.TransitionRequested {
		welcome.Phase = h.readiness.Phase()
	}
	if err := h.transport.Send(id, welcome); err != nil {
		h.logger.Warn("failed to welcome client",
			slog.Uint64("client_id", uint64(id)),
			slog.String("error", err.Error()))
	}
}

func (h *Host) applyLocal(m protocol.Mutation) {
	env := protocol.MutationEnvelope(m)
	env.Sender = model.LocalClientID
	h.roster.Apply(env)
}

// SetName changes the host's display name
func (h *Host) SetName(name string) { h.applyLocal(protocol.SetName(name)) }

// SetCosmetic changes the host's cosmetic index
func (h *Host) SetCosmetic(i int) { h.applyLocal(protocol.SetCosmetic(i)) }

// SetColor changes the host's color
func (h *Host) SetColor(c model.Color) { h.applyLocal(protocol.SetColor(c)) }

// SetReady records the host's intent and applies it to its record
func (h *Host) SetReady(ready bool) {
	if h.local.Set(ready) {
		h.bus.Emit(model.EventLocalReadyChanged, h.sessionID, model.LocalClientID, model.LocalReadyPayload{Ready: ready})
	}
	h.applyLocal(protocol.SetReady(ready))
}

// Kick disconnects a client and removes its record
// Returns the client's identity for the matching directory removal.
func (h *Host) Kick(id model.ClientID) (model.IdentityID, error) {
	if id == model.LocalClientID {
		return "", ErrKickSelf
	}
	record, ok := h.store.Get(id)
	if !ok {
		return "", fmt.Errorf("kick client %d: %w", id, model.ErrClientNotFound)
	}

	if err := h.transport.Disconnect(id, KickReason); err != nil && !errors.Is(err, model.ErrClientNotFound) {
		return "", fmt.Errorf("kick client %d: %w", id, err)
	}
	h.roster.Disconnect(id)

	h.logger.Info("client kicked",
		slog.Uint64("client_id", uint64(id)),
		slog.String("identity", string(record.Identity)))
	h.bus.Emit(model.EventClientKicked, h.sessionID, id, model.KickedPayload{ClientID: id, Identity: record.Identity})
	return record.Identity, nil
}

// Records returns the authoritative roster in slot order
func (h *Host) Records() []model.PlayerRecord {
	return h.store.Records()
}

// AllReady returns the replicated consensus flag
func (h *Host) AllReady() bool {
	return h.readiness.AllReady()
}

// ReadinessState returns the consensus gate's state
func (h *Host) ReadinessState() readiness.State {
	return h.readiness.State()
}

// Phase returns the requested phase, empty until consensus
func (h *Host) Phase() string {
	if h.readiness.State() != readiness.TransitionRequested {
		return ""
	}
	return h.readiness.Phase()
}
