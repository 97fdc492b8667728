// Package readiness implements the all-ready consensus gate.
package readiness

import (
	"log/slog"
	"sync"

	"github.com/mcoot/lobbynet/internal/model"
)

// State is the consensus gate's state
type State string

const (
	WaitingForPlayers   State = "waiting_for_players"
	AllReady            State = "all_ready"
	TransitionRequested State = "transition_requested"
)

// DefaultPhase is the phase requested once everyone is ready
const DefaultPhase = "game"

// Coordinator computes allReady on the authority and fires the transition once
type Coordinator struct {
	mu       sync.Mutex
	state    State
	allReady bool
	phase    string
	logger   *slog.Logger

	// OnConsensus runs when allReady first becomes true
	OnConsensus func()
	// OnTransition runs immediately after OnConsensus with the requested phase
	OnTransition func(phase string)
}

// NewCoordinator creates a Coordinator that will request phase on consensus
func NewCoordinator(phase string, logger *slog.Logger) *Coordinator {
	if phase == "" {
		phase = DefaultPhase
	}
	return &Coordinator{
		state:  WaitingForPlayers,
		phase:  phase,
		logger: logger.With(slog.String("component", "readiness")),
	}
}

// AllReadyOf returns true iff records is non-empty and every record is ready
func AllReadyOf(records []model.PlayerRecord) bool {
	if len(records) == 0 {
		return false
	}
	for _, r := range records {
		if !r.IsReady {
			return false
		}
	}
	return true
}

// Evaluate recomputes consensus over the current roster
// Only the first true result has any effect. Returns true if this call fired the transition.
func (c *Coordinator) Evaluate(records []model.PlayerRecord) bool {
	c.mu.Lock()
	if c.state != WaitingForPlayers || !AllReadyOf(records) {
		c.mu.Unlock()
		return false
	}
	c.allReady = true
	c.state = AllReady
	onConsensus, onTransition, phase := c.OnConsensus, c.OnTransition, c.phase
	c.mu.Unlock()

	c.logger.Info("all players ready", slog.Int("players", len(records)))
	if onConsensus != nil {
		onConsensus()
	}

	c.mu.Lock()
	c.state = TransitionRequested
	c.mu.Unlock()

	c.logger.Info("phase transition requested", slog.String("phase", phase))
	if onTransition != nil {
		onTransition(phase)
	}
	return true
}

// AllReady returns the replicated consensus flag
func (c *Coordinator) AllReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allReady
}

// State returns the current gate state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Phase returns the phase requested on consensus
func (c *Coordinator) Phase() string {
	return c.phase
}
