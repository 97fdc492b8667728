package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	// Roster and readiness events
	EventRosterChanged            EventType = "roster_changed"
	EventReadyConsensusReached    EventType = "ready_consensus_reached"
	EventPhaseTransitionRequested EventType = "phase_transition_requested"
	EventLocalReadyChanged        EventType = "local_ready_changed"
	EventClientKicked             EventType = "client_kicked"
	EventDisconnected             EventType = "disconnected"

	// Directory events
	EventLobbyListChanged   EventType = "lobby_list_changed"
	EventCreateStarted      EventType = "create_started"
	EventCreateFailed       EventType = "create_failed"
	EventJoinAttemptStarted EventType = "join_attempt_started"
	EventJoinAttemptFailed  EventType = "join_attempt_failed"
	EventQuickJoinFailed    EventType = "quick_join_failed"
	EventSessionHosted      EventType = "session_hosted"
	EventSessionJoined      EventType = "session_joined"
	EventSessionLeft        EventType = "session_left"
)

// Event is the base structure for all events
type Event struct {
	Type      EventType
	Timestamp time.Time
	SessionID SessionID // Empty before hosting or joining
	ClientID  ClientID  // The client that triggered or is affected
	Payload   any       // Type-specific data
}

// RosterChangedPayload contains the roster after the change
type RosterChangedPayload struct {
	Records []PlayerRecord
}

// PhaseTransitionPayload names the phase the session is moving to
type PhaseTransitionPayload struct {
	Phase string
}

// LocalReadyPayload contains the local readiness intent
type LocalReadyPayload struct {
	Ready bool
}

// LobbyListPayload contains the latest discovery results
type LobbyListPayload struct {
	Sessions []LobbySession
}

// SessionPayload contains the directory session an event refers to
type SessionPayload struct {
	Session LobbySession
}

// FailurePayload explains why an attempt failed
type FailurePayload struct {
	Reason string
}

// KickedPayload identifies a removed client
type KickedPayload struct {
	ClientID ClientID
	Identity IdentityID
}
