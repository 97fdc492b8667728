// Package protocol defines the messages exchanged between the session authority and its clients.
package protocol

import (
	"errors"
	"fmt"

	"github.com/mcoot/lobbynet/internal/model"
)

// MessageType identifies an envelope's payload
type MessageType string

const (
	// Client to authority
	TypeMutation MessageType = "mutation"

	// Authority to client
	TypeWelcome    MessageType = "welcome"
	TypeRosterDiff MessageType = "roster_diff"
	TypeReadiness  MessageType = "readiness"
	TypePhase      MessageType = "phase"
	TypeKicked     MessageType = "kicked"
)

// Envelope is the single frame type on the wire
// Sender is always stamped by the receiving transport; any value read from the wire is discarded
type Envelope struct {
	Type   MessageType    `json:"type"`
	Sender model.ClientID `json:"sender,omitempty"`
	Seq    uint64         `json:"seq,omitempty"`

	// ClientID is the recipient's own id in a welcome
	ClientID model.ClientID `json:"client_id,omitempty"`

	Mutation *Mutation       `json:"mutation,omitempty"`
	Diff     *RosterDiff     `json:"diff,omitempty"`
	Snapshot *RosterSnapshot `json:"snapshot,omitempty"`
	AllReady bool            `json:"all_ready,omitempty"`
	Phase    string          `json:"phase,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

// Op names a field-level mutation of the sender's own record
type Op string

const (
	OpSetName     Op = "set_name"
	OpSetIdentity Op = "set_identity"
	OpSetCosmetic Op = "set_cosmetic"
	OpSetColor    Op = "set_color"
	OpSetReady    Op = "set_ready"
)

// MaxNameLength bounds display names
const MaxNameLength = 32

var ErrInvalidMutation = errors.New("invalid mutation")

// Mutation carries one field change; only the field matching Op is read
type Mutation struct {
	Op       Op               `json:"op"`
	Name     string           `json:"name,omitempty"`
	Identity model.IdentityID `json:"identity,omitempty"`
	Cosmetic int              `json:"cosmetic,omitempty"`
	Color    model.Color      `json:"color"`
	Ready    bool             `json:"ready,omitempty"`
}

// Validate checks the payload for the mutation's op
func (m *Mutation) Validate() error {
	switch m.Op {
	case OpSetName:
		if len(m.Name) > MaxNameLength {
			return fmt.Errorf("%w: name longer than %d", ErrInvalidMutation, MaxNameLength)
		}
	case OpSetIdentity:
		if m.Identity == "" {
			return fmt.Errorf("%w: empty identity", ErrInvalidMutation)
		}
	case OpSetCosmetic:
		if m.Cosmetic < 0 {
			return fmt.Errorf("%w: negative cosmetic index", ErrInvalidMutation)
		}
	case OpSetColor:
		if !m.Color.Valid() {
			return fmt.Errorf("%w: color out of range", ErrInvalidMutation)
		}
	case OpSetReady:
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidMutation, m.Op)
	}
	return nil
}

// Convenience constructors used by clients

func SetName(name string) Mutation { return Mutation{Op: OpSetName, Name: name} }

func SetIdentity(id model.IdentityID) Mutation { return Mutation{Op: OpSetIdentity, Identity: id} }

func SetCosmetic(i int) Mutation { return Mutation{Op: OpSetCosmetic, Cosmetic: i} }

func SetColor(c model.Color) Mutation { return Mutation{Op: OpSetColor, Color: c} }

func SetReady(ready bool) Mutation { return Mutation{Op: OpSetReady, Ready: ready} }

// MutationEnvelope wraps a mutation for sending to the authority
func MutationEnvelope(m Mutation) Envelope {
	return Envelope{Type: TypeMutation, Mutation: &m}
}

// DiffKind is the kind of roster change being replicated
type DiffKind string

const (
	DiffUpsert DiffKind = "upsert"
	DiffRemove DiffKind = "remove"
)

// RosterDiff replicates a single record change
type RosterDiff struct {
	Kind   DiffKind           `json:"kind"`
	Record model.PlayerRecord `json:"record"`
}

// RosterSnapshot is the full roster sent on welcome
type RosterSnapshot struct {
	Seq     uint64               `json:"seq"`
	Records []model.PlayerRecord `json:"records"`
}
