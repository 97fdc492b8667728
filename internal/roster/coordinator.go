package roster

import (
	"log/slog"
	"sync"

	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/protocol"
)

// Replicator pushes roster diffs to every replica
type Replicator interface {
	Replicate(seq uint64, diff protocol.RosterDiff)
}

// Coordinator is the authority's only writer of the roster
// Every accepted change is stamped with the next sequence number and replicated.
type Coordinator struct {
	store      *Store
	replicator Replicator
	logger     *slog.Logger

	mu  sync.Mutex
	seq uint64

	unsubscribe func()
}

// NewCoordinator creates a Coordinator over store
func NewCoordinator(store *Store, replicator Replicator, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		store:      store,
		replicator: replicator,
		logger:     logger.With(slog.String("component", "roster")),
	}
	c.unsubscribe = store.Subscribe(c.replicate)
	return c
}

// Close stops replicating store changes
func (c *Coordinator) Close() {
	c.unsubscribe()
}

func (c *Coordinator) replicate(change Change) {
	diff := protocol.RosterDiff{Kind: protocol.DiffUpsert, Record: change.Record}
	if change.Kind == Removed {
		diff.Kind = protocol.DiffRemove
	}

	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	if c.replicator != nil {
		c.replicator.Replicate(seq, diff)
	}
}

// Snapshot returns the full roster and the sequence number it reflects
func (c *Coordinator) Snapshot() protocol.RosterSnapshot {
	c.mu.Lock()
	seq := c.seq
	c.mu.Unlock()
	return protocol.RosterSnapshot{Seq: seq, Records: c.store.Records()}
}

// Connect inserts the bare record for a newly admitted client
func (c *Coordinator) Connect(id model.ClientID) (model.PlayerRecord, error) {
	record, err := c.store.Insert(id)
	if err != nil {
		return model.PlayerRecord{}, err
	}
	c.logger.Info("client connected", slog.Uint64("client_id", uint64(id)), slog.Int("slot", record.Slot))
	return record, nil
}

// Disconnect removes the client's record; removing an absent client is a no-op
func (c *Coordinator) Disconnect(id model.ClientID) int {
	removed := c.store.Remove(id)
	if removed > 0 {
		c.logger.Info("client disconnected", slog.Uint64("client_id", uint64(id)))
	}
	return removed
}

// Apply applies a mutation envelope to the sender's own record
// The target is chosen only from msg.Sender. Returns false if the message was dropped.
func (c *Coordinator) Apply(msg protocol.Envelope) bool {
	if msg.Type != protocol.TypeMutation || msg.Mutation == nil {
		c.logger.Debug("non-mutation message dropped",
			slog.Uint64("sender", uint64(msg.Sender)), slog.String("type", string(msg.Type)))
		return false
	}

	m := *msg.Mutation
	if err := m.Validate(); err != nil {
		c.logger.Debug("invalid mutation dropped",
			slog.Uint64("sender", uint64(msg.Sender)), slog.String("error", err.Error()))
		return false
	}

	found := c.store.Update(msg.Sender, func(r *model.PlayerRecord) {
		switch m.Op {
		case protocol.OpSetName:
			r.DisplayName = m.Name
		case protocol.OpSetIdentity:
			r.Identity = m.Identity
		case protocol.OpSetCosmetic:
			r.CosmeticIndex = m.Cosmetic
		case protocol.OpSetColor:
			r.Color = m.Color
		case protocol.OpSetReady:
			r.IsReady = m.Ready
		}
	})
	if !found {
		c.logger.Debug("mutation for unknown client dropped",
			slog.Uint64("sender", uint64(msg.Sender)), slog.String("op", string(m.Op)))
		return false
	}
	return true
}
