package roster

import (
	"sync"

	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/protocol"
)

// Replica is a read-only mirror of the authority's roster
type Replica struct {
	mu      sync.RWMutex
	records map[model.ClientID]*model.PlayerRecord
	seq     uint64
	obs     observers
}

// NewReplica creates an empty Replica
func NewReplica() *Replica {
	return &Replica{
		records: make(map[model.ClientID]*model.PlayerRecord),
	}
}

// Subscribe registers fn for every applied change; call the returned func to stop
func (r *Replica) Subscribe(fn func(Change)) (unsubscribe func()) {
	return r.obs.subscribe(fn)
}

// Reset replaces the contents with a snapshot
func (r *Replica) Reset(snapshot protocol.RosterSnapshot) {
	r.mu.Lock()
	r.records = make(map[model.ClientID]*model.PlayerRecord, len(snapshot.Records))
	for i := range snapshot.Records {
		rec := snapshot.Records[i]
		r.records[rec.ClientID] = &rec
	}
	r.seq = snapshot.Seq
	r.mu.Unlock()

	r.obs.notify(Change{Kind: Reset})
}

// Apply applies a diff stamped with seq
// Diffs at or below the last applied sequence are ignored. Returns true if applied.
func (r *Replica) Apply(seq uint64, diff protocol.RosterDiff) bool {
	r.mu.Lock()
	if seq <= r.seq {
		r.mu.Unlock()
		return false
	}
	r.seq = seq

	var change Change
	switch diff.Kind {
	case protocol.DiffUpsert:
		rec := diff.Record
		kind := Updated
		if _, exists := r.records[rec.ClientID]; !exists {
			kind = Inserted
		}
		r.records[rec.ClientID] = &rec
		change = Change{Kind: kind, Record: rec}
	case protocol.DiffRemove:
		if _, exists := r.records[diff.Record.ClientID]; !exists {
			r.mu.Unlock()
			return true
		}
		delete(r.records, diff.Record.ClientID)
		change = Change{Kind: Removed, Record: diff.Record}
	default:
		r.mu.Unlock()
		return false
	}
	r.mu.Unlock()

	r.obs.notify(change)
	return true
}

// Seq returns the last applied sequence number
func (r *Replica) Seq() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seq
}

// Get returns a copy of the record for id
func (r *Replica) Get(id model.ClientID) (model.PlayerRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.records[id]; ok {
		return *rec, true
	}
	return model.PlayerRecord{}, false
}

// Records returns copies of all records in slot order
func (r *Replica) Records() []model.PlayerRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedRecords(r.records)
}

// Len returns the number of records
func (r *Replica) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
