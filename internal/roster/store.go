// Package roster holds the replicated per-client player records.
package roster

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mcoot/lobbynet/internal/model"
)

// ChangeKind describes a structural change to a roster
type ChangeKind string

const (
	Inserted ChangeKind = "inserted"
	Updated  ChangeKind = "updated"
	Removed  ChangeKind = "removed"

	// Reset is raised by a Replica when a full snapshot replaces its contents
	Reset ChangeKind = "reset"
)

// Change is delivered to observers after every mutation
type Change struct {
	Kind   ChangeKind
	Record model.PlayerRecord
}

// observers is a subscriber list with explicit unsubscribe
type observers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Change)
}

func (o *observers) subscribe(fn func(Change)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fns == nil {
		o.fns = make(map[int]func(Change))
	}
	id := o.next
	o.next++
	o.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.fns, id)
		})
	}
}

func (o *observers) notify(c Change) {
	o.mu.Lock()
	ids := make([]int, 0, len(o.fns))
	for id := range o.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, o.fns[id])
	}
	o.mu.Unlock()

	// Called outside the lock so observers may unsubscribe or read the roster
	for _, fn := range fns {
		fn(c)
	}
}

// Store is the canonical roster, keyed by client id
type Store struct {
	mu      sync.RWMutex
	records map[model.ClientID]*model.PlayerRecord
	obs     observers
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		records: make(map[model.ClientID]*model.PlayerRecord),
	}
}

// Subscribe registers fn for every change; call the returned func to stop
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	return s.obs.subscribe(fn)
}

// Insert adds a bare record in the lowest free slot
func (s *Store) Insert(id model.ClientID) (model.PlayerRecord, error) {
	s.mu.Lock()
	if _, exists := s.records[id]; exists {
		s.mu.Unlock()
		return model.PlayerRecord{}, fmt.Errorf("insert client %d: %w", id, model.ErrDuplicateClient)
	}

	record := &model.PlayerRecord{
		ClientID: id,
		Color:    model.White,
		Slot:     s.lowestFreeSlotLocked(),
	}
	s.records[id] = record
	inserted := *record
	s.mu.Unlock()

	s.obs.notify(Change{Kind: Inserted, Record: inserted})
	return inserted, nil
}

func (s *Store) lowestFreeSlotLocked() int {
	used := make(map[int]bool, len(s.records))
	for _, r := range s.records {
		used[r.Slot] = true
	}
	slot := 0
	for used[slot] {
		slot++
	}
	return slot
}

// Remove deletes the record for id and returns how many were removed
func (s *Store) Remove(id model.ClientID) int {
	s.mu.Lock()
	record, exists := s.records[id]
	if !exists {
		s.mu.Unlock()
		return 0
	}
	delete(s.records, id)
	removed := *record
	s.mu.Unlock()

	s.obs.notify(Change{Kind: Removed, Record: removed})
	return 1
}

// Update applies fn to the record for id
// fn cannot change ClientID or Slot. Returns false if no record exists.
// No change is raised when fn leaves the record as it was.
func (s *Store) Update(id model.ClientID, fn func(*model.PlayerRecord)) bool {
	s.mu.Lock()
	record, exists := s.records[id]
	if !exists {
		s.mu.Unlock()
		return false
	}

	before := *record
	after := before
	fn(&after)
	after.ClientID = before.ClientID
	after.Slot = before.Slot

	if after == before {
		s.mu.Unlock()
		return true
	}
	*record = after
	s.mu.Unlock()

	s.obs.notify(Change{Kind: Updated, Record: after})
	return true
}

// SlotOf returns the slot for id, or model.NoSlot
func (s *Store) SlotOf(id model.ClientID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.records[id]; ok {
		return r.Slot
	}
	return model.NoSlot
}

// Get returns a copy of the record for id
func (s *Store) Get(id model.ClientID) (model.PlayerRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.records[id]; ok {
		return *r, true
	}
	return model.PlayerRecord{}, false
}

// Records returns copies of all records in slot order
func (s *Store) Records() []model.PlayerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedRecords(s.records)
}

// Len returns the number of records
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func sortedRecords(m map[model.ClientID]*model.PlayerRecord) []model.PlayerRecord {
	out := make([]model.PlayerRecord, 0, len(m))
	for _, r := range m {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}
