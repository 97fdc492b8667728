package roster

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/protocol"
	"github.com/mcoot/lobbynet/internal/testutil"
)

type ReplicaSuite struct {
	suite.Suite
	replica *Replica
	changes []Change
}

func TestReplicaSuite(t *testing.T) {
	suite.Run(t, new(ReplicaSuite))
}

func (s *ReplicaSuite) SetupTest() {
	s.replica = NewReplica()
	s.changes = nil
	s.replica.Subscribe(func(c Change) { s.changes = append(s.changes, c) })
}

func upsert(id model.ClientID, slot int, name string) protocol.RosterDiff {
	return protocol.RosterDiff{
		Kind:   protocol.DiffUpsert,
		Record: model.PlayerRecord{ClientID: id, Slot: slot, DisplayName: name, Color: model.White},
	}
}

func (s *ReplicaSuite) TestResetReplacesContents() {
	s.replica.Apply(1, upsert(9, 0, "stale"))

	s.replica.Reset(protocol.RosterSnapshot{
		Seq: 5,
		Records: []model.PlayerRecord{
			{ClientID: 0, Slot: 0, DisplayName: "Host"},
			{ClientID: 2, Slot: 1, DisplayName: "Bob"},
		},
	})

	s.Equal(2, s.replica.Len())
	s.Equal(uint64(5), s.replica.Seq())
	_, ok := s.replica.Get(9)
	s.False(ok)
	s.Equal(Reset, s.changes[len(s.changes)-1].Kind)
}

func (s *ReplicaSuite) TestStaleAndDuplicateDiffsAreIgnored() {
	s.replica.Reset(protocol.RosterSnapshot{Seq: 3})
	s.changes = nil

	s.False(s.replica.Apply(3, upsert(1, 0, "old")))
	s.True(s.replica.Apply(4, upsert(1, 0, "Alice")))
	s.False(s.replica.Apply(4, upsert(1, 0, "dup")))

	record, ok := s.replica.Get(1)
	s.Require().True(ok)
	s.Equal("Alice", record.DisplayName)
	s.Len(s.changes, 1)
	s.Equal(Inserted, s.changes[0].Kind)
}

func (s *ReplicaSuite) TestUpsertThenRemove() {
	s.replica.Apply(1, upsert(1, 0, ""))
	s.replica.Apply(2, upsert(1, 0, "Alice"))
	s.replica.Apply(3, protocol.RosterDiff{Kind: protocol.DiffRemove, Record: model.PlayerRecord{ClientID: 1}})

	s.Equal(0, s.replica.Len())
	s.Require().Len(s.changes, 3)
	s.Equal(Inserted, s.changes[0].Kind)
	s.Equal(Updated, s.changes[1].Kind)
	s.Equal(Removed, s.changes[2].Kind)
}

func (s *ReplicaSuite) TestMirrorsCoordinator() {
	store := NewStore()
	coordinator := NewCoordinator(store, replicatorFunc(func(seq uint64, diff protocol.RosterDiff) {
		s.replica.Apply(seq, diff)
	}), testutil.NopLogger())

	_, _ = coordinator.Connect(1)
	_, _ = coordinator.Connect(2)
	env := protocol.MutationEnvelope(protocol.SetName("Bob"))
	env.Sender = 2
	coordinator.Apply(env)
	coordinator.Disconnect(1)

	s.Equal(store.Records(), s.replica.Records())
}

type replicatorFunc func(seq uint64, diff protocol.RosterDiff)

func (f replicatorFunc) Replicate(seq uint64, diff protocol.RosterDiff) { f(seq, diff) }
