package model

import "time"

// SessionID uniquely identifies a directory session
type SessionID string

// JoinCode is a human-readable code for joining a session
type JoinCode string

// SessionMember is an identity that has joined a directory session
type SessionMember struct {
	Identity IdentityID
	JoinedAt time.Time
}

// LobbySession is the discoverable directory record of a hosted session
type LobbySession struct {
	ID           SessionID
	JoinCode     JoinCode
	HostIdentity IdentityID
	Name         string
	Capacity     int
	IsPrivate    bool

	// HostAddr is the address joiners connect to once the directory accepts them
	HostAddr string

	Members       []SessionMember // host included
	CreatedAt     time.Time
	LastHeartbeat time.Time
}

// AvailableSlots returns how many more members the session can take
func (s *LobbySession) AvailableSlots() int {
	free := s.Capacity - len(s.Members)
	if free < 0 {
		return 0
	}
	return free
}

// GetMember returns the member with the given identity, or nil if not found
func (s *LobbySession) GetMember(identity IdentityID) *SessionMember {
	for i := range s.Members {
		if s.Members[i].Identity == identity {
			return &s.Members[i]
		}
	}
	return nil
}

// IsHost returns true if the identity created the session
func (s *LobbySession) IsHost(identity IdentityID) bool {
	return identity != "" && s.HostIdentity == identity
}

// Clone returns a deep copy safe to mutate
func (s *LobbySession) Clone() *LobbySession {
	c := *s
	c.Members = append([]SessionMember(nil), s.Members...)
	return &c
}

// SessionFilter narrows a directory query
type SessionFilter struct {
	// AvailableSlotsGreaterThan keeps sessions with more free slots than this
	AvailableSlotsGreaterThan int
}

// JoinableFilter is the discovery query: anything with at least one free slot
func JoinableFilter() SessionFilter {
	return SessionFilter{AvailableSlotsGreaterThan: 0}
}

// Matches returns true if the session passes the filter
func (f SessionFilter) Matches(s *LobbySession) bool {
	return s.AvailableSlots() > f.AvailableSlotsGreaterThan
}
