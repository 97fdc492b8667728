package response

import (
	"time"

	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/services/auth"
)

// Identity represents a signed-in player in API responses
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// IdentityFromModel converts a model.Identity to a response Identity
func IdentityFromModel(i *model.Identity) Identity {
	return Identity{
		ID:          string(i.ID),
		DisplayName: i.DisplayName,
		IsAnonymous: i.IsAnonymous,
	}
}

// ToModel converts back to a model.Identity
func (i Identity) ToModel() model.Identity {
	return model.Identity{
		ID:          model.IdentityID(i.ID),
		DisplayName: i.DisplayName,
		IsAnonymous: i.IsAnonymous,
	}
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Identity     Identity  `json:"identity"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *auth.Session) AuthResponse {
	return AuthResponse{
		Identity:     IdentityFromModel(&s.Identity),
		SessionToken: s.Token,
		ExpiresAt:    s.ExpiresAt,
	}
}

// Member represents a directory session member
type Member struct {
	Identity string    `json:"identity"`
	JoinedAt time.Time `json:"joined_at"`
}

// Session represents a directory session
type Session struct {
	ID             string    `json:"id"`
	JoinCode       string    `json:"join_code"`
	HostIdentity   string    `json:"host_identity"`
	Name           string    `json:"name"`
	Capacity       int       `json:"capacity"`
	AvailableSlots int       `json:"available_slots"`
	IsPrivate      bool      `json:"is_private"`
	HostAddr       string    `json:"host_addr"`
	Members        []Member  `json:"members"`
	CreatedAt      time.Time `json:"created_at"`
	LastHeartbeat  time.Time `json:"last_heartbeat"`
}

// SessionFromModel converts a model.LobbySession
func SessionFromModel(s *model.LobbySession) Session {
	members := make([]Member, len(s.Members))
	for i, m := range s.Members {
		members[i] = Member{Identity: string(m.Identity), JoinedAt: m.JoinedAt}
	}
	return Session{
		ID:             string(s.ID),
		JoinCode:       string(s.JoinCode),
		HostIdentity:   string(s.HostIdentity),
		Name:           s.Name,
		Capacity:       s.Capacity,
		AvailableSlots: s.AvailableSlots(),
		IsPrivate:      s.IsPrivate,
		HostAddr:       s.HostAddr,
		Members:        members,
		CreatedAt:      s.CreatedAt,
		LastHeartbeat:  s.LastHeartbeat,
	}
}

// ToModel converts back to a model.LobbySession
func (s Session) ToModel() *model.LobbySession {
	members := make([]model.SessionMember, len(s.Members))
	for i, m := range s.Members {
		members[i] = model.SessionMember{Identity: model.IdentityID(m.Identity), JoinedAt: m.JoinedAt}
	}
	return &model.LobbySession{
		ID:            model.SessionID(s.ID),
		JoinCode:      model.JoinCode(s.JoinCode),
		HostIdentity:  model.IdentityID(s.HostIdentity),
		Name:          s.Name,
		Capacity:      s.Capacity,
		IsPrivate:     s.IsPrivate,
		HostAddr:      s.HostAddr,
		Members:       members,
		CreatedAt:     s.CreatedAt,
		LastHeartbeat: s.LastHeartbeat,
	}
}

// SessionList is the response for session queries
type SessionList struct {
	Sessions []Session `json:"sessions"`
}

// SessionListFromModel converts query results
func SessionListFromModel(sessions []model.LobbySession) SessionList {
	list := SessionList{Sessions: make([]Session, len(sessions))}
	for i := range sessions {
		list.Sessions[i] = SessionFromModel(&sessions[i])
	}
	return list
}

// Health is the response for the health endpoint
type Health struct {
	Status string `json:"status"`
}
