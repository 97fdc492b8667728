package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mcoot/lobbynet/internal/api/middleware"
	"github.com/mcoot/lobbynet/internal/api/request"
	"github.com/mcoot/lobbynet/internal/api/response"
	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/services/directory"
)

// SessionHandler handles directory session endpoints
type SessionHandler struct {
	directory *directory.Service
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(directory *directory.Service) *SessionHandler {
	return &SessionHandler{
		directory: directory,
	}
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	var req request.CreateSessionRequest
	if !decode(w, r, &req) {
		return
	}

	session, err := h.directory.Create(r.Context(), *identity, directory.CreateParams{
		Name:      req.Name,
		Capacity:  req.Capacity,
		IsPrivate: req.IsPrivate,
		HostAddr:  req.HostAddr,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.SessionFromModel(session))
}

// List handles GET /api/v1/sessions
// The optional available_slots_gt query parameter overrides the joinable default.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := model.JoinableFilter()
	if raw := r.URL.Query().Get("available_slots_gt"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			WriteError(w, NewInvalidRequestError("available_slots_gt must be an integer"))
			return
		}
		filter.AvailableSlotsGreaterThan = n
	}

	sessions, err := h.directory.Query(r.Context(), filter)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SessionListFromModel(sessions))
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.directory.Get(r.Context(), sessionID(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SessionFromModel(session))
}

// Join handles POST /api/v1/sessions/{id}/join
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	session, err := h.directory.JoinByID(r.Context(), *identity, sessionID(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SessionFromModel(session))
}

// JoinByCode handles POST /api/v1/sessions/join-by-code
func (h *SessionHandler) JoinByCode(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	var req request.JoinByCodeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Code == "" {
		WriteError(w, NewInvalidRequestError("code is required"))
		return
	}

	session, err := h.directory.JoinByCode(r.Context(), *identity, model.JoinCode(req.Code))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SessionFromModel(session))
}

// QuickJoin handles POST /api/v1/sessions/quick-join
func (h *SessionHandler) QuickJoin(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	session, err := h.directory.QuickJoin(r.Context(), *identity)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SessionFromModel(session))
}

// Heartbeat handles POST /api/v1/sessions/{id}/heartbeat
func (h *SessionHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	session, err := h.directory.Heartbeat(r.Context(), *identity, sessionID(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SessionFromModel(session))
}

// Delete handles DELETE /api/v1/sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	if err := h.directory.Delete(r.Context(), *identity, sessionID(r)); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// RemoveMember handles DELETE /api/v1/sessions/{id}/members/{identity}
func (h *SessionHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())
	target := model.IdentityID(mux.Vars(r)["identity"])

	if err := h.directory.RemoveMember(r.Context(), *identity, sessionID(r), target); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

func sessionID(r *http.Request) model.SessionID {
	return model.SessionID(mux.Vars(r)["id"])
}
