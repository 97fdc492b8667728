package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/mcoot/lobbynet/internal/admission"
	"github.com/mcoot/lobbynet/internal/middleware"
	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/protocol"
)

// SessionPath is where the authority accepts connections
const SessionPath = "/session"

// RejectionBody is the JSON body of a refused upgrade
type RejectionBody struct {
	Reason string `json:"reason"`
}

// Server is the authority's side of the transport
// It admits connections, assigns client ids and stamps every inbound envelope with its sender.
type Server struct {
	admission *admission.Controller
	local     int
	logger    *slog.Logger
	upgrader  websocket.Upgrader
	router    *mux.Router

	mu      sync.Mutex
	peers   map[model.ClientID]*peer
	pending int
	closed  bool

	nextID atomic.Uint64
	events chan Event
	done   chan struct{}

	httpServer *http.Server
}

// NewServer creates a Server
// localParticipants counts the authority's own participants toward capacity.
func NewServer(controller *admission.Controller, localParticipants int, logger *slog.Logger) *Server {
	s := &Server{
		admission: controller,
		local:     localParticipants,
		logger:    logger.With(slog.String("component", "transport")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		peers:  make(map[model.ClientID]*peer),
		events: make(chan Event, eventBufferSize),
		done:   make(chan struct{}),
	}

	s.router = mux.NewRouter()
	s.router.Use(middleware.Recovery(s.logger, middleware.DefaultPanicHandler))
	s.router.HandleFunc(SessionPath, s.handleSession).Methods(http.MethodGet)
	return s
}

// Handler returns the HTTP handler serving SessionPath
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on l until Close
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("accepting connections", slog.String("addr", l.Addr().String()))
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Events returns the channel of connect, message and disconnect events
func (s *Server) Events() <-chan Event {
	return s.events
}

func (s *Server) emit(e Event) {
	select {
	case s.events <- e:
	case <-s.done:
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		writeRejection(w, http.StatusServiceUnavailable, "session closed")
		return
	}
	decision := s.admission.Decide(s.local + len(s.peers) + s.pending)
	if !decision.Approved {
		s.mu.Unlock()
		s.logger.Info("connection rejected",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("reason", decision.Reason))
		writeRejection(w, http.StatusConflict, decision.Reason)
		return
	}
	s.pending++
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)

	s.mu.Lock()
	s.pending--
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("upgrade failed", slog.String("error", err.Error()))
		return
	}
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	id := model.ClientID(s.nextID.Add(1))
	p := newPeer(id, conn, s.logger)
	s.peers[id] = p
	s.mu.Unlock()

	s.emit(Event{Kind: Connected, Client: id})
	go p.writePump()

	reason := p.readPump(func(env protocol.Envelope) {
		// The wire value is never trusted
		env.Sender = id
		s.emit(Event{Kind: Message, Client: id, Envelope: env})
	})
	s.drop(p, reason)
}

func writeRejection(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(RejectionBody{Reason: reason})
}

// drop forgets a peer and reports its disconnect exactly once
func (s *Server) drop(p *peer, reason string) {
	s.mu.Lock()
	current, ok := s.peers[p.id]
	if ok && current == p {
		delete(s.peers, p.id)
	}
	s.mu.Unlock()

	p.shutdown(reason)
	if !ok || current != p {
		return
	}
	if r := p.closeReason(); r != "" {
		reason = r
	}
	s.logger.Info("client disconnected",
		slog.Uint64("client_id", uint64(p.id)),
		slog.String("reason", reason))
	s.emit(Event{Kind: Disconnected, Client: p.id, Reason: reason})
}

// Send queues env for one client
func (s *Server) Send(id model.ClientID, env protocol.Envelope) error {
	s.mu.Lock()
	p, ok := s.peers[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("send to client %d: %w", id, model.ErrClientNotFound)
	}
	return p.enqueue(env)
}

// Broadcast queues env for every connected client
func (s *Server) Broadcast(env protocol.Envelope) {
	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		_ = p.enqueue(env)
	}
}

// Disconnect sends a kicked notice and closes the client's connection
func (s *Server) Disconnect(id model.ClientID, reason string) error {
	s.mu.Lock()
	p, ok := s.peers[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("disconnect client %d: %w", id, model.ErrClientNotFound)
	}

	_ = p.enqueue(protocol.Envelope{Type: protocol.TypeKicked, ClientID: id, Reason: reason})
	p.shutdown(reason)
	return nil
}

// Clients returns the connected client ids in ascending order
func (s *Server) Clients() []model.ClientID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]model.ClientID, 0, len(s.peers))
	for id := range s.peers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Close disconnects every client and stops serving
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	peers := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	srv := s.httpServer
	s.mu.Unlock()

	for _, p := range peers {
		p.shutdown("session closed")
	}
	close(s.done)

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
	return nil
}
