// Package transport carries protocol envelopes over websocket connections.
package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer
	pongWait = 60 * time.Second

	// Time between keepalive pings; must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Largest frame accepted from a peer
	maxMessageSize = 64 * 1024

	// Buffer size for outgoing messages
	sendBufferSize = 256

	// Buffer size for the shared events channel
	eventBufferSize = 1024
)

// ErrClosed is returned when sending on a closed connection
var ErrClosed = errors.New("connection closed")

// ErrSendBufferFull is returned when a peer is not draining its messages
var ErrSendBufferFull = errors.New("send buffer full")

// EventKind identifies a transport event
type EventKind string

const (
	Connected    EventKind = "connected"
	Message      EventKind = "message"
	Disconnected EventKind = "disconnected"
)

// Event is delivered on a Server's or Conn's Events channel
type Event struct {
	Kind     EventKind
	Client   model.ClientID
	Envelope protocol.Envelope
	Reason   string
}

// peer is one websocket connection with a buffered write pump
type peer struct {
	id     model.ClientID
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	reason string
}

func newPeer(id model.ClientID, conn *websocket.Conn, logger *slog.Logger) *peer {
	return &peer{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: logger,
	}
}

// enqueue queues env without blocking
func (p *peer) enqueue(env protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.send <- data:
		return nil
	default:
		p.logger.Warn("message dropped - peer buffer full",
			slog.Uint64("client_id", uint64(p.id)),
			slog.String("type", string(env.Type)))
		return ErrSendBufferFull
	}
}

// shutdown stops accepting writes; the write pump flushes what is queued then closes
func (p *peer) shutdown(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.reason == "" {
		p.reason = reason
	}
	close(p.send)
}

func (p *peer) closeReason() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reason
}

// writePump drains the send buffer and keeps the connection alive with pings
func (p *peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
	}()

	for {
		select {
		case message, ok := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, p.closeReason()))
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump decodes envelopes until the connection fails
// Returns the reason the connection ended.
func (p *peer) readPump(deliver func(protocol.Envelope)) string {
	p.conn.SetReadLimit(maxMessageSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Text != "" {
				return closeErr.Text
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.logger.Debug("connection read failed",
					slog.Uint64("client_id", uint64(p.id)),
					slog.String("error", err.Error()))
			}
			return "connection closed"
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			p.logger.Debug("malformed frame dropped",
				slog.Uint64("client_id", uint64(p.id)),
				slog.String("error", err.Error()))
			continue
		}
		deliver(env)
	}
}
