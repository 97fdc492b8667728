package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/protocol"
)

const handshakeTimeout = 10 * time.Second

// RejectedError is returned by Dial when the authority refuses admission
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %s", model.ErrAdmissionRejected, e.Reason)
}

func (e *RejectedError) Unwrap() error {
	return model.ErrAdmissionRejected
}

// Conn is a client's connection to the authority
type Conn struct {
	peer   *peer
	events chan Event
	once   sync.Once
}

// URL turns an advertised host address into a dialable session URL
// Addresses that already carry a ws or wss scheme are returned unchanged.
func URL(addr string) string {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}
	return "ws://" + addr + SessionPath
}

// Dial connects to the authority at url
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusServiceUnavailable) {
			var body RejectionBody
			_ = json.NewDecoder(resp.Body).Decode(&body)
			return nil, &RejectedError{Reason: body.Reason}
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Conn{
		peer:   newPeer(model.LocalClientID, ws, logger.With(slog.String("component", "transport"))),
		events: make(chan Event, eventBufferSize),
	}
	go c.peer.writePump()
	go func() {
		reason := c.peer.readPump(func(env protocol.Envelope) {
			c.events <- Event{Kind: Message, Envelope: env}
		})
		c.peer.shutdown(reason)
		if r := c.peer.closeReason(); r != "" {
			reason = r
		}
		c.events <- Event{Kind: Disconnected, Reason: reason}
		close(c.events)
	}()
	return c, nil
}

// Events returns inbound messages followed by a single Disconnected event
func (c *Conn) Events() <-chan Event {
	return c.events
}

// Send queues env for the authority
func (c *Conn) Send(env protocol.Envelope) error {
	return c.peer.enqueue(env)
}

// Close closes the connection; a Disconnected event still follows
func (c *Conn) Close() {
	c.once.Do(func() {
		c.peer.shutdown("client left")
	})
}
