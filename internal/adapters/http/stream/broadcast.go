package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/padmap/internal/adapters/output/pad"
	"github.com/okian/padmap/pkg/logger"
)

// Message is what clients receive: a full state on connect, then one change
// per pad update.
type Message struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	State     *pad.State  `json:"state,omitempty"`
	Change    *pad.Change `json:"change,omitempty"`
}

// StateSource provides the snapshot sent to new clients.
type StateSource interface {
	Snapshot() pad.State
}

// Broadcaster turns pad changes into hub messages and serves the websocket
// endpoint.
type Broadcaster struct {
	hub      *Hub
	source   StateSource
	upgrader websocket.Upgrader
	log      logger.Logger
}

// NewBroadcaster creates a broadcaster for source.
func NewBroadcaster(hub *Hub, source StateSource) *Broadcaster {
	return &Broadcaster{
		hub:    hub,
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: hub.log,
	}
}

// OnChange is subscribed to the pad. It never blocks.
func (b *Broadcaster) OnChange(c pad.Change) {
	data, err := json.Marshal(Message{Type: "delta", Timestamp: c.At.UnixMilli(), Change: &c})
	if err != nil {
		b.log.Error(context.Background(), "marshal pad change", logger.Error(err))
		return
	}
	b.hub.Broadcast(data)
}

// ServeHTTP upgrades the request and attaches a new client.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	// The full state is queued before registering so it precedes every delta
	// and the send channel is not yet visible to the hub's teardown.
	client := NewClient(b.hub, conn)
	b.sendInitialState(client)
	if !b.hub.Register(client) {
		_ = conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

func (b *Broadcaster) sendInitialState(c *Client) {
	state := b.source.Snapshot()
	data, err := json.Marshal(Message{Type: "full", Timestamp: time.Now().UnixMilli(), State: &state})
	if err != nil {
		b.log.Error(context.Background(), "marshal pad state", logger.Error(err))
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
