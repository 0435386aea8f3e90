package livefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/NotCoffee418/scale_gateway/pkg/scaleutils"
	"github.com/NotCoffee418/scale_gateway/pkg/weightstate"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Snapshots held for Run before Publish starts dropping them.
const publishBuffer = 16

// NewHub creates a hub. current supplies the snapshot sent on connect and
// may be nil.
func NewHub(current func() weightstate.Snapshot) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		current:      current,
		writeTimeout: 5 * time.Second,
		updates:      make(chan weightstate.Snapshot, publishBuffer),
	}
}

func MessageFrom(snap weightstate.Snapshot) Message {
	msg := Message{
		Peso:  scaleutils.FormatWeight(snap.LastWeight),
		Fecha: scaleutils.FormatTimestamp(snap.LastMeasuredAt),
	}
	if snap.DetectedProtocol != "" {
		p := snap.DetectedProtocol
		msg.Protocolo = &p
	}
	return msg
}

// ServeHTTP upgrades the request and holds the connection until the client
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn}
	h.add(c)
	log.Debug().Msgf("websocket client connected from %s", r.RemoteAddr)

	if h.current != nil {
		if err := h.write(c, MessageFrom(h.current())); err != nil {
			h.remove(c)
			return
		}
	}

	// Incoming messages are ignored. A read error means the client left.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

// Broadcast sends snap to every client. Clients that fail the write are
// dropped.
func (h *Hub) Broadcast(snap weightstate.Snapshot) {
	msg := MessageFrom(snap)

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := h.write(c, msg); err != nil {
			log.Debug().Err(err).Msg("dropping websocket client")
			h.remove(c)
		}
	}
}

// Publish queues snap for Run without blocking. It reports false when the
// queue is full and snap was dropped.
func (h *Hub) Publish(snap weightstate.Snapshot) bool {
	select {
	case h.updates <- snap:
		return true
	default:
		log.Debug().Msg("live feed queue full, dropping snapshot")
		return false
	}
}

// Run broadcasts published snapshots until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-h.updates:
			h.Broadcast(snap)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client. Hijacked connections are not closed by
// http.Server.Shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.mu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second),
		)
		c.mu.Unlock()
		_ = c.conn.Close()
	}
}

func (h *Hub) write(c *client, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
	}
}
