package livefeed

import (
	"time"

	"github.com/NotCoffee418/scale_gateway/pkg/helpers/syncutil"
	"github.com/NotCoffee418/scale_gateway/pkg/weightstate"
	"github.com/gorilla/websocket"
)

// Message is pushed to every client for each accepted reading.
type Message struct {
	Peso      string  `json:"peso"`
	Fecha     *string `json:"fecha"`
	Protocolo *string `json:"protocolo"`
}

type client struct {
	conn *websocket.Conn
	// gorilla allows one writer per connection.
	mu syncutil.Mutex
}

// Hub keeps the connected websocket clients.
type Hub struct {
	mu           syncutil.RWMutex
	clients      map[*client]struct{}
	upgrader     websocket.Upgrader
	current      func() weightstate.Snapshot
	writeTimeout time.Duration
	// Snapshots waiting for Run to broadcast them.
	updates chan weightstate.Snapshot
}
