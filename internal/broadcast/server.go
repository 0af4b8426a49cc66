// Package broadcast serves a live operator dashboard over a websocket:
// every instrument's current price and position, fanned out to any number
// of connected clients on a fixed interval. Optional — nothing in the
// decision path depends on it.
//
// Grounded on the teacher's internal/broadcast.Hub: a register/unregister
// channel pair plus a per-client buffered send channel, generalized from
// MsgPack candle-engine snapshots to JSON instrument snapshots (no MsgPack
// dependency is wired elsewhere in this module, and JSON keeps the wire
// format readable from a browser devtools tab without a decoder).
package broadcast

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Snapshot is one instrument's dashboard row.
type Snapshot struct {
	Instrument  string  `json:"instrument"`
	Price       float64 `json:"price"`
	HasPosition bool    `json:"has_position"`
	EntryPrice  float64 `json:"entry_price,omitempty"`
	ProfitRate  float64 `json:"profit_rate,omitempty"`
}

// Source supplies the current snapshot set on every broadcast tick.
// Callers typically adapt orchestrator.Orchestrator.Snapshots into this.
type Source func() []Snapshot

// Server maintains connected dashboard clients and broadcasts Source's
// output to all of them once per interval.
type Server struct {
	source     Source
	interval   time.Duration
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
}

func NewServer(source Source, interval time.Duration) *Server {
	return &Server{
		source:     source,
		interval:   interval,
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Start registers the /ws handler on mux and runs the broadcast loop until
// stop is closed.
func (s *Server) Start(mux *http.ServeMux, stop <-chan struct{}) {
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.serveWS(w, r)
	})
	go s.run(stop)
}

func (s *Server) run(stop <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			for c := range s.clients {
				close(c.send)
			}
			return
		case c := <-s.register:
			s.clients[c] = true
			log.Printf("broadcast: client connected (%d total)", len(s.clients))
		case c := <-s.unregister:
			if _, ok := s.clients[c]; ok {
				delete(s.clients, c)
				close(c.send)
				log.Printf("broadcast: client disconnected (%d total)", len(s.clients))
			}
		case <-ticker.C:
			msg, err := json.Marshal(s.source())
			if err != nil {
				log.Printf("broadcast: marshal snapshot: %v", err)
				continue
			}
			for c := range s.clients {
				select {
				case c.send <- msg:
				default:
					// slow client; drop this tick rather than block the loop
				}
			}
		}
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("broadcast: upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 16)}
	s.register <- c

	go c.writePump()
	c.readPump(s.unregister)
}

func (c *client) readPump(unregister chan<- *client) {
	defer func() {
		unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
