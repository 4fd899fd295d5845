package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gigBack/internal/models"
)

// Logger is shared with the rest of the server.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Filter selects the events a connection receives. Empty fields match anything.
type Filter struct {
	EngagementID string
	PerformerID  string
	VenueID      string
}

func (f Filter) match(ev models.Event) bool {
	return (f.EngagementID == "" || f.EngagementID == ev.EngagementID) &&
		(f.PerformerID == "" || f.PerformerID == ev.PerformerID) &&
		(f.VenueID == "" || f.VenueID == ev.VenueID)
}

type client struct {
	conn   *websocket.Conn
	filter Filter
	wmu    sync.Mutex
}

// EventHub streams booking events to websocket clients.
type EventHub struct {
	upgrader websocket.Upgrader
	logger   Logger

	mu    sync.RWMutex
	conns map[*client]struct{}
}

func NewEventHub(logger Logger) *EventHub {
	return &EventHub{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:   logger,
		conns:    make(map[*client]struct{}),
	}
}

// ServeWS upgrades the request and registers the connection with the filter
// taken from the query string.
func (h *EventHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		EngagementID: q.Get("engagement_id"),
		PerformerID:  q.Get("performer_id"),
		VenueID:      q.Get("venue_id"),
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("event ws upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn, filter: filter}
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	go h.readLoop(c)
}

// readLoop only watches for the close frame; clients do not send data.
func (h *EventHub) readLoop(c *client) {
	defer h.drop(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EventHub) drop(c *client) {
	h.mu.Lock()
	_, ok := h.conns[c]
	delete(h.conns, c)
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
	}
}

// Run broadcasts events until ctx is done or the channel closes, pinging
// idle clients so dead connections get reaped.
func (h *EventHub) Run(ctx context.Context, events <-chan models.Event) {
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case ev, ok := <-events:
			if !ok {
				h.closeAll()
				return
			}
			h.broadcast(ev)
		case <-ping.C:
			h.pingAll()
		}
	}
}

func (h *EventHub) broadcast(ev models.Event) {
	for _, c := range h.snapshot() {
		if !c.filter.match(ev) {
			continue
		}
		c.wmu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		err := c.conn.WriteJSON(ev)
		c.wmu.Unlock()
		if err != nil {
			h.logger.Errorf("send %s to event client failed: %v", ev.Type, err)
			h.drop(c)
		}
	}
}

func (h *EventHub) pingAll() {
	for _, c := range h.snapshot() {
		c.wmu.Lock()
		err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		c.wmu.Unlock()
		if err != nil {
			h.drop(c)
		}
	}
}

func (h *EventHub) snapshot() []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*client, 0, len(h.conns))
	for c := range h.conns {
		out = append(out, c)
	}
	return out
}

func (h *EventHub) closeAll() {
	for _, c := range h.snapshot() {
		h.drop(c)
	}
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
