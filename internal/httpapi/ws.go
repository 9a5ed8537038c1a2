package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/signalsfoundry/leo-route-optimizer/internal/dto"
	"github.com/signalsfoundry/leo-route-optimizer/internal/logging"
	"github.com/signalsfoundry/leo-route-optimizer/kb"
	"github.com/signalsfoundry/leo-route-optimizer/model"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsSendBuffer   = 4
)

// TopologyHub streams published topologies to websocket clients. Each client
// gets the latest topology on connect and every later publish; slow clients
// drop frames rather than block publishers.
type TopologyHub struct {
	upgrader websocket.Upgrader
	kb       *kb.KnowledgeBase
	log      logging.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool

	unsubscribe func()
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.send) })
}

func NewTopologyHub(k *kb.KnowledgeBase, log logging.Logger) *TopologyHub {
	if log == nil {
		log = logging.Noop()
	}
	h := &TopologyHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		kb:      k,
		log:     log,
		clients: map[*wsClient]struct{}{},
	}
	h.unsubscribe = k.Subscribe(h.onEvent)
	return h
}

// Clients reports the number of connected websocket clients.
func (h *TopologyHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unsubscribes from the knowledge base and disconnects every client.
func (h *TopologyHub) Close() {
	h.unsubscribe()
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
	h.mu.Unlock()
}

func (h *TopologyHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContextOr(r.Context(), h.log)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	log.Debug(r.Context(), "websocket client connected")

	if t, _, ok := h.kb.Latest(); ok {
		if frame, err := encodeFrame(t); err == nil {
			h.deliver(c, frame)
		}
	}

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *TopologyHub) onEvent(ev kb.Event) {
	if ev.Type != kb.EventTopologyPublished {
		return
	}
	frame, err := encodeFrame(ev.Topology)
	if err != nil {
		h.log.Warn(context.Background(), "encode topology frame failed", logging.Err(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		trySend(c, frame)
	}
}

func (h *TopologyHub) deliver(c *wsClient, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; ok {
		trySend(c, frame)
	}
}

// trySend must be called with the hub lock held so the channel cannot be
// closed underneath it.
func trySend(c *wsClient, frame []byte) {
	select {
	case c.send <- frame:
	default:
	}
}

// readLoop drains client messages until the connection fails, then
// unregisters the client.
func (h *TopologyHub) readLoop(c *wsClient) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			c.close()
		}
		h.mu.Unlock()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *TopologyHub) writeLoop(c *wsClient) {
	defer c.conn.Close()
	for frame := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteTimeout))
}

func encodeFrame(t model.Topology) ([]byte, error) {
	return json.Marshal(dto.NewSatellitesResponse(t))
}
