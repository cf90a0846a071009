package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iamkanga/asxtracker-sub003/internal/logger"
	"github.com/iamkanga/asxtracker-sub003/internal/models"
)

// Engine is the alert surface the hub exposes to websocket clients.
type Engine interface {
	Feed() models.AlertFeed
	BadgeCounts() models.BadgeCounts
	Pin(hit models.Hit) (models.PinnedAlert, error)
	Unpin(hit models.Hit) error
	MarkViewed(scope models.BadgeScope) error
}

// RuleStore is the mutable rule surface.
type RuleStore interface {
	Current() models.Rule
	Set(rule models.Rule) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const (
	pingInterval = 45 * time.Second
	readDeadline = 90 * time.Second
	sendBuffer   = 64
)

type client struct {
	conn *websocket.Conn
	out  chan any
	done chan struct{}
}

// Hub fans the alert feed out to connected websocket clients and applies
// their control messages to the engine and rule store.
type Hub struct {
	engine Engine
	rules  RuleStore

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub(engine Engine, rules RuleStore) *Hub {
	return &Hub{
		engine:  engine,
		rules:   rules,
		clients: make(map[*client]struct{}),
	}
}

// Broadcast pushes a feed and badge update to every connected client. Its
// signature matches the engine's change callback so it can be subscribed
// directly. A client whose send buffer is full skips the update; the next
// one supersedes it anyway.
func (h *Hub) Broadcast(feed models.AlertFeed, counts models.BadgeCounts) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.send(feedMsg{Type: "feed", Feed: feed})
		c.send(badgeMsg{Type: "badges", Counts: counts})
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and runs the client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	cl := &client{conn: conn, out: make(chan any, sendBuffer), done: make(chan struct{})}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	logger.Info("WebSocket client connected (%d active)", n)

	go cl.writeLoop()

	// New clients get the current state up front.
	cl.send(feedMsg{Type: "feed", Feed: h.engine.Feed()})
	cl.send(badgeMsg{Type: "badges", Counts: h.engine.BadgeCounts()})
	cl.send(ruleMsg{Type: "rule", Rule: h.rules.Current()})

	h.readLoop(cl)

	close(cl.done)
	h.mu.Lock()
	delete(h.clients, cl)
	n = len(h.clients)
	h.mu.Unlock()
	logger.Info("WebSocket client disconnected (%d active)", n)
}

func (h *Hub) readLoop(cl *client) {
	_ = cl.conn.SetReadDeadline(time.Now().Add(readDeadline))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})
	for {
		mt, data, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var ctrl controlMsg
		if err := json.Unmarshal(data, &ctrl); err != nil || ctrl.Type != "control" {
			continue
		}
		h.handleControl(cl, ctrl)
	}
}

func (h *Hub) handleControl(cl *client, ctrl controlMsg) {
	switch ctrl.Action {
	case "mark_viewed":
		if err := h.engine.MarkViewed(models.BadgeScope(ctrl.Scope)); err != nil {
			cl.sendError(ctrl.Action, err)
			return
		}
	case "pin":
		if ctrl.Hit == nil {
			cl.sendError(ctrl.Action, errMissingHit)
			return
		}
		if _, err := h.engine.Pin(*ctrl.Hit); err != nil {
			cl.sendError(ctrl.Action, err)
			return
		}
	case "unpin":
		if ctrl.Hit == nil {
			cl.sendError(ctrl.Action, errMissingHit)
			return
		}
		if err := h.engine.Unpin(*ctrl.Hit); err != nil {
			cl.sendError(ctrl.Action, err)
			return
		}
	case "set_rule":
		if ctrl.Rule == nil {
			cl.sendError(ctrl.Action, errMissingRule)
			return
		}
		if err := h.rules.Set(*ctrl.Rule); err != nil {
			cl.sendError(ctrl.Action, err)
			return
		}
	default:
		logger.Debug("Ignoring unknown control action %q", ctrl.Action)
		cl.send(ackMsg{Type: "error", Action: ctrl.Action, Text: "unknown action"})
		return
	}
	cl.send(ackMsg{Type: "ack", Action: ctrl.Action})
}

func (c *client) writeLoop() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case v := <-c.out:
			if err := c.conn.WriteJSON(v); err != nil {
				return
			}
		case <-ping.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) send(v any) {
	select {
	case c.out <- v:
	default:
	}
}

func (c *client) sendError(action string, err error) {
	c.send(ackMsg{Type: "error", Action: action, Text: err.Error()})
}
