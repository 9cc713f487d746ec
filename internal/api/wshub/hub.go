package wshub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/BearBump/FleetSync/internal/broker/kafka"
	"github.com/BearBump/FleetSync/internal/broker/messages"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

type client struct {
	conn    *websocket.Conn
	ownerID string
	send    chan []byte
}

// Hub рассылает события алертов подписчикам по owner_id.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

func New() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]map[*client]struct{}),
	}
}

func (h *Hub) add(c *client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.ownerID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.ownerID] = set
	}
	set[c] = struct{}{}
	return len(set)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.ownerID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.ownerID)
	}
}

// Subscribers returns the number of live connections for an owner.
func (h *Hub) Subscribers(ownerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[ownerID])
}

// ServeHTTP upgrades GET /ws/alerts?owner_id=... to a websocket.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		http.Error(w, `{"error":"owner_id is required"}`, http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade", "error", err)
		return
	}

	c := &client{conn: conn, ownerID: ownerID, send: make(chan []byte, sendBuffer)}
	n := h.add(c)
	slog.Info("websocket client connected", "owner_id", ownerID, "subscribers", n)

	hello, _ := json.Marshal(map[string]string{"type": "connected", "owner_id": ownerID})
	c.send <- hello

	go h.writePump(c)
	h.readPump(c)
}

// readPump только держит соединение и ловит закрытие клиентом.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
		slog.Info("websocket client disconnected", "owner_id", c.ownerID)
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type envelope struct {
	Type  string                `json:"type"`
	Alert messages.AlertRaised `json:"alert"`
}

// Broadcast sends an alert to every subscriber of its owner. Slow clients
// whose buffer is full miss the message.
func (h *Hub) Broadcast(a messages.AlertRaised) int {
	b, err := json.Marshal(envelope{Type: "alert", Alert: a})
	if err != nil {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for c := range h.clients[a.OwnerID] {
		select {
		case c.send <- b:
			sent++
		default:
			slog.Warn("websocket client too slow, alert dropped", "owner_id", a.OwnerID)
		}
	}
	return sent
}

// HandleKafka decodes a shipment.alerts record and broadcasts it.
func (h *Hub) HandleKafka(_ context.Context, rec kafka.Record) error {
	var a messages.AlertRaised
	if err := json.Unmarshal(rec.Value, &a); err != nil {
		return errors.Wrap(kafka.ErrMalformed, err.Error())
	}
	h.Broadcast(a)
	return nil
}
