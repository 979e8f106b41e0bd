// Package hub implements the dashboard fan-out using the actor pattern.
//
// A single goroutine owns the subscriber set and consumes commands from a
// channel (no mutexes), so connects and disconnects interleave safely with
// broadcasts. Per-connection write goroutines isolate slow clients: a full
// writer buffer skips that client, it never blocks the publisher.
package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/domain"
	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/metrics"
)

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	conn  *websocket.Conn
	errCh chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	conn *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdPublish struct {
	data []byte
}

func (cmdPublish) hubCmd() {}

type cmdClientCount struct {
	replyCh chan int
}

func (cmdClientCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

type initMessage struct {
	Type     string              `json:"type"`
	Channels domain.InitSnapshot `json:"channels"`
}

type updateMessage struct {
	Type string `json:"type"`
	domain.Update
}

// SnapshotFunc produces the full aggregation state for a new subscriber.
type SnapshotFunc func() domain.InitSnapshot

type Hub struct {
	cmdCh      chan hubCmd
	clients    map[*websocket.Conn]*clientWriter
	snapshot   SnapshotFunc
	clock      clockwork.Clock
	maxClients int
	done       chan struct{}
}

func NewHub(snapshot SnapshotFunc, maxClients int, clock clockwork.Clock) *Hub {
	h := &Hub{
		cmdCh:      make(chan hubCmd, 256),
		clients:    make(map[*websocket.Conn]*clientWriter),
		snapshot:   snapshot,
		clock:      clock,
		maxClients: maxClients,
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

// Register adds a subscriber. Its first queued message is an init snapshot
// equal to the aggregation state at registration time; updates published
// afterwards follow in order.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- cmdRegister{conn: conn, errCh: errCh}
	return <-errCh
}

// Unregister removes a subscriber. Idempotent.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.cmdCh <- cmdUnregister{conn: conn}
}

// Publish fans the update out to every subscriber, best-effort.
func (h *Hub) Publish(u domain.Update) {
	data, err := json.Marshal(updateMessage{Type: "update", Update: u})
	if err != nil {
		slog.Error("Failed to marshal update message", "error", err)
		return
	}
	h.cmdCh <- cmdPublish{data: data}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdClientCount{replyCh: replyCh}
	return <-replyCh
}

// Stop closes all subscriber connections and terminates the actor.
// Blocks until the hub goroutine has exited.
func (h *Hub) Stop() {
	h.cmdCh <- cmdStop{}
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.conn)
		case cmdPublish:
			h.handlePublish(c.data)
		case cmdClientCount:
			c.replyCh <- len(h.clients)
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	if len(h.clients) >= h.maxClients {
		slog.Warn("Rejecting client: max clients reached", "max_clients", h.maxClients)
		c.conn.Close()
		c.errCh <- fmt.Errorf("max clients (%d) reached", h.maxClients)
		return
	}

	data, err := json.Marshal(initMessage{Type: "init", Channels: h.snapshot()})
	if err != nil {
		slog.Error("Failed to marshal init snapshot", "error", err)
		c.conn.Close()
		c.errCh <- err
		return
	}

	cw := newClientWriter(uuid.New(), c.conn, h.clock)
	// The writer buffer is fresh, so the init message always fits and is
	// delivered before any update published after this point.
	cw.sendCh <- data
	h.clients[c.conn] = cw

	metrics.ConnectedClients.Set(float64(len(h.clients)))
	slog.Debug("Client registered", "client_id", cw.id.String(), "total_clients", len(h.clients))
	c.errCh <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cw, exists := h.clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(h.clients, conn)

	metrics.ConnectedClients.Set(float64(len(h.clients)))
	slog.Debug("Client unregistered", "client_id", cw.id.String(), "remaining_clients", len(h.clients))
}

func (h *Hub) handlePublish(data []byte) {
	for _, cw := range h.clients {
		select {
		case cw.sendCh <- data:
			metrics.BroadcastsTotal.Inc()
		default:
			// client is slow; skip this update rather than block
			metrics.BroadcastsSkippedTotal.Inc()
		}
	}
}

func (h *Hub) handleStop() {
	for conn, cw := range h.clients {
		cw.stop()
		delete(h.clients, conn)
	}
	metrics.ConnectedClients.Set(0)
}
