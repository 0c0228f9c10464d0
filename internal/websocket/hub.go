// Package websocket fans newly scored records out to live feed clients.
// The feed carries score records only, never the underlying text.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/RAVBLACK/StrawHats/internal/domain"
	"github.com/RAVBLACK/StrawHats/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseHubCmd
	connection *websocket.Conn
}

type broadcastCmd struct {
	baseHubCmd
	payload []byte
}

type countCmd struct {
	baseHubCmd
	replyChannel chan int
}

type hubStopCmd struct {
	baseHubCmd
}

// Hub is the single live feed. All connection state lives inside its actor
// goroutine.
type Hub struct {
	cmdCh      chan hubCmd
	clock      clockwork.Clock
	clients    map[*websocket.Conn]*clientWriter
	maxClients int
	done       chan struct{}
}

func NewHub(clock clockwork.Clock, maxClients int) *Hub {
	h := &Hub{
		cmdCh:      make(chan hubCmd, 256),
		clock:      clock,
		clients:    make(map[*websocket.Conn]*clientWriter),
		maxClients: maxClients,
	}
	h.done = make(chan struct{})
	go h.run()
	return h
}

// Register adds a feed client. Returns an error when the client cap is hit.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- registerCmd{connection: conn, errorChannel: errCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.cmdCh <- unregisterCmd{connection: conn}
}

// Publish fans a score record out to every connected client. It never
// blocks the caller: a full command channel drops the update.
func (h *Hub) Publish(rec domain.ScoreRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("failed to marshal feed record", "error", err)
		return
	}
	select {
	case h.cmdCh <- broadcastCmd{payload: data}:
	default:
		slog.Warn("feed command channel full, dropping update", "index", rec.Index)
	}
}

// ClientCount returns the number of connected clients, or -1 on timeout.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- countCmd{replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case n := <-replyCh:
		return n
	case <-timer.Chan():
		slog.Warn("client count command timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop disconnects all clients and shuts the hub down.
func (h *Hub) Stop() {
	h.cmdCh <- hubStopCmd{}

	timer := h.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		slog.Info("feed hub stopped gracefully")
	case <-timer.Chan():
		slog.Warn("feed hub stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (h *Hub) run() {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("feed hub panic recovered", "panic", r)
			h.closeAll("feed hub failure")
		}
	}()

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			h.handleRegister(c)
		case unregisterCmd:
			h.handleUnregister(c.connection)
		case broadcastCmd:
			h.handleBroadcast(c.payload)
		case countCmd:
			c.replyChannel <- len(h.clients)
		case hubStopCmd:
			h.closeAll("server shutting down")
			return
		default:
			slog.Warn("feed hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if len(h.clients) >= h.maxClients {
		slog.Warn("rejecting feed client, cap reached", "max_clients", h.maxClients)
		c.connection.Close()
		c.errorChannel <- fmt.Errorf("max feed clients (%d) reached", h.maxClients)
		return
	}

	h.clients[c.connection] = newClientWriter(c.connection, h.clock)
	metrics.FeedClients.Set(float64(len(h.clients)))
	slog.Debug("feed client registered", "total_clients", len(h.clients))
	c.errorChannel <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cw, ok := h.clients[conn]
	if !ok {
		return
	}
	cw.stop()
	delete(h.clients, conn)
	metrics.FeedClients.Set(float64(len(h.clients)))
	slog.Debug("feed client unregistered", "remaining_clients", len(h.clients))
}

func (h *Hub) handleBroadcast(payload []byte) {
	var slow []*websocket.Conn
	for conn, cw := range h.clients {
		select {
		case cw.sendChannel <- payload:
		default:
			slow = append(slow, conn)
		}
	}
	for _, conn := range slow {
		slog.Warn("disconnecting slow feed client")
		h.handleUnregister(conn)
	}
}

func (h *Hub) closeAll(reason string) {
	for conn, cw := range h.clients {
		cw.stopGraceful(reason)
		delete(h.clients, conn)
	}
	metrics.FeedClients.Set(0)
}
