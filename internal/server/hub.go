// Package server coordinates client registration, event delivery, and
// connection cleanup for the relay via the Hub type.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AmoghxAnubis/Agora/internal/protocol"
	"github.com/AmoghxAnubis/Agora/internal/room"
	"github.com/samber/lo"
)

// Hub owns every live WebSocket client and the room coordinator. It runs the
// registration loop and implements room.Sink, turning coordinator events into
// frames queued on the recipient's send buffer.
type Hub struct {
	cfg        Config
	log        *slog.Logger
	rooms      *room.Coordinator
	clients    map[room.ConnectionID]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub with its own room coordinator. Call Run before
// registering clients.
func NewHub(cfg Config, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:        cfg,
		log:        log,
		clients:    make(map[room.ConnectionID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	h.rooms = room.NewCoordinator(h, log)
	return h
}

// Rooms returns the hub's room coordinator.
func (h *Hub) Rooms() *room.Coordinator {
	return h.rooms
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Register hands a client to the hub, which starts its pumps.
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.ctx.Done():
		return ErrHubStopped
	}
}

func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// frame is an event already rendered by Prepare.
type frame struct {
	room.Event
	bytes []byte
}

// Prepare renders evt once so a fan-out does not encode it per recipient.
func (h *Hub) Prepare(evt room.Event) (room.Event, error) {
	if _, ok := evt.(frame); ok {
		return evt, nil
	}
	bytes, err := protocol.Encode(evt)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", evt.Type(), err)
	}
	return frame{Event: evt, bytes: bytes}, nil
}

// Deliver queues evt for the connection without blocking. A recipient whose
// buffer is full is evicted; one that is already gone is skipped.
func (h *Hub) Deliver(to room.ConnectionID, evt room.Event) error {
	prepared, err := h.Prepare(evt)
	if err != nil {
		return err
	}

	h.mutex.RLock()
	client, ok := h.clients[to]
	h.mutex.RUnlock()
	if !ok {
		return ErrUnknownConnection
	}

	err = h.safeSend(client, prepared.(frame).bytes)
	if errors.Is(err, ErrSendBufferFull) {
		h.evict(client)
	}
	return err
}

func (h *Hub) safeSend(client *Client, message []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Recovered from panic in safeSend", "panic", r)
			err = ErrUnknownConnection
		}
	}()

	// Hold the lock during the entire send so the channel cannot be closed underneath
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if current, exists := h.clients[client.id]; !exists || current != client || client.closed {
		return ErrUnknownConnection
	}

	select {
	case client.send <- message:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// evict unregisters a client that cannot keep up. Closing its send channel
// stops the write pump, which closes the connection and ends the read pump.
func (h *Hub) evict(client *Client) {
	client.log.Warn("Evicting client with full send buffer")
	go h.unregisterClient(client)
}

// Run starts the hub's main event loop, handling client registration and
// unregistration. It returns once Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("Received nil client registration; skipping")
				continue
			}
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()
	client.log.Info("Client registered", "clients", clientCount)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	if current, ok := h.clients[client.id]; !ok || current != client {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.id)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock
	close(client.send)
	client.log.Info("Client unregistered", "clients", clientCount)
}

// shutdownClients closes every connection and send buffer so both pumps exit
func (h *Hub) shutdownClients() {
	h.log.Info("Shutting down all client connections...")

	h.mutex.Lock()
	clients := lo.Values(h.clients)
	h.clients = make(map[room.ConnectionID]*Client)
	for _, client := range clients {
		client.closed = true
	}
	h.mutex.Unlock()

	for _, client := range clients {
		close(client.send)
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				client.log.Warn("Error closing client connection", "error", err)
			}
		}
	}

	h.log.Info("Closed client connections", "count", len(clients))
}

// Shutdown stops the hub, waits for all client goroutines to complete and
// drops every room. It returns context.DeadlineExceeded when the pumps do not
// finish within timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	defer h.rooms.Close()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
