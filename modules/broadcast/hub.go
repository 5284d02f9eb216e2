package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/TaelanSakay/PlayGround/modules/canvas"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
)

// ErrClientNotFound is returned when sending to an unknown connection.
var ErrClientNotFound = errors.New("client not found")

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is a connected websocket client.
type Client struct {
	ID   string
	Name string
	Conn Conn

	roomID  string
	writeMu sync.Mutex
}

func (c *Client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// Hub tracks connected clients and the rooms they are in, and fans
// messages out to them. It implements canvas.Transport.
type Hub struct {
	clients map[string]*Client
	rooms   map[string]map[string]bool
	done    chan struct{}
	mu      sync.RWMutex
	logger  types.Logger
}

var _ canvas.Transport = (*Hub)(nil)

// NewHub creates a new Hub.
func NewHub(logger types.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]bool),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Run blocks until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.logger.Info("Hub shutting down", "clients", h.ClientCount())
	h.closeAllClients()
	close(h.done)
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		_ = client.Conn.Close()
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]bool)
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	h.logger.Debug("Client registered", "clientID", client.ID, "name", client.Name)
}

// Unregister removes a client and its room membership.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	h.detach(client)
	delete(h.clients, clientID)
	h.logger.Debug("Client unregistered", "clientID", clientID, "name", client.Name)
}

// JoinRoom moves a client to a room.
func (h *Hub) JoinRoom(clientID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	h.detach(client)

	client.roomID = roomID
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]bool)
	}
	h.rooms[roomID][clientID] = true
}

// LeaveRoom removes a client from its current room.
func (h *Hub) LeaveRoom(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, ok := h.clients[clientID]; ok {
		h.detach(client)
	}
}

// detach must be called with h.mu held.
func (h *Hub) detach(client *Client) {
	if client.roomID == "" {
		return
	}
	if members := h.rooms[client.roomID]; members != nil {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, client.roomID)
		}
	}
	client.roomID = ""
}

// SendTo writes msg to a single client.
func (h *Hub) SendTo(ctx context.Context, clientID string, msg canvas.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", msg.Type, err)
	}

	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrClientNotFound, clientID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return client.write(data)
}

// Broadcast writes msg to every client in roomID except exceptID.
func (h *Hub) Broadcast(ctx context.Context, roomID, exceptID string, msg canvas.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", msg.Type, err)
	}

	h.mu.RLock()
	recipients := make([]*Client, 0, len(h.rooms[roomID]))
	for clientID := range h.rooms[roomID] {
		if clientID == exceptID {
			continue
		}
		if client, ok := h.clients[clientID]; ok {
			recipients = append(recipients, client)
		}
	}
	h.mu.RUnlock()

	h.deliver(ctx, recipients, msg.Type, data)
	return nil
}

// BroadcastAll writes msg to every connected client.
func (h *Hub) BroadcastAll(ctx context.Context, msg canvas.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", msg.Type, err)
	}

	h.mu.RLock()
	recipients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		recipients = append(recipients, client)
	}
	h.mu.RUnlock()

	h.deliver(ctx, recipients, msg.Type, data)
	return nil
}

func (h *Hub) deliver(ctx context.Context, recipients []*Client, msgType string, data []byte) {
	for _, client := range recipients {
		if ctx.Err() != nil {
			return
		}
		if err := client.write(data); err != nil {
			h.logger.Warn("Failed to send to client",
				"clientID", client.ID, "type", msgType, "error", err)
		}
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomClientCount returns the number of clients in a room.
func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
