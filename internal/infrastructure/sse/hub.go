package sse

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/estate-hub/estate-hub/internal/domain/notification"
	"github.com/estate-hub/estate-hub/internal/domain/user"
)

const bufferSize = 64

// Client is one open event stream.
type Client struct {
	ID          string
	UserID      uuid.UUID
	Admin       bool
	ConnectedAt time.Time
	Messages    chan notification.Event
}

func NewClient(actor user.Actor) *Client {
	return &Client{
		ID:          uuid.NewString(),
		UserID:      actor.ID,
		Admin:       actor.Role == user.RoleAdmin,
		ConnectedAt: time.Now().UTC(),
		Messages:    make(chan notification.Event, bufferSize),
	}
}

// Hub pushes committed events to the connected recipients. A slow client
// misses events rather than blocking the publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		close(c.Messages)
		delete(h.clients, clientID)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish delivers e to every client whose user is a recipient, and to admins
// when the event asks for them.
func (h *Hub) Publish(_ context.Context, e notification.Event) error {
	recipients := make(map[uuid.UUID]struct{}, len(e.Recipients))
	for _, id := range e.Recipients {
		recipients[id] = struct{}{}
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		_, addressed := recipients[c.UserID]
		if addressed || (e.NotifyAdmins && c.Admin) {
			trySend(c, e)
		}
	}
	return nil
}

func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.Messages)
		delete(h.clients, id)
	}
}

func trySend(c *Client, e notification.Event) bool {
	select {
	case c.Messages <- e:
		return true
	default:
		return false
	}
}
