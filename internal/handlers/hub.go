// internal/handlers/hub.go
package handlers

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var errAlreadyConnected = errors.New("player already connected")

// Client is one player's live gateway connection. Outbound messages go
// through OutChan and are written by the connection's write pump.
type Client struct {
	PlayerID string
	OutChan  chan interface{}

	// roomID is only touched by the connection's read loop.
	roomID string

	log *logrus.Logger
}

func newClient(playerID string, logger *logrus.Logger) *Client {
	return &Client{
		PlayerID: playerID,
		OutChan:  make(chan interface{}, 16),
		log:      logger,
	}
}

// Write pushes a message onto the OutChan non-blockingly. Logs if dropped.
func (c *Client) Write(msg interface{}) {
	select {
	case c.OutChan <- msg:
	default:
		c.log.WithField("player", c.PlayerID).Warn("OutChan full, dropping message")
	}
}

// Hub maps player ids to their connection.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Register adds c unless the player already has a connection.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.PlayerID]; ok {
		return errAlreadyConnected
	}
	h.clients[c.PlayerID] = c
	return nil
}

// Unregister removes c if it is still the player's connection.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.PlayerID]; ok && cur == c {
		delete(h.clients, c.PlayerID)
	}
}

// Send queues msg for playerID and reports whether the player is connected.
func (h *Hub) Send(playerID string, msg interface{}) bool {
	h.mu.Lock()
	c, ok := h.clients[playerID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	c.Write(msg)
	return true
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
