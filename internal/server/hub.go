package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	hubBufferSize    = 256
	clientBufferSize = 64
	writeWait        = 10 * time.Second
)

var errClientBacklog = errors.New("client send buffer full")

// Client owns one /ws connection. A single writer drains queue so frames
// reach the UI in the order they were sent.
type Client struct {
	id       string
	conn     *websocket.Conn
	queue    chan []byte
	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// Hub fans controller state out to every local UI connected on /ws.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan interface{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan interface{}, hubBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	logger := log.WithField("component", "hub")
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.shutdown()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			logger.WithFields(log.Fields{"client_id": client.id, "total": total}).Info("Client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.shutdown()
				logger.WithFields(log.Fields{"client_id": client.id, "total": len(h.clients)}).Info("Client disconnected")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				logger.WithError(err).Error("Marshal failed")
				continue
			}

			h.mu.Lock()
			for client := range h.clients {
				if client.enqueue(data) {
					continue
				}
				delete(h.clients, client)
				client.shutdown()
				logger.WithField("client_id", client.id).Warn("Client too slow, disconnecting")
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast never blocks; messages are dropped when the buffer is full.
func (h *Hub) Broadcast(message interface{}) {
	select {
	case h.broadcast <- message:
	default:
		log.WithField("component", "hub").Warn("Broadcast channel full, dropping message")
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func newClient(conn *websocket.Conn) *Client {
	c := &Client{
		id:      uuid.NewString(),
		conn:    conn,
		queue:   make(chan []byte, clientBufferSize),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go c.writePump()
	return c
}

func (c *Client) send(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	if !c.enqueue(data) {
		return errClientBacklog
	}
	return nil
}

func (c *Client) enqueue(data []byte) bool {
	select {
	case c.queue <- data:
		return true
	default:
		return false
	}
}

func (c *Client) writePump() {
	defer close(c.stopped)
	for {
		select {
		case data := <-c.queue:
			if err := c.write(data); err != nil {
				c.conn.Close()
				return
			}
		case <-c.stop:
			return
		}
	}
}

func (c *Client) write(data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.WithFields(log.Fields{"component": "hub", "client_id": c.id}).WithError(err).Debug("Write failed")
		return err
	}
	return nil
}

// shutdown stops the writer and closes the connection without waiting.
func (c *Client) shutdown() {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.conn.Close()
	})
}

// close shuts the client down and waits for its writer to exit.
func (c *Client) close() {
	c.shutdown()
	<-c.stopped
}

// Register reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
