// Package ws pushes board events to browser clients over websockets.
package ws

import (
	"context"
	"sync"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/screamboard/screamboard/internal/logger"
)

// Message is the frame sent to clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub tracks connected clients and fans out published events.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	count      chan chan int
	done       chan struct{}
	stopOnce   sync.Once
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan chan int),
		done:       make(chan struct{}),
	}
}

// Publish queues an event for every client. It never blocks; events are
// dropped when the queue is full.
func (h *Hub) Publish(eventType string, data interface{}) {
	frame, err := json.Marshal(Message{Type: eventType, Data: data})
	if err != nil {
		logger.Log.Error("Failed to encode websocket message", zap.String("type", eventType), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- frame:
	default:
		logger.Log.Warn("Websocket broadcast queue full, dropping event", zap.String("type", eventType))
	}
}

// Clients returns the number of connected clients, or 0 once the hub stopped.
func (h *Hub) Clients() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Serve runs the hub until ctx is cancelled, then disconnects every client.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.stopOnce.Do(func() { close(h.done) })
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			logger.Log.Info("Websocket hub stopped")
			return ctx.Err()

		case client := <-h.register:
			h.clients[client] = struct{}{}
			logger.Log.Debug("Websocket client connected", zap.String("client_id", client.id), zap.Int("clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				logger.Log.Debug("Websocket client disconnected", zap.String("client_id", client.id), zap.Int("clients", len(h.clients)))
			}

		case frame := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- frame:
				default:
					// Slow consumer.
					delete(h.clients, client)
					close(client.send)
				}
			}

		case reply := <-h.count:
			reply <- len(h.clients)
		}
	}
}

func (h *Hub) String() string {
	return "websocket-hub"
}
