package websocket

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"pairgen/internal/dto"
	"pairgen/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	// broadcastBuffer bounds the number of pending progress messages.
	broadcastBuffer = 64
	// defaultWriteWait is how long a viewer may take to accept one message
	// before it is disconnected.
	defaultWriteWait = 5 * time.Second
)

// HubService fans progress messages out to every connected viewer. Publish
// never blocks: when the buffer is full the message is dropped. A viewer
// that stops reading is disconnected after writeWait.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	dropped    atomic.Int64
	writeWait  time.Duration
	logger     *logger.Logger
}

// NewHubService creates a hub. Run must be started before clients register.
func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		writeWait:  defaultWriteWait,
		logger:     logger,
	}
}

// Run serves register, unregister and broadcast requests until Stop.
func (h *HubService) Run() {
	for {
		select {
		case <-h.done:
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Debug("Progress viewer connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Debug("Progress viewer disconnected. Total: %d", count)

		case message := <-h.broadcast:
			h.send(message)
		}
	}
}

// send writes message to a snapshot of the viewers. The clients lock is not
// held while writing, and every write is bounded by writeWait.
func (h *HubService) send(message []byte) {
	h.mutex.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.RUnlock()

	for _, client := range clients {
		client.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Warning("Error sending progress message, dropping viewer: %v", err)
			h.mutex.Lock()
			delete(h.clients, client)
			h.mutex.Unlock()
			client.Close()
		}
	}
}

// Register adds a viewer connection.
func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes and closes a viewer connection.
func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues a progress event for every viewer without blocking.
func (h *HubService) Publish(event dto.ProgressEvent) {
	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to encode progress event: %v", err)
		return
	}

	select {
	case h.broadcast <- message:
	default:
		h.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded because the buffer was full.
func (h *HubService) Dropped() int {
	return int(h.dropped.Load())
}

// GetClientCount returns the number of connected viewers.
func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Stop ends Run and closes every viewer connection.
func (h *HubService) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}
