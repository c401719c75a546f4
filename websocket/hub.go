package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"cuwep/metrics"
	"cuwep/utils"
)

// Connection represents a single client attached to the stream socket.
// Send is never closed; Close signals the writer through done instead,
// so frames can be queued from any goroutine without racing shutdown.
type Connection struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// NewConnection wraps an upgraded socket with a buffered outbound queue
func NewConnection(c *websocket.Conn) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Conn: c,
		Send: make(chan []byte, 256),
		done: make(chan struct{}),
	}
}

// Enqueue queues a frame for the writer goroutine. Returns false when
// the connection is closed or its buffer is full; the frame is dropped.
func (c *Connection) Enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Close signals the writer to stop. Safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Done reports connection shutdown to the writer goroutine
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Hub fans broadcast frames out to every connected stream client
type Hub struct {
	connections map[string]*Connection
	register    chan *Connection
	unregister  chan *Connection
	broadcast   chan []byte
	done        chan struct{}
	mu          sync.RWMutex

	broadcasterOnce sync.Once
}

// NewHub creates a hub; call Run in its own goroutine before registering
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan []byte),
		done:        make(chan struct{}),
	}
}

// RegisterConnection schedules a connection to be added to the hub.
func (h *Hub) RegisterConnection(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

// UnregisterConnection schedules a connection to be removed from the hub.
func (h *Hub) UnregisterConnection(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Broadcast queues a frame for every connected client
func (h *Hub) Broadcast(msg StreamMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		utils.LogError("WS_BROADCAST_MARSHAL", err)
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// ClientCount reports the number of registered connections
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Run is the hub's event loop. It owns the connection map; all map
// mutation happens here.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			metrics.UpdateWebSocketConnections(len(h.connections))
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, exists := h.connections[conn.ID]; exists {
				delete(h.connections, conn.ID)
				conn.Close()
			}
			metrics.UpdateWebSocketConnections(len(h.connections))
			h.mu.Unlock()

		case data := <-h.broadcast:
			h.mu.Lock()
			for id, conn := range h.connections {
				if !conn.Enqueue(data) {
					// Slow consumer, drop it rather than stall the hub
					delete(h.connections, id)
					conn.Close()
				}
			}
			metrics.UpdateWebSocketConnections(len(h.connections))
			h.mu.Unlock()
		}
	}
}

// StartBroadcaster launches the periodic loading-message push. Safe to
// call on every connection; only the first call spawns the goroutine.
func (h *Hub) StartBroadcaster(interval time.Duration) {
	h.broadcasterOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-h.done:
					return
				case <-ticker.C:
					h.Broadcast(StreamMessage{
						Type:    TypeStreamResponse,
						Content: RandomLoadingMessage(),
					})
				}
			}
		}()
	})
}

// Stop shuts down the hub and the broadcaster goroutine
func (h *Hub) Stop() {
	close(h.done)
}
