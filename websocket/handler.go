package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/contrib/websocket"

	"cuwep/utils"
)

// broadcastInterval is how often the loading-message push fires
const broadcastInterval = 10 * time.Second

// HandleStream manages the lifecycle of one /ws/stream client: it
// registers the connection, answers "my_message" frames directly and
// turns "stream" frames into hub-wide broadcasts.
func HandleStream(c *websocket.Conn, hub *Hub) {
	defer c.Close()

	conn := NewConnection(c)
	hub.RegisterConnection(conn)
	hub.StartBroadcaster(broadcastInterval)

	if greeting, err := json.Marshal(StreamMessage{Type: TypeMyResponse, Content: "Connected"}); err == nil {
		conn.Enqueue(greeting)
	}

	// Writer goroutine. All frames leave through conn.Send so writes
	// never interleave; conn.Done ends it when the hub drops us.
	go func() {
		for {
			select {
			case message := <-conn.Send:
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					utils.LogDebug("WebSocket write failed", "conn_id", conn.ID, "error", err.Error())
					return
				}
			case <-conn.Done():
				c.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
		}
	}()

	defer hub.UnregisterConnection(conn)

	for {
		var msg StreamMessage
		if err := c.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.LogDebug("WebSocket read failed", "conn_id", conn.ID, "error", err.Error())
			}
			return
		}

		switch msg.Type {
		case TypeMyMessage:
			reply, err := json.Marshal(StreamMessage{
				Type:    TypeMyResponse,
				Content: fmt.Sprintf("Your message %q is stupid!", msg.Content),
			})
			if err != nil {
				continue
			}
			conn.Enqueue(reply)

		case TypeStream:
			hub.Broadcast(StreamMessage{
				Type:    TypeStreamResponse,
				Content: RandomLoadingMessage(),
			})
		}
	}
}
