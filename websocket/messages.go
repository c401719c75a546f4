package websocket

// Message types exchanged on /ws/stream.
const (
	TypeMyMessage      = "my_message"
	TypeMyResponse     = "my_response"
	TypeStream         = "stream"
	TypeStreamResponse = "stream_response"
)

// StreamMessage is the envelope for every frame on the stream socket
type StreamMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}
