// Package hub provides a websocket broadcast hub using the channel-based
// fan-out pattern. Camera frames and selection events each get their own hub.
package hub

// MessageType selects the websocket frame a Message is written as.
type MessageType int

const (
	// JSONMessage is written as a text frame; selection events use it.
	JSONMessage MessageType = iota
	// BinaryMessage is written as a binary frame; encoded camera JPEGs use it.
	BinaryMessage
)

// Message is one queued payload. Data is shared by every viewer of a
// broadcast and must not be modified after it is queued.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage wraps already-marshalled JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps an encoded frame.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}
