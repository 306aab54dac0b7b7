package types

import "github.com/google/uuid"

// Message is a single record of a partition. Producers fill Payload (and optionally ID);
// Offset, Partition and Timestamp are assigned by the broker.
type Message struct {
	ID        uuid.UUID
	Offset    uint64
	Partition uint32
	Timestamp int64
	Payload   []byte
}

func (m Message) String() string {
	return string(m.Payload)
}

// NewMessage builds a producer-side message with a random id.
func NewMessage(payload []byte) Message {
	return Message{ID: uuid.New(), Payload: payload}
}

// Batch is the unit of a produce call and of a poll response.
type Batch struct {
	StreamID  uint32
	TopicID   uint32
	Partition uint32
	// CurrentOffset is the partition's latest offset; set on poll responses only.
	CurrentOffset uint64
	Messages      []Message
}

// PolledMessages is the result of a single poll.
type PolledMessages struct {
	Partition     uint32
	CurrentOffset uint64
	Messages      []Message
}

// AckResponse acknowledges a produced batch.
type AckResponse struct {
	Status     string `json:"status"`
	Partition  uint32 `json:"partition"`
	BaseOffset uint64 `json:"base_offset"`
	LastOffset uint64 `json:"last_offset"`
	Count      int    `json:"count"`
	ErrorMsg   string `json:"error,omitempty"`
}
