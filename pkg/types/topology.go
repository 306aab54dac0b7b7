package types

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// MaxNameLength bounds stream and topic names.
const MaxNameLength = 255

// Stream is a top-level namespace grouping topics.
type Stream struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
}

// Topic is a partitioned unit of storage within a stream.
type Topic struct {
	ID                uint32 `json:"id"`
	StreamID          uint32 `json:"stream_id"`
	Name              string `json:"name"`
	PartitionsCount   uint32 `json:"partitions_count"`
	ReplicationFactor uint8  `json:"replication_factor"`
}
