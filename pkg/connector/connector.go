// Package connector defines the broker boundary used by the client engine and ships two
// implementations: a TCP connector for a running broker and an in-memory broker for tests
// and local runs.
package connector

import (
	"context"

	"github.com/downfa11-org/logstream/pkg/types"
)

// Connector is the session to a broker. Implementations must be safe for concurrent use:
// the producer and consumer loops share one Connector.
//
// Lookups return types.ErrNotFound when the entity is absent. Creations return
// types.ErrAlreadyExists when the name or id is taken.
type Connector interface {
	Connect(ctx context.Context) error
	Login(ctx context.Context, username, password string) error

	GetStream(ctx context.Context, name string) (*types.Stream, error)
	CreateStream(ctx context.Context, name string, id uint32) (*types.Stream, error)
	GetTopic(ctx context.Context, streamID uint32, name string) (*types.Topic, error)
	CreateTopic(ctx context.Context, streamID uint32, name string, partitionsCount uint32, replicationFactor uint8, id uint32) (*types.Topic, error)

	Send(ctx context.Context, req types.SendRequest) (*types.AckResponse, error)
	Poll(ctx context.Context, req types.PollRequest) (*types.PolledMessages, error)

	StoreOffset(ctx context.Context, consumer types.Consumer, streamID, topicID, partition uint32, offset uint64) error
	// GetOffset returns types.ErrNotFound when nothing was stored for the consumer.
	GetOffset(ctx context.Context, consumer types.Consumer, streamID, topicID, partition uint32) (uint64, error)

	Close() error
}
