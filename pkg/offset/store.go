// Package offset persists consumer cursors between runs.
package offset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/downfa11-org/logstream/pkg/config"
	"github.com/downfa11-org/logstream/pkg/connector"
	"github.com/downfa11-org/logstream/pkg/types"
)

// Key addresses one consumer's cursor on one partition.
type Key struct {
	Consumer  types.Consumer
	StreamID  uint32
	TopicID   uint32
	Partition uint32
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%d/%s", k.StreamID, k.TopicID, k.Partition, k.Consumer)
}

// Store saves the next offset to read. Load returns types.ErrNotFound for a key that
// was never saved.
type Store interface {
	Load(ctx context.Context, key Key) (uint64, error)
	Save(ctx context.Context, key Key, next uint64) error
	Close() error
}

// Memory keeps offsets for the lifetime of the process.
type Memory struct {
	mu      sync.RWMutex
	offsets map[Key]uint64
}

func NewMemory() *Memory {
	return &Memory{offsets: make(map[Key]uint64)}
}

func (m *Memory) Load(_ context.Context, key Key) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	off, ok := m.offsets[key]
	if !ok {
		return 0, fmt.Errorf("offset %s: %w", key, types.ErrNotFound)
	}
	return off, nil
}

func (m *Memory) Save(_ context.Context, key Key, next uint64) error {
	m.mu.Lock()
	m.offsets[key] = next
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

// Broker stores offsets on the broker through the connector.
type Broker struct {
	conn connector.Connector
}

func NewBroker(conn connector.Connector) *Broker {
	return &Broker{conn: conn}
}

func (b *Broker) Load(ctx context.Context, key Key) (uint64, error) {
	return b.conn.GetOffset(ctx, key.Consumer, key.StreamID, key.TopicID, key.Partition)
}

func (b *Broker) Save(ctx context.Context, key Key, next uint64) error {
	return b.conn.StoreOffset(ctx, key.Consumer, key.StreamID, key.TopicID, key.Partition, next)
}

// Close leaves the connector open; it belongs to the session.
func (b *Broker) Close() error { return nil }

// New builds the store selected by cfg.OffsetBackend.
func New(cfg *config.ClientConfig, conn connector.Connector) (Store, error) {
	switch cfg.OffsetBackend {
	case config.OffsetBackendMemory, "":
		return NewMemory(), nil
	case config.OffsetBackendBroker:
		if conn == nil {
			return nil, errors.New("broker offset backend requires a connector")
		}
		return NewBroker(conn), nil
	case config.OffsetBackendEtcd:
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		return NewEtcd(EtcdConfig{
			Endpoints:   cfg.EtcdEndpoints,
			Prefix:      cfg.EtcdPrefix,
			DialTimeout: timeout,
		})
	default:
		return nil, fmt.Errorf("unknown offset backend %q", cfg.OffsetBackend)
	}
}
