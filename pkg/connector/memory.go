package connector

import (
	"context"
	"errors"
	"sync"

	"github.com/downfa11-org/logstream/pkg/types"
)

var (
	ErrNotConnected  = errors.New("connector is not connected")
	ErrNotLoggedIn   = errors.New("session is not authenticated")
	ErrConnectorDone = errors.New("connector is closed")
)

// Memory is a Connector bound to an in-process Broker.
type Memory struct {
	broker *Broker

	mu        sync.Mutex
	connected bool
	loggedIn  bool
	closed    bool
}

var _ Connector = (*Memory)(nil)

func NewMemory(b *Broker) *Memory {
	return &Memory{broker: b}
}

func (m *Memory) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrConnectorDone
	}
	m.connected = true
	return nil
}

func (m *Memory) Login(ctx context.Context, username, password string) error {
	if err := m.ready(ctx, false); err != nil {
		return err
	}
	if err := m.broker.Authenticate(username, password); err != nil {
		return err
	}
	m.mu.Lock()
	m.loggedIn = true
	m.mu.Unlock()
	return nil
}

func (m *Memory) ready(ctx context.Context, needLogin bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.closed:
		return ErrConnectorDone
	case !m.connected:
		return ErrNotConnected
	case needLogin && !m.loggedIn:
		return ErrNotLoggedIn
	}
	return nil
}

func (m *Memory) GetStream(ctx context.Context, name string) (*types.Stream, error) {
	if err := m.ready(ctx, true); err != nil {
		return nil, err
	}
	return m.broker.GetStream(name)
}

func (m *Memory) CreateStream(ctx context.Context, name string, id uint32) (*types.Stream, error) {
	if err := m.ready(ctx, true); err != nil {
		return nil, err
	}
	return m.broker.CreateStream(name, id)
}

func (m *Memory) GetTopic(ctx context.Context, streamID uint32, name string) (*types.Topic, error) {
	if err := m.ready(ctx, true); err != nil {
		return nil, err
	}
	return m.broker.GetTopic(streamID, name)
}

func (m *Memory) CreateTopic(ctx context.Context, streamID uint32, name string, partitionsCount uint32, replicationFactor uint8, id uint32) (*types.Topic, error) {
	if err := m.ready(ctx, true); err != nil {
		return nil, err
	}
	return m.broker.CreateTopic(streamID, name, partitionsCount, replicationFactor, id)
}

func (m *Memory) Send(ctx context.Context, req types.SendRequest) (*types.AckResponse, error) {
	if err := m.ready(ctx, true); err != nil {
		return nil, err
	}
	return m.broker.Append(req)
}

func (m *Memory) Poll(ctx context.Context, req types.PollRequest) (*types.PolledMessages, error) {
	if err := m.ready(ctx, true); err != nil {
		return nil, err
	}
	return m.broker.Read(req)
}

func (m *Memory) StoreOffset(ctx context.Context, consumer types.Consumer, streamID, topicID, partition uint32, offset uint64) error {
	if err := m.ready(ctx, true); err != nil {
		return err
	}
	return m.broker.StoreOffset(consumer, streamID, topicID, partition, offset)
}

func (m *Memory) GetOffset(ctx context.Context, consumer types.Consumer, streamID, topicID, partition uint32) (uint64, error) {
	if err := m.ready(ctx, true); err != nil {
		return 0, err
	}
	return m.broker.GetOffset(consumer, streamID, topicID, partition)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.connected = false
	m.loggedIn = false
	return nil
}
