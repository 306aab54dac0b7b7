// Package mocks holds testify mocks for the connector boundary.
package mocks

import (
	"context"

	"github.com/downfa11-org/logstream/pkg/connector"
	"github.com/downfa11-org/logstream/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockConnector struct {
	mock.Mock
}

var _ connector.Connector = (*MockConnector)(nil)

func (m *MockConnector) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockConnector) Login(ctx context.Context, username, password string) error {
	args := m.Called(ctx, username, password)
	return args.Error(0)
}

func (m *MockConnector) GetStream(ctx context.Context, name string) (*types.Stream, error) {
	args := m.Called(ctx, name)
	s, _ := args.Get(0).(*types.Stream)
	return s, args.Error(1)
}

func (m *MockConnector) CreateStream(ctx context.Context, name string, id uint32) (*types.Stream, error) {
	args := m.Called(ctx, name, id)
	s, _ := args.Get(0).(*types.Stream)
	return s, args.Error(1)
}

func (m *MockConnector) GetTopic(ctx context.Context, streamID uint32, name string) (*types.Topic, error) {
	args := m.Called(ctx, streamID, name)
	t, _ := args.Get(0).(*types.Topic)
	return t, args.Error(1)
}

func (m *MockConnector) CreateTopic(ctx context.Context, streamID uint32, name string, partitionsCount uint32, replicationFactor uint8, id uint32) (*types.Topic, error) {
	args := m.Called(ctx, streamID, name, partitionsCount, replicationFactor, id)
	t, _ := args.Get(0).(*types.Topic)
	return t, args.Error(1)
}

func (m *MockConnector) Send(ctx context.Context, req types.SendRequest) (*types.AckResponse, error) {
	args := m.Called(ctx, req)
	ack, _ := args.Get(0).(*types.AckResponse)
	return ack, args.Error(1)
}

func (m *MockConnector) Poll(ctx context.Context, req types.PollRequest) (*types.PolledMessages, error) {
	args := m.Called(ctx, req)
	p, _ := args.Get(0).(*types.PolledMessages)
	return p, args.Error(1)
}

func (m *MockConnector) StoreOffset(ctx context.Context, consumer types.Consumer, streamID, topicID, partition uint32, offset uint64) error {
	args := m.Called(ctx, consumer, streamID, topicID, partition, offset)
	return args.Error(0)
}

func (m *MockConnector) GetOffset(ctx context.Context, consumer types.Consumer, streamID, topicID, partition uint32) (uint64, error) {
	args := m.Called(ctx, consumer, streamID, topicID, partition)
	off, _ := args.Get(0).(uint64)
	return off, args.Error(1)
}

func (m *MockConnector) Close() error {
	args := m.Called()
	return args.Error(0)
}
