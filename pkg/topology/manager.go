// Package topology provisions streams and topics idempotently before the loops start.
package topology

import (
	"context"
	"errors"
	"fmt"

	"github.com/downfa11-org/logstream/pkg/config"
	"github.com/downfa11-org/logstream/pkg/connector"
	"github.com/downfa11-org/logstream/pkg/types"
	"github.com/downfa11-org/logstream/util"
	"golang.org/x/sync/singleflight"
)

// Outcome reports whether an ensure call created the entity.
type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeExists
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeExists:
		return "already exists"
	default:
		return "unknown"
	}
}

// Manager ensures streams and topics exist. Concurrent calls for the same name
// share one broker round trip.
type Manager struct {
	conn  connector.Connector
	group singleflight.Group
}

func NewManager(conn connector.Connector) *Manager {
	return &Manager{conn: conn}
}

type streamResult struct {
	stream  *types.Stream
	outcome Outcome
}

type topicResult struct {
	topic   *types.Topic
	outcome Outcome
}

// EnsureStream returns the stream called name, creating it with id when absent.
// An existing stream is returned untouched, even when its id differs.
func (m *Manager) EnsureStream(ctx context.Context, name string, id uint32) (*types.Stream, Outcome, error) {
	if err := config.ValidateName("stream", name); err != nil {
		return nil, 0, types.NewError(types.KindTopology, "ensure stream", err)
	}

	v, ran, err := m.do(ctx, "stream/"+name, func(ctx context.Context) (any, error) {
		return m.ensureStream(ctx, name, id)
	})
	if err != nil {
		return nil, 0, types.NewError(types.KindTopology, "ensure stream "+name, err)
	}
	res := v.(streamResult)
	s := *res.stream
	return &s, outcomeFor(res.outcome, ran), nil
}

// do runs fn once per key across concurrent callers. ran is true only for the caller
// whose fn executed. The shared call is detached from the leader's cancellation so
// every caller waits on its own ctx.
func (m *Manager) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, bool, error) {
	ran := false
	ch := m.group.DoChan(key, func() (any, error) {
		ran = true
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		return res.Val, ran, res.Err
	}
}

// outcomeFor reports a creation only to the caller that made it; coalesced callers
// found the entity already there.
func outcomeFor(o Outcome, ran bool) Outcome {
	if !ran {
		return OutcomeExists
	}
	return o
}

func (m *Manager) ensureStream(ctx context.Context, name string, id uint32) (streamResult, error) {
	s, err := m.conn.GetStream(ctx, name)
	if err == nil {
		util.Info("Stream '%s' already exists (id=%d)", s.Name, s.ID)
		return streamResult{stream: s, outcome: OutcomeExists}, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return streamResult{}, fmt.Errorf("lookup: %w", err)
	}

	s, err = m.conn.CreateStream(ctx, name, id)
	if err == nil {
		util.Info("Stream '%s' created (id=%d)", s.Name, s.ID)
		return streamResult{stream: s, outcome: OutcomeCreated}, nil
	}
	if !errors.Is(err, types.ErrAlreadyExists) {
		return streamResult{}, fmt.Errorf("create: %w", err)
	}

	// another client created it between our lookup and create
	s, err = m.conn.GetStream(ctx, name)
	if err != nil {
		return streamResult{}, fmt.Errorf("lookup after conflict: %w", err)
	}
	util.Info("Stream '%s' already exists (id=%d)", s.Name, s.ID)
	return streamResult{stream: s, outcome: OutcomeExists}, nil
}

// EnsureTopic returns the topic called name inside stream, creating it when absent.
func (m *Manager) EnsureTopic(ctx context.Context, stream *types.Stream, name string, partitionsCount uint32, replicationFactor uint8, id uint32) (*types.Topic, Outcome, error) {
	op := "ensure topic " + name
	if stream == nil {
		return nil, 0, types.NewError(types.KindTopology, op, errors.New("stream is required"))
	}
	if err := config.ValidateName("topic", name); err != nil {
		return nil, 0, types.NewError(types.KindTopology, op, err)
	}
	if partitionsCount == 0 {
		return nil, 0, types.NewError(types.KindTopology, op, errors.New("partitions count must be at least 1"))
	}
	if replicationFactor == 0 {
		replicationFactor = 1
	}

	key := fmt.Sprintf("topic/%d/%s", stream.ID, name)
	v, ran, err := m.do(ctx, key, func(ctx context.Context) (any, error) {
		return m.ensureTopic(ctx, stream.ID, name, partitionsCount, replicationFactor, id)
	})
	if err != nil {
		return nil, 0, types.NewError(types.KindTopology, op, err)
	}
	res := v.(topicResult)
	t := *res.topic
	return &t, outcomeFor(res.outcome, ran), nil
}

func (m *Manager) ensureTopic(ctx context.Context, streamID uint32, name string, partitionsCount uint32, replicationFactor uint8, id uint32) (topicResult, error) {
	t, err := m.conn.GetTopic(ctx, streamID, name)
	if err == nil {
		m.existingTopic(t, partitionsCount)
		return topicResult{topic: t, outcome: OutcomeExists}, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return topicResult{}, fmt.Errorf("lookup: %w", err)
	}

	t, err = m.conn.CreateTopic(ctx, streamID, name, partitionsCount, replicationFactor, id)
	if err == nil {
		util.Info("Topic '%s' created in stream %d (id=%d, partitions=%d, replication=%d)",
			t.Name, streamID, t.ID, t.PartitionsCount, t.ReplicationFactor)
		return topicResult{topic: t, outcome: OutcomeCreated}, nil
	}
	if !errors.Is(err, types.ErrAlreadyExists) {
		return topicResult{}, fmt.Errorf("create: %w", err)
	}

	t, err = m.conn.GetTopic(ctx, streamID, name)
	if err != nil {
		return topicResult{}, fmt.Errorf("lookup after conflict: %w", err)
	}
	m.existingTopic(t, partitionsCount)
	return topicResult{topic: t, outcome: OutcomeExists}, nil
}

func (m *Manager) existingTopic(t *types.Topic, partitionsCount uint32) {
	util.Info("Topic '%s' already exists in stream %d (id=%d)", t.Name, t.StreamID, t.ID)
	if t.PartitionsCount != partitionsCount {
		util.Warn("Topic '%s' has %d partitions, requested %d; using the existing topic",
			t.Name, t.PartitionsCount, partitionsCount)
	}
}
