// Package consumer polls a partition from a tracked cursor and hands batches to a Handler.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/downfa11-org/logstream/pkg/config"
	"github.com/downfa11-org/logstream/pkg/connector"
	"github.com/downfa11-org/logstream/pkg/metrics"
	"github.com/downfa11-org/logstream/pkg/offset"
	"github.com/downfa11-org/logstream/pkg/pacing"
	"github.com/downfa11-org/logstream/pkg/types"
	"github.com/downfa11-org/logstream/util"
)

var ErrInvalidPoll = errors.New("invalid poll")

type Options struct {
	Consumer  types.Consumer
	StreamID  uint32
	TopicID   uint32
	Partition uint32

	PollCount  uint32
	AutoCommit bool
	// BatchesLimit counts non-empty polls; 0 runs until the context ends.
	BatchesLimit int
}

// Report summarizes a Run.
type Report struct {
	Polls    int
	Empty    int
	Batches  int
	Messages int
	Elapsed  time.Duration
}

// Consumer keeps one cursor per partition it has polled. It is owned by one loop.
type Consumer struct {
	conn  connector.Connector
	pacer pacing.Pacer
	store offset.Store
	opts  Options

	cursors map[offset.Key]*Cursor
}

func New(conn connector.Connector, pacer pacing.Pacer, store offset.Store, opts Options) (*Consumer, error) {
	if opts.PollCount == 0 {
		return nil, fmt.Errorf("poll count must be positive")
	}
	if opts.BatchesLimit < 0 {
		return nil, fmt.Errorf("batches limit must not be negative, got %d", opts.BatchesLimit)
	}
	if store == nil {
		store = offset.NewMemory()
	}
	return &Consumer{
		conn:    conn,
		pacer:   pacer,
		store:   store,
		opts:    opts,
		cursors: make(map[offset.Key]*Cursor),
	}, nil
}

// NewFromConfig wires a consumer for the configured partition of topic.
func NewFromConfig(conn connector.Connector, pacer pacing.Pacer, store offset.Store, cfg *config.ClientConfig, topic *types.Topic) (*Consumer, error) {
	return New(conn, pacer, store, Options{
		Consumer:     types.Consumer{Kind: types.ConsumerSingle, ID: cfg.ConsumerID},
		StreamID:     topic.StreamID,
		TopicID:      topic.ID,
		Partition:    cfg.PartitionID,
		PollCount:    cfg.PollCount,
		AutoCommit:   cfg.AutoCommit,
		BatchesLimit: cfg.BatchesLimit,
	})
}

func (c *Consumer) key(streamID, topicID, partition uint32) offset.Key {
	return offset.Key{Consumer: c.opts.Consumer, StreamID: streamID, TopicID: topicID, Partition: partition}
}

// cursor returns the cursor for key, starting from the stored offset or 0.
func (c *Consumer) cursor(ctx context.Context, key offset.Key) (*Cursor, error) {
	if cur, ok := c.cursors[key]; ok {
		return cur, nil
	}

	start, err := c.store.Load(ctx, key)
	switch {
	case err == nil:
		util.Info("Resuming %s from stored offset %d", key, start)
	case errors.Is(err, types.ErrNotFound):
		start = 0
	default:
		return nil, fmt.Errorf("load offset: %w", err)
	}

	cur := NewCursor(start)
	c.cursors[key] = cur
	return cur, nil
}

// Position is the next offset PollNext will request on the configured partition.
func (c *Consumer) Position(ctx context.Context) (uint64, error) {
	cur, err := c.cursor(ctx, c.key(c.opts.StreamID, c.opts.TopicID, c.opts.Partition))
	if err != nil {
		return 0, types.NewError(types.KindPoll, "load cursor", err)
	}
	return cur.Next(), nil
}

// PollNext requests up to maxCount messages from the cursor. An empty result is not an
// error. With autoCommit a non-empty result advances the cursor by its length and the
// new position is saved; without it the cursor stays put until Commit.
func (c *Consumer) PollNext(ctx context.Context, streamID, topicID, partition uint32, maxCount uint32, autoCommit bool) ([]types.Message, error) {
	op := fmt.Sprintf("poll %d/%d/%d", streamID, topicID, partition)
	if maxCount == 0 {
		return nil, types.NewError(types.KindPoll, op, fmt.Errorf("%w: max count is 0", ErrInvalidPoll))
	}

	key := c.key(streamID, topicID, partition)
	cur, err := c.cursor(ctx, key)
	if err != nil {
		return nil, types.NewError(types.KindPoll, op, err)
	}

	polled, err := c.conn.Poll(ctx, types.PollRequest{
		Consumer:   c.opts.Consumer,
		StreamID:   streamID,
		TopicID:    topicID,
		Partition:  partition,
		Strategy:   types.OffsetStrategy(cur.Next()),
		Count:      maxCount,
		AutoCommit: autoCommit,
	})
	if err != nil {
		return nil, types.NewError(types.KindPoll, op, err)
	}
	if polled == nil || len(polled.Messages) == 0 {
		return nil, nil
	}

	if autoCommit {
		cur.Advance(len(polled.Messages))
		c.save(ctx, key, cur.Next())
	}
	return polled.Messages, nil
}

func (c *Consumer) save(ctx context.Context, key offset.Key, next uint64) {
	metrics.SetCursor(key.StreamID, key.TopicID, key.Partition, next)
	if err := c.store.Save(ctx, key, next); err != nil {
		util.Warn("Failed to save offset %d for %s: %v", next, key, err)
	}
}

// Commit moves the configured partition's cursor to next and saves it. Moving backward
// is rejected.
func (c *Consumer) Commit(ctx context.Context, next uint64) error {
	key := c.key(c.opts.StreamID, c.opts.TopicID, c.opts.Partition)
	cur, err := c.cursor(ctx, key)
	if err != nil {
		return types.NewError(types.KindPoll, "commit", err)
	}
	if !cur.MoveTo(next) {
		return types.NewError(types.KindPoll, "commit",
			fmt.Errorf("offset %d is behind cursor %d", next, cur.Next()))
	}
	c.save(ctx, key, next)
	return nil
}

// Run polls until BatchesLimit non-empty polls were handled, pausing after every poll.
// Poll and handler failures end the loop.
func (c *Consumer) Run(ctx context.Context, h Handler) (Report, error) {
	var report Report
	start := time.Now()
	finish := func(err error) (Report, error) {
		report.Elapsed = time.Since(start)
		return report, err
	}

	for c.opts.BatchesLimit == 0 || report.Batches < c.opts.BatchesLimit {
		pollStart := time.Now()
		msgs, err := c.PollNext(ctx, c.opts.StreamID, c.opts.TopicID, c.opts.Partition, c.opts.PollCount, c.opts.AutoCommit)
		metrics.ObservePoll(len(msgs), time.Since(pollStart), err)
		report.Polls++

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return finish(ctxErr)
			}
			util.Error("❌ Poll failed, stopping consumer: %v", err)
			return finish(err)
		}

		if len(msgs) == 0 {
			report.Empty++
			util.Debug("No messages available at offset %d", c.cursors[c.key(c.opts.StreamID, c.opts.TopicID, c.opts.Partition)].Next())
		} else {
			if err := h.Handle(ctx, msgs); err != nil {
				return finish(types.NewError(types.KindHandler, fmt.Sprintf("handle batch at offset %d", msgs[0].Offset), err))
			}
			if !c.opts.AutoCommit {
				if err := c.Commit(ctx, msgs[len(msgs)-1].Offset+1); err != nil {
					return finish(err)
				}
			}
			report.Batches++
			report.Messages += len(msgs)
			util.Info("📥 Consumed batch %d: %d messages (offsets %d-%d)",
				report.Batches, len(msgs), msgs[0].Offset, msgs[len(msgs)-1].Offset)
		}

		if err := c.pacer.Pause(ctx); err != nil {
			return finish(err)
		}
	}

	util.Info("Consumer finished: %d batches, %d messages in %d polls", report.Batches, report.Messages, report.Polls)
	return finish(nil)
}
