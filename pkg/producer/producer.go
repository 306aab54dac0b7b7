// Package producer sends fixed-size batches of generated messages.
package producer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/downfa11-org/logstream/pkg/config"
	"github.com/downfa11-org/logstream/pkg/connector"
	"github.com/downfa11-org/logstream/pkg/metrics"
	"github.com/downfa11-org/logstream/pkg/pacing"
	"github.com/downfa11-org/logstream/pkg/types"
	"github.com/downfa11-org/logstream/util"
)

var ErrInvalidBatch = errors.New("invalid batch")

type Options struct {
	StreamID        uint32
	TopicID         uint32
	PartitionsCount uint32
	Partitioner     Partitioner
	Key             []byte

	// BatchSize caps the messages accepted by SendBatch.
	BatchSize        int
	MessagesPerBatch int
	// BatchesLimit of 0 runs until the context ends.
	BatchesLimit int
}

// Report summarizes a Run.
type Report struct {
	Attempted int
	Sent      int
	Failed    int
	Messages  int
	Elapsed   time.Duration
}

// Producer owns its message counter; do not call Run concurrently on one Producer.
type Producer struct {
	conn  connector.Connector
	pacer pacing.Pacer
	opts  Options

	nextID uint64
}

func New(conn connector.Connector, pacer pacing.Pacer, opts Options) (*Producer, error) {
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.MessagesPerBatch <= 0 || opts.MessagesPerBatch > opts.BatchSize {
		return nil, fmt.Errorf("messages per batch must be in [1, %d], got %d", opts.BatchSize, opts.MessagesPerBatch)
	}
	if opts.BatchesLimit < 0 {
		return nil, fmt.Errorf("batches limit must not be negative, got %d", opts.BatchesLimit)
	}
	if opts.PartitionsCount == 0 {
		opts.PartitionsCount = 1
	}
	if opts.Partitioner == nil {
		opts.Partitioner = Fixed(0)
	}
	return &Producer{conn: conn, pacer: pacer, opts: opts, nextID: 1}, nil
}

// NewFromConfig wires a producer for topic using the batching settings of cfg.
func NewFromConfig(conn connector.Connector, pacer pacing.Pacer, cfg *config.ClientConfig, topic *types.Topic) (*Producer, error) {
	partitioner, err := NewPartitioner(cfg)
	if err != nil {
		return nil, err
	}
	return New(conn, pacer, Options{
		StreamID:         topic.StreamID,
		TopicID:          topic.ID,
		PartitionsCount:  topic.PartitionsCount,
		Partitioner:      partitioner,
		Key:              []byte(cfg.PartitionKey),
		BatchSize:        cfg.BatchSize,
		MessagesPerBatch: cfg.MessagesPerBatch,
		BatchesLimit:     cfg.BatchesLimit,
	})
}

// SendBatch sends messages as one batch, in order, to the partition chosen for key.
// There is no retry; failures are returned as produce errors.
func (p *Producer) SendBatch(ctx context.Context, streamID, topicID uint32, key []byte, messages []types.Message) (*types.AckResponse, error) {
	if len(messages) == 0 || len(messages) > p.opts.BatchSize {
		return nil, types.NewError(types.KindProduce, "send batch",
			fmt.Errorf("%w: %d messages, batch size %d", ErrInvalidBatch, len(messages), p.opts.BatchSize))
	}

	partition := p.opts.Partitioner.Partition(key, p.opts.PartitionsCount)
	ack, err := p.conn.Send(ctx, types.SendRequest{
		StreamID:  streamID,
		TopicID:   topicID,
		Partition: partition,
		Messages:  messages,
	})
	if err != nil {
		return nil, types.NewError(types.KindProduce, fmt.Sprintf("send batch to partition %d", partition), err)
	}
	return ack, nil
}

// nextBatch builds MessagesPerBatch payloads. Identifiers are consumed even if the send fails.
func (p *Producer) nextBatch() []types.Message {
	msgs := make([]types.Message, p.opts.MessagesPerBatch)
	for i := range msgs {
		msgs[i] = types.NewMessage([]byte(fmt.Sprintf("message-%d", p.nextID)))
		p.nextID++
	}
	return msgs
}

// Run sends BatchesLimit batches, pausing after each one whatever its outcome.
// A failed batch is logged and counted; only context cancellation stops the loop early.
func (p *Producer) Run(ctx context.Context) (Report, error) {
	var report Report
	start := time.Now()

	for batch := 1; p.opts.BatchesLimit == 0 || batch <= p.opts.BatchesLimit; batch++ {
		msgs := p.nextBatch()

		sendStart := time.Now()
		ack, err := p.SendBatch(ctx, p.opts.StreamID, p.opts.TopicID, p.opts.Key, msgs)
		metrics.ObserveSend(len(msgs), time.Since(sendStart), err)
		report.Attempted++

		if err != nil {
			report.Failed++
			util.Error("❌ Failed to send batch %d: %v", batch, err)
			if ctxErr := ctx.Err(); ctxErr != nil {
				report.Elapsed = time.Since(start)
				return report, ctxErr
			}
		} else {
			report.Sent++
			report.Messages += len(msgs)
			util.Info("📤 Sent batch %d: %d messages to partition %d (offsets %d-%d)",
				batch, len(msgs), ack.Partition, ack.BaseOffset, ack.LastOffset)
		}

		if err := p.pacer.Pause(ctx); err != nil {
			report.Elapsed = time.Since(start)
			return report, err
		}
	}

	report.Elapsed = time.Since(start)
	util.Info("Producer finished: %d/%d batches sent, %d messages", report.Sent, report.Attempted, report.Messages)
	return report, nil
}
