package e2e

import (
	"fmt"

	"github.com/downfa11-org/logstream/pkg/types"
)

// Expectation checks one property of a finished scenario.
type Expectation func(ctx *TestContext) error

type Consequences struct {
	ctx *TestContext
}

func (c *Consequences) Expect(e Expectation) *Consequences {
	c.ctx.t.Helper()
	if err := e(c.ctx); err != nil {
		c.ctx.t.Fatalf("expectation failed: %v", err)
	}
	return c
}

func (c *Consequences) And(e Expectation) *Consequences {
	c.ctx.t.Helper()
	return c.Expect(e)
}

func NoErrors() Expectation {
	return func(ctx *TestContext) error {
		if err := ctx.GetLastError(); err != nil {
			return fmt.Errorf("unexpected error: %v", err)
		}
		return nil
	}
}

// RunFailedWith expects the last failing action to have returned an error of kind.
func RunFailedWith(kind types.ErrorKind) Expectation {
	return func(ctx *TestContext) error {
		err := ctx.GetLastError()
		if err == nil {
			return fmt.Errorf("expected a %s error but every action succeeded", kind)
		}
		if got := types.KindOf(err); got != kind {
			return fmt.Errorf("expected a %s error, got %s: %v", kind, got, err)
		}
		return nil
	}
}

func MessagesPublished(n int) Expectation {
	return func(ctx *TestContext) error {
		if got := ctx.GetPublishedCount(); got != n {
			return fmt.Errorf("published %d messages, want %d", got, n)
		}
		return nil
	}
}

func MessagesConsumed(n int) Expectation {
	return func(ctx *TestContext) error {
		if got := len(ctx.GetConsumed()); got != n {
			return fmt.Errorf("consumed %d messages, want %d", got, n)
		}
		return nil
	}
}

// BatchesConsumed counts non-empty polls across every consume action.
func BatchesConsumed(n int) Expectation {
	return func(ctx *TestContext) error {
		ctx.mu.Lock()
		defer ctx.mu.Unlock()
		got := 0
		if ctx.consumerReport != nil {
			got = ctx.consumerReport.Batches
		}
		if got != n {
			return fmt.Errorf("consumed %d batches, want %d", got, n)
		}
		return nil
	}
}

// MessagesInOrder expects message-1..message-N at offsets 0..N-1 with no gaps or repeats.
func MessagesInOrder() Expectation {
	return func(ctx *TestContext) error {
		for i, m := range ctx.GetConsumed() {
			if want := fmt.Sprintf("message-%d", i+1); string(m.Payload) != want {
				return fmt.Errorf("message %d has payload %q, want %q", i, m.Payload, want)
			}
			if m.Offset != uint64(i) {
				return fmt.Errorf("message %d has offset %d, want %d", i, m.Offset, i)
			}
		}
		return nil
	}
}

// OffsetCommitted reads the consumer's stored offset straight from the broker.
func OffsetCommitted(next uint64) Expectation {
	return func(ctx *TestContext) error {
		cfg := ctx.cfg
		b := ctx.broker
		stream, err := b.GetStream(cfg.StreamName)
		if err != nil {
			return err
		}
		topic, err := b.GetTopic(stream.ID, cfg.TopicName)
		if err != nil {
			return err
		}
		got, err := b.GetOffset(types.Consumer{Kind: types.ConsumerSingle, ID: cfg.ConsumerID}, stream.ID, topic.ID, cfg.PartitionID)
		if err != nil {
			return fmt.Errorf("stored offset: %w", err)
		}
		if got != next {
			return fmt.Errorf("stored offset is %d, want %d", got, next)
		}
		return nil
	}
}

func TopicExists(partitions uint32) Expectation {
	return func(ctx *TestContext) error {
		stream, err := ctx.broker.GetStream(ctx.cfg.StreamName)
		if err != nil {
			return err
		}
		topic, err := ctx.broker.GetTopic(stream.ID, ctx.cfg.TopicName)
		if err != nil {
			return err
		}
		if topic.PartitionsCount != partitions {
			return fmt.Errorf("topic has %d partitions, want %d", topic.PartitionsCount, partitions)
		}
		return nil
	}
}
