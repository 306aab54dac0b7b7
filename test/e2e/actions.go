package e2e

import (
	"context"

	"github.com/downfa11-org/logstream/pkg/connector"
	"github.com/downfa11-org/logstream/pkg/consumer"
	"github.com/downfa11-org/logstream/pkg/controller"
	"github.com/downfa11-org/logstream/pkg/session"
	"github.com/downfa11-org/logstream/pkg/types"
)

// Actions drives the client programs against the scenario broker. Every action opens its
// own session, so consecutive actions behave like separate runs of cmd/producer and
// cmd/consumer.
type Actions struct {
	ctx *TestContext
}

func (c *TestContext) When() *Actions {
	return &Actions{ctx: c}
}

// StartBroker serves an in-memory broker over TCP on a random local port.
func (a *Actions) StartBroker() *Actions {
	t := a.ctx.t
	b := connector.NewBroker()
	b.AddUser(e2eUser, e2ePassword)

	srv := controller.NewServer(controller.NewCommandHandler(b))
	if err := srv.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("failed to start broker: %v", err)
	}
	a.ctx.addCleanup(func() { srv.Close() })

	a.ctx.broker, a.ctx.server = b, srv
	a.ctx.cfg.BrokerAddr = "tcp://" + srv.Addr()
	t.Logf("broker started at %s", srv.Addr())
	return a
}

func (a *Actions) withSession(fn func(context.Context, *session.Session) error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.ctx.timeout)
	defer cancel()

	conn, err := session.Dial(a.ctx.cfg)
	if err != nil {
		a.ctx.setLastError(err)
		return
	}
	s, err := session.Open(ctx, a.ctx.cfg, conn)
	if err != nil {
		a.ctx.setLastError(err)
		return
	}
	defer s.Close()

	if err := fn(ctx, s); err != nil {
		a.ctx.setLastError(err)
	}
}

// CreateTopic provisions the configured stream and topic.
func (a *Actions) CreateTopic() *Actions {
	a.withSession(func(ctx context.Context, s *session.Session) error {
		topic, err := s.Provision(ctx)
		if err == nil {
			a.ctx.t.Logf("topic %q ready with %d partitions", topic.Name, topic.PartitionsCount)
		}
		return err
	})
	return a
}

func (a *Actions) run(mode session.Mode) *Actions {
	a.withSession(func(ctx context.Context, s *session.Session) error {
		summary, err := s.Run(ctx, mode, a.ctx)
		a.ctx.recordReports(summary.Producer, summary.Consumer)
		return err
	})
	return a
}

func (a *Actions) PublishMessages() *Actions {
	return a.run(session.ModeProducer)
}

func (a *Actions) ConsumeMessages() *Actions {
	return a.run(session.ModeConsumer)
}

// PublishAndConsume runs both loops in one session, as cmd/pipeline does.
func (a *Actions) PublishAndConsume() *Actions {
	return a.run(session.ModeBoth)
}

// ConsumeBatches consumes n non-empty polls and restores the configured limit afterwards.
func (a *Actions) ConsumeBatches(n int) *Actions {
	prev := a.ctx.cfg.BatchesLimit
	a.ctx.cfg.BatchesLimit = n
	defer func() { a.ctx.cfg.BatchesLimit = prev }()
	return a.ConsumeMessages()
}

func (a *Actions) Then() *Consequences {
	return &Consequences{ctx: a.ctx}
}

// Handle collects consumed batches; the context is the consumer handler of every action.
func (c *TestContext) Handle(_ context.Context, msgs []types.Message) error {
	c.mu.Lock()
	c.consumed = append(c.consumed, msgs...)
	c.mu.Unlock()
	return nil
}

var _ consumer.Handler = (*TestContext)(nil)
