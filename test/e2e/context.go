package e2e

import (
	"sync"
	"testing"
	"time"

	"github.com/downfa11-org/logstream/pkg/config"
	"github.com/downfa11-org/logstream/pkg/connector"
	"github.com/downfa11-org/logstream/pkg/consumer"
	"github.com/downfa11-org/logstream/pkg/controller"
	"github.com/downfa11-org/logstream/pkg/producer"
	"github.com/downfa11-org/logstream/pkg/types"
)

const (
	e2eUser     = "e2e"
	e2ePassword = "e2e-secret"
)

// TestContext carries the broker, the client config and everything the actions observed.
type TestContext struct {
	t   *testing.T
	cfg *config.ClientConfig

	broker *connector.Broker
	server *controller.Server

	timeout time.Duration

	mu             sync.Mutex
	consumed       []types.Message
	producerReport *producer.Report
	consumerReport *consumer.Report
	lastErr        error

	cleanups []func()
}

// Given starts a scenario with five batches of ten messages, no pacing and auto-commit.
func Given(t *testing.T) *TestContext {
	cfg := config.DefaultConfig()
	cfg.Username = e2eUser
	cfg.Password = e2ePassword
	cfg.StreamName = "e2e-stream"
	cfg.TopicName = "e2e-topic"
	cfg.BatchesLimit = 5
	cfg.BatchSize = 10
	cfg.MessagesPerBatch = 10
	cfg.PollCount = 10
	cfg.PollInterval = 0
	cfg.MaxConnectRetries = 3
	cfg.ConnectRetryBackoffMS = 10
	cfg.RequestTimeout = 2 * time.Second

	return &TestContext{t: t, cfg: cfg, timeout: 30 * time.Second}
}

func (c *TestContext) WithStream(name string) *TestContext {
	c.cfg.StreamName = name
	return c
}

func (c *TestContext) WithTopic(name string) *TestContext {
	c.cfg.TopicName = name
	return c
}

func (c *TestContext) WithPartitions(n uint32) *TestContext {
	c.cfg.PartitionsCount = n
	return c
}

func (c *TestContext) WithPartition(id uint32) *TestContext {
	c.cfg.PartitionID = id
	return c
}

func (c *TestContext) WithBatches(n int) *TestContext {
	c.cfg.BatchesLimit = n
	return c
}

func (c *TestContext) WithMessagesPerBatch(n int) *TestContext {
	c.cfg.MessagesPerBatch = n
	if n > c.cfg.BatchSize {
		c.cfg.BatchSize = n
	}
	return c
}

func (c *TestContext) WithPollCount(n uint32) *TestContext {
	c.cfg.PollCount = n
	return c
}

func (c *TestContext) WithCompression(name string) *TestContext {
	c.cfg.Compression = name
	return c
}

func (c *TestContext) WithManualCommit() *TestContext {
	c.cfg.AutoCommit = false
	return c
}

func (c *TestContext) WithOffsetBackend(b config.OffsetBackend) *TestContext {
	c.cfg.OffsetBackend = b
	return c
}

func (c *TestContext) WithCredentials(username, password string) *TestContext {
	c.cfg.Username = username
	c.cfg.Password = password
	return c
}

// Cleanup closes sessions in reverse order, then the broker.
func (c *TestContext) Cleanup() {
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		c.cleanups[i]()
	}
	c.cleanups = nil
}

func (c *TestContext) addCleanup(fn func()) {
	c.cleanups = append(c.cleanups, fn)
}

func (c *TestContext) GetT() *testing.T {
	return c.t
}

func (c *TestContext) GetConfig() *config.ClientConfig {
	return c.cfg
}

func (c *TestContext) GetBroker() *connector.Broker {
	return c.broker
}

func (c *TestContext) GetLastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *TestContext) setLastError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func (c *TestContext) GetConsumed() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Message, len(c.consumed))
	copy(out, c.consumed)
	return out
}

func (c *TestContext) GetPublishedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.producerReport == nil {
		return 0
	}
	return c.producerReport.Messages
}

func (c *TestContext) recordReports(p *producer.Report, cons *consumer.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p != nil {
		if c.producerReport == nil {
			c.producerReport = &producer.Report{}
		}
		c.producerReport.Attempted += p.Attempted
		c.producerReport.Sent += p.Sent
		c.producerReport.Failed += p.Failed
		c.producerReport.Messages += p.Messages
	}
	if cons != nil {
		if c.consumerReport == nil {
			c.consumerReport = &consumer.Report{}
		}
		c.consumerReport.Polls += cons.Polls
		c.consumerReport.Empty += cons.Empty
		c.consumerReport.Batches += cons.Batches
		c.consumerReport.Messages += cons.Messages
	}
}
