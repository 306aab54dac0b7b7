// Package session connects to a broker, provisions the topology and runs the loops.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/downfa11-org/logstream/pkg/bench"
	"github.com/downfa11-org/logstream/pkg/config"
	"github.com/downfa11-org/logstream/pkg/connector"
	"github.com/downfa11-org/logstream/pkg/consumer"
	"github.com/downfa11-org/logstream/pkg/metrics"
	"github.com/downfa11-org/logstream/pkg/offset"
	"github.com/downfa11-org/logstream/pkg/pacing"
	"github.com/downfa11-org/logstream/pkg/producer"
	"github.com/downfa11-org/logstream/pkg/topology"
	"github.com/downfa11-org/logstream/pkg/types"
	"github.com/downfa11-org/logstream/util"
	"golang.org/x/sync/errgroup"
)

type Mode string

const (
	ModeProducer Mode = "producer"
	ModeConsumer Mode = "consumer"
	ModeBoth     Mode = "both"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeProducer, ModeConsumer, ModeBoth:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want producer, consumer or both)", s)
	}
}

// Dial builds a TCP connector from cfg. The connection is opened by Open.
func Dial(cfg *config.ClientConfig) (*connector.TCP, error) {
	addr, err := config.ParseAddress(cfg.BrokerAddr)
	if err != nil {
		return nil, err
	}
	return connector.NewTCP(addr, connector.TCPOptions{
		ClientID:          cfg.ClientID,
		Compression:       cfg.Compression,
		RequestTimeout:    cfg.RequestTimeout,
		MaxConnectRetries: cfg.MaxConnectRetries,
		RetryBackoff:      time.Duration(cfg.ConnectRetryBackoffMS) * time.Millisecond,
	})
}

// Session owns the connector for its lifetime. Close releases it on every path.
type Session struct {
	cfg  *config.ClientConfig
	conn connector.Connector

	topology *topology.Manager
	stream   *types.Stream
	topic    *types.Topic

	metricsSrv *http.Server
	closeOnce  sync.Once
}

// Open connects and logs in. Failures are connection errors and leave nothing open.
func Open(ctx context.Context, cfg *config.ClientConfig, conn connector.Connector) (*Session, error) {
	if err := util.SetLevel(cfg.LogLevel); err != nil {
		util.Warn("%v; keeping current log level", err)
	}

	util.Info("Connecting to broker %s", cfg.BrokerAddr)
	if err := conn.Connect(ctx); err != nil {
		conn.Close()
		return nil, types.NewError(types.KindConnection, "connect", err)
	}
	if err := conn.Login(ctx, cfg.Username, cfg.Password); err != nil {
		conn.Close()
		return nil, types.NewError(types.KindConnection, "login", err)
	}
	util.Info("✅ Connected and logged in as %q", cfg.Username)

	s := &Session{cfg: cfg, conn: conn, topology: topology.NewManager(conn)}
	if cfg.ExporterPort > 0 {
		s.metricsSrv = metrics.StartMetricsServer(cfg.ExporterPort)
	}
	return s, nil
}

func (s *Session) Connector() connector.Connector {
	return s.conn
}

// Provision ensures the configured stream and topic exist.
func (s *Session) Provision(ctx context.Context) (*types.Topic, error) {
	stream, outcome, err := s.topology.EnsureStream(ctx, s.cfg.StreamName, s.cfg.StreamID)
	if err != nil {
		util.Error("❌ Failed to ensure stream '%s': %v", s.cfg.StreamName, err)
		return nil, err
	}
	util.Debug("stream '%s' %s", stream.Name, outcome)

	topic, outcome, err := s.topology.EnsureTopic(ctx, stream, s.cfg.TopicName, s.cfg.PartitionsCount, s.cfg.ReplicationFactor, s.cfg.TopicID)
	if err != nil {
		util.Error("❌ Failed to ensure topic '%s': %v", s.cfg.TopicName, err)
		return nil, err
	}
	util.Debug("topic '%s' %s", topic.Name, outcome)

	if s.cfg.PartitionID >= topic.PartitionsCount {
		return nil, types.NewError(types.KindTopology, "provision",
			fmt.Errorf("partition %d out of range for topic '%s' with %d partitions", s.cfg.PartitionID, topic.Name, topic.PartitionsCount))
	}

	s.stream, s.topic = stream, topic
	return topic, nil
}

// Run provisions if needed and runs the loops selected by mode. In ModeBoth the loops run
// concurrently and share nothing but the connector. h may be nil for ModeProducer; for the
// consumer it defaults to PrintHandler.
func (s *Session) Run(ctx context.Context, mode Mode, h consumer.Handler) (bench.Summary, error) {
	summary := bench.Summary{
		Stream:      s.cfg.StreamName,
		Topic:       s.cfg.TopicName,
		Partition:   s.cfg.PartitionID,
		Compression: s.cfg.Compression,
	}
	start := time.Now()

	if s.topic == nil {
		if _, err := s.Provision(ctx); err != nil {
			return summary, err
		}
	}

	runProducer := mode == ModeProducer || mode == ModeBoth
	runConsumer := mode == ModeConsumer || mode == ModeBoth
	if !runProducer && !runConsumer {
		return summary, fmt.Errorf("unknown mode %q", mode)
	}

	var (
		prod *producer.Producer
		cons *consumer.Consumer
	)
	if runProducer {
		p, err := producer.NewFromConfig(s.conn, pacing.NewFixed(s.cfg.PollInterval), s.cfg, s.topic)
		if err != nil {
			return summary, err
		}
		prod = p
	}
	if runConsumer {
		store, err := offset.New(s.cfg, s.conn)
		if err != nil {
			return summary, err
		}
		defer store.Close()

		c, err := consumer.NewFromConfig(s.conn, pacing.NewFixed(s.cfg.PollInterval), store, s.cfg, s.topic)
		if err != nil {
			return summary, err
		}
		cons = c
		if h == nil {
			h = consumer.PrintHandler{}
		}
	}

	var g errgroup.Group
	if prod != nil {
		g.Go(func() error {
			report, err := prod.Run(ctx)
			summary.Producer = &report
			return err
		})
	}
	if cons != nil {
		g.Go(func() error {
			report, err := cons.Run(ctx, h)
			summary.Consumer = &report
			return err
		})
	}
	err := g.Wait()
	summary.Elapsed = time.Since(start)
	return summary, err
}

// Close stops the metrics exporter and closes the connector. It is safe to call twice.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.metricsSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if shutdownErr := s.metricsSrv.Shutdown(ctx); shutdownErr != nil {
				util.Warn("metrics server shutdown: %v", shutdownErr)
			}
		}
		err = s.conn.Close()
		if err != nil && !errors.Is(err, connector.ErrConnectorDone) {
			util.Warn("close connector: %v", err)
		}
		util.Info("Session closed")
	})
	return err
}
