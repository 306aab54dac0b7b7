package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/downfa11-org/logstream/pkg/types"
	"gopkg.in/yaml.v3"
)

type OffsetBackend string

const (
	OffsetBackendMemory OffsetBackend = "memory"
	OffsetBackendEtcd   OffsetBackend = "etcd"
	OffsetBackendBroker OffsetBackend = "broker"
)

type Partitioning string

const (
	PartitionFixed      Partitioning = "fixed"
	PartitionRoundRobin Partitioning = "round_robin"
	PartitionHash       Partitioning = "hash"
)

// ClientConfig is the static per-run configuration shared by every component.
type ClientConfig struct {
	BrokerAddr string `yaml:"broker_addr" json:"broker_addr"`
	Username   string `yaml:"username" json:"username"`
	Password   string `yaml:"password" json:"-"`
	ClientID   string `yaml:"client_id" json:"client_id"`

	StreamName        string `yaml:"stream_name" json:"stream_name"`
	StreamID          uint32 `yaml:"stream_id" json:"stream_id"`
	TopicName         string `yaml:"topic_name" json:"topic_name"`
	TopicID           uint32 `yaml:"topic_id" json:"topic_id"`
	PartitionsCount   uint32 `yaml:"partitions_count" json:"partitions_count"`
	ReplicationFactor uint8  `yaml:"replication_factor" json:"replication_factor"`
	PartitionID       uint32 `yaml:"partition_id" json:"partition_id"`

	Partitioning     Partitioning `yaml:"partitioning" json:"partitioning"`
	PartitionKey     string       `yaml:"partition_key" json:"partition_key"`
	BatchSize        int          `yaml:"batch_size" json:"batch_size"`
	MessagesPerBatch int          `yaml:"messages_per_batch" json:"messages_per_batch"`
	BatchesLimit     int          `yaml:"batches_limit" json:"batches_limit"`
	Compression      string       `yaml:"compression" json:"compression"`

	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	PollCount    uint32        `yaml:"poll_count" json:"poll_count"`
	AutoCommit   bool          `yaml:"auto_commit" json:"auto_commit"`
	ConsumerID   uint32        `yaml:"consumer_id" json:"consumer_id"`

	RequestTimeout        time.Duration `yaml:"request_timeout" json:"request_timeout"`
	MaxConnectRetries     int           `yaml:"max_connect_retries" json:"max_connect_retries"`
	ConnectRetryBackoffMS int           `yaml:"connect_retry_backoff_ms" json:"connect_retry_backoff_ms"`

	OffsetBackend OffsetBackend `yaml:"offset_backend" json:"offset_backend"`
	EtcdEndpoints []string      `yaml:"etcd_endpoints" json:"etcd_endpoints"`
	EtcdPrefix    string        `yaml:"etcd_prefix" json:"etcd_prefix"`

	ExporterPort int    `yaml:"exporter_port" json:"exporter_port"`
	LogLevel     string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig mirrors the reference producer/consumer examples.
func DefaultConfig() *ClientConfig {
	cfg := &ClientConfig{AutoCommit: true}
	cfg.applyDefaults()
	return cfg
}

func (cfg *ClientConfig) applyDefaults() {
	if len(cfg.BrokerAddr) == 0 {
		cfg.BrokerAddr = "127.0.0.1:8090"
	}
	if cfg.StreamName == "" {
		cfg.StreamName = "example-stream"
	}
	if cfg.StreamID == 0 {
		cfg.StreamID = 1
	}
	if cfg.TopicName == "" {
		cfg.TopicName = "example-topic"
	}
	if cfg.TopicID == 0 {
		cfg.TopicID = 1
	}
	if cfg.PartitionsCount == 0 {
		cfg.PartitionsCount = 1
	}
	if cfg.ReplicationFactor == 0 {
		cfg.ReplicationFactor = 1
	}
	if cfg.Partitioning == "" {
		cfg.Partitioning = PartitionFixed
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.MessagesPerBatch == 0 {
		cfg.MessagesPerBatch = cfg.BatchSize
	}
	if cfg.Compression == "" {
		cfg.Compression = "none"
	}
	if cfg.PollCount == 0 {
		cfg.PollCount = uint32(cfg.BatchSize)
	}
	if cfg.ConsumerID == 0 {
		cfg.ConsumerID = 1
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.MaxConnectRetries == 0 {
		cfg.MaxConnectRetries = 5
	}
	if cfg.ConnectRetryBackoffMS == 0 {
		cfg.ConnectRetryBackoffMS = 200
	}
	if cfg.OffsetBackend == "" {
		cfg.OffsetBackend = OffsetBackendMemory
	}
	if cfg.EtcdPrefix == "" {
		cfg.EtcdPrefix = "/logstream/offsets"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// LoadConfig parses flags, overlays an optional YAML/JSON file and validates the result.
func LoadConfig() (*ClientConfig, error) {
	return LoadConfigFrom(flag.CommandLine, os.Args[1:])
}

// LoadConfigFrom is LoadConfig over an explicit flag set and argument list.
func LoadConfigFrom(fs *flag.FlagSet, args []string) (*ClientConfig, error) {
	cfg := &ClientConfig{}
	var streamID, topicID, partitionsCount, partitionID, pollCount, consumerID, replication uint

	fs.StringVar(&cfg.BrokerAddr, "broker", "127.0.0.1:8090", "Broker address (host:port or tcp://host:port)")
	fs.StringVar(&cfg.Username, "username", "", "Username for login")
	fs.StringVar(&cfg.Password, "password", "", "Password for login")
	fs.StringVar(&cfg.StreamName, "stream", "example-stream", "Stream name")
	fs.UintVar(&streamID, "stream-id", 1, "Stream id used when the stream is created")
	fs.StringVar(&cfg.TopicName, "topic", "example-topic", "Topic name")
	fs.UintVar(&topicID, "topic-id", 1, "Topic id used when the topic is created")
	fs.UintVar(&partitionsCount, "partitions", 1, "Number of partitions")
	fs.UintVar(&replication, "replication-factor", 1, "Topic replication factor")
	fs.UintVar(&partitionID, "partition-id", 0, "Partition to produce to and poll from")
	fs.IntVar(&cfg.BatchSize, "batch-size", 10, "Maximum messages per batch")
	fs.IntVar(&cfg.MessagesPerBatch, "messages-per-batch", 10, "Messages built for each batch")
	fs.IntVar(&cfg.BatchesLimit, "batches-limit", 5, "Batches to send or consume (0 runs until interrupted)")
	fs.StringVar(&cfg.Compression, "compression", "none", "Batch compression: none, gzip, snappy, lz4, zstd")
	fs.DurationVar(&cfg.PollInterval, "interval", 500*time.Millisecond, "Pause between iterations")
	fs.UintVar(&pollCount, "poll-count", 10, "Max messages per poll")
	fs.BoolVar(&cfg.AutoCommit, "auto-commit", true, "Advance and commit the cursor after each poll")
	fs.UintVar(&consumerID, "consumer-id", 1, "Consumer id used for stored offsets")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.IntVar(&cfg.ExporterPort, "exporter-port", 0, "Prometheus exporter port (0 disables)")
	fs.StringVar(&cfg.ClientID, "client-id", "", "Client id sent on login (random when empty)")
	fs.StringVar(&cfg.PartitionKey, "partition-key", "", "Key hashed by the hash partitioner")

	var partitioning, offsetBackend, etcdEndpoints string
	fs.StringVar(&partitioning, "partitioning", string(PartitionFixed), "Partition selection: fixed, round_robin, hash")
	fs.StringVar(&offsetBackend, "offset-backend", string(OffsetBackendMemory), "Consumer offset store: memory, broker, etcd")
	fs.StringVar(&etcdEndpoints, "etcd-endpoints", "", "Comma separated etcd endpoints for the etcd offset store")

	configPath := fs.String("config", "", "Path to YAML/JSON config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.StreamID = uint32(streamID)
	cfg.TopicID = uint32(topicID)
	cfg.PartitionsCount = uint32(partitionsCount)
	cfg.ReplicationFactor = uint8(replication)
	cfg.PartitionID = uint32(partitionID)
	cfg.PollCount = uint32(pollCount)
	cfg.ConsumerID = uint32(consumerID)
	cfg.Partitioning = Partitioning(partitioning)
	cfg.OffsetBackend = OffsetBackend(offsetBackend)
	for _, ep := range strings.Split(etcdEndpoints, ",") {
		if ep = strings.TrimSpace(ep); ep != "" {
			cfg.EtcdEndpoints = append(cfg.EtcdEndpoints, ep)
		}
	}

	if *configPath != "" {
		if err := cfg.loadFile(*configPath); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *ClientConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the client cannot run with.
func (cfg *ClientConfig) Validate() error {
	var errs []error

	if _, err := ParseAddress(cfg.BrokerAddr); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateCredential("username", cfg.Username); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateCredential("password", cfg.Password); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateName("stream", cfg.StreamName); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateName("topic", cfg.TopicName); err != nil {
		errs = append(errs, err)
	}
	if cfg.PartitionID >= cfg.PartitionsCount {
		errs = append(errs, fmt.Errorf("partition_id %d out of range for %d partitions", cfg.PartitionID, cfg.PartitionsCount))
	}
	if cfg.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_size must be positive, got %d", cfg.BatchSize))
	}
	if cfg.MessagesPerBatch <= 0 || cfg.MessagesPerBatch > cfg.BatchSize {
		errs = append(errs, fmt.Errorf("messages_per_batch must be in [1, %d], got %d", cfg.BatchSize, cfg.MessagesPerBatch))
	}
	if cfg.BatchesLimit < 0 {
		errs = append(errs, fmt.Errorf("batches_limit must not be negative, got %d", cfg.BatchesLimit))
	}
	if cfg.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("poll_interval must not be negative, got %v", cfg.PollInterval))
	}
	switch cfg.Partitioning {
	case PartitionFixed, PartitionRoundRobin, PartitionHash:
	default:
		errs = append(errs, fmt.Errorf("unknown partitioning %q", cfg.Partitioning))
	}
	switch cfg.Compression {
	case "none", "gzip", "snappy", "lz4", "zstd":
	default:
		errs = append(errs, fmt.Errorf("unsupported compression type: %s", cfg.Compression))
	}
	switch cfg.OffsetBackend {
	case OffsetBackendMemory, OffsetBackendBroker:
	case OffsetBackendEtcd:
		if len(cfg.EtcdEndpoints) == 0 {
			errs = append(errs, errors.New("etcd offset backend requires etcd_endpoints"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown offset backend %q", cfg.OffsetBackend))
	}

	return errors.Join(errs...)
}

// ParseAddress accepts host:port or a tcp:// URI and returns host:port.
func ParseAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", errors.New("broker address is empty")
	}

	hostPort := addr
	if strings.Contains(addr, "://") {
		u, err := url.Parse(addr)
		if err != nil {
			return "", fmt.Errorf("invalid broker uri %q: %w", addr, err)
		}
		if u.Scheme != "tcp" {
			return "", fmt.Errorf("unsupported broker uri scheme %q", u.Scheme)
		}
		hostPort = u.Host
	}

	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return "", fmt.Errorf("invalid broker address %q: %w", addr, err)
	}
	if host == "" {
		return "", fmt.Errorf("invalid broker address %q: missing host", addr)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return "", fmt.Errorf("invalid broker address %q: bad port %q", addr, port)
	}
	return net.JoinHostPort(host, port), nil
}

// ValidateName checks a stream or topic name.
func ValidateName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s name is empty", kind)
	}
	if len(name) > types.MaxNameLength {
		return fmt.Errorf("%s name exceeds %d bytes", kind, types.MaxNameLength)
	}
	if strings.ContainsAny(name, " \t\r\n=") {
		return fmt.Errorf("%s name %q contains whitespace or '='", kind, name)
	}
	return nil
}

// ValidateCredential rejects credentials the LOGIN command line cannot carry.
func ValidateCredential(kind, value string) error {
	if strings.ContainsAny(value, " \t\r\n") {
		return fmt.Errorf("%s contains whitespace", kind)
	}
	return nil
}
