package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := LoadConfigFrom(fs, []string{
		"-broker", "tcp://localhost:9000",
		"-stream", "orders",
		"-topic", "created",
		"-partitions", "3",
		"-partition-id", "2",
		"-batches-limit", "7",
		"-interval", "0s",
	})
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:9000", cfg.BrokerAddr)
	assert.Equal(t, "orders", cfg.StreamName)
	assert.Equal(t, "created", cfg.TopicName)
	assert.Equal(t, uint32(3), cfg.PartitionsCount)
	assert.Equal(t, uint32(2), cfg.PartitionID)
	assert.Equal(t, 7, cfg.BatchesLimit)
	assert.Equal(t, time.Duration(0), cfg.PollInterval)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.True(t, cfg.AutoCommit)
	assert.Equal(t, OffsetBackendMemory, cfg.OffsetBackend)
}

func TestLoadConfigYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	data := []byte(`
broker_addr: 10.0.0.5:8090
stream_name: metrics
topic_name: cpu
partitions_count: 4
partition_id: 1
batch_size: 20
messages_per_batch: 15
compression: zstd
poll_interval: 250ms
auto_commit: false
offset_backend: etcd
etcd_endpoints: ["http://127.0.0.1:2379"]
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := LoadConfigFrom(fs, []string{"-config", path})
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5:8090", cfg.BrokerAddr)
	assert.Equal(t, "metrics", cfg.StreamName)
	assert.Equal(t, uint32(4), cfg.PartitionsCount)
	assert.Equal(t, 20, cfg.BatchSize)
	assert.Equal(t, 15, cfg.MessagesPerBatch)
	assert.Equal(t, "zstd", cfg.Compression)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.False(t, cfg.AutoCommit)
	assert.Equal(t, OffsetBackendEtcd, cfg.OffsetBackend)
	assert.Equal(t, []string{"http://127.0.0.1:2379"}, cfg.EtcdEndpoints)
}

func TestLoadConfigJSONOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"topic_name":"json-topic","batches_limit":0}`), 0o644))

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := LoadConfigFrom(fs, []string{"-config", path})
	require.NoError(t, err)
	assert.Equal(t, "json-topic", cfg.TopicName)
	assert.Equal(t, 0, cfg.BatchesLimit)
}

func TestLoadConfigMissingFile(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	_, err := LoadConfigFrom(fs, []string{"-config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ClientConfig)
		ok     bool
	}{
		{"defaults", func(*ClientConfig) {}, true},
		{"bad address", func(c *ClientConfig) { c.BrokerAddr = "localhost" }, false},
		{"bad scheme", func(c *ClientConfig) { c.BrokerAddr = "http://localhost:80" }, false},
		{"bad port", func(c *ClientConfig) { c.BrokerAddr = "localhost:99999" }, false},
		{"empty stream", func(c *ClientConfig) { c.StreamName = " " }, false},
		{"topic with space", func(c *ClientConfig) { c.TopicName = "a b" }, false},
		{"partition out of range", func(c *ClientConfig) { c.PartitionID = 1 }, false},
		{"messages exceed batch", func(c *ClientConfig) { c.MessagesPerBatch = 11 }, false},
		{"negative limit", func(c *ClientConfig) { c.BatchesLimit = -1 }, false},
		{"unknown compression", func(c *ClientConfig) { c.Compression = "brotli" }, false},
		{"etcd without endpoints", func(c *ClientConfig) { c.OffsetBackend = OffsetBackendEtcd }, false},
		{"unknown partitioning", func(c *ClientConfig) { c.Partitioning = "sticky" }, false},
		{"password with space", func(c *ClientConfig) { c.Password = "correct horse" }, false},
		{"username with tab", func(c *ClientConfig) { c.Username = "ig\tgy" }, false},
		{"password with equals", func(c *ClientConfig) { c.Password = "a=b" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestParseAddress(t *testing.T) {
	got, err := ParseAddress("tcp://127.0.0.1:8090")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8090", got)

	got, err = ParseAddress("[::1]:9000")
	require.NoError(t, err)
	assert.Equal(t, "[::1]:9000", got)

	_, err = ParseAddress(":9000")
	assert.Error(t, err)
}

func TestLoadConfigBackendFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := LoadConfigFrom(fs, []string{
		"-partitions", "4",
		"-partitioning", "hash",
		"-partition-key", "user-1",
		"-offset-backend", "etcd",
		"-etcd-endpoints", "http://a:2379, http://b:2379",
	})
	require.NoError(t, err)

	assert.Equal(t, PartitionHash, cfg.Partitioning)
	assert.Equal(t, "user-1", cfg.PartitionKey)
	assert.Equal(t, OffsetBackendEtcd, cfg.OffsetBackend)
	assert.Equal(t, []string{"http://a:2379", "http://b:2379"}, cfg.EtcdEndpoints)

	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err = LoadConfigFrom(fs, []string{"-offset-backend", "broker"})
	require.NoError(t, err)
	assert.Equal(t, OffsetBackendBroker, cfg.OffsetBackend)
}
