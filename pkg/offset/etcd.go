package offset

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/downfa11-org/logstream/pkg/types"
	clientv3 "go.etcd.io/etcd/client/v3"
)

type EtcdConfig struct {
	Endpoints   []string
	Prefix      string
	DialTimeout time.Duration
}

// Etcd keeps one key per cursor under Prefix, holding the decimal next offset.
type Etcd struct {
	client *clientv3.Client
	prefix string
	owned  bool
}

func NewEtcd(cfg EtcdConfig) (*Etcd, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("etcd endpoints required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create etcd client: %w", err)
	}
	s := NewEtcdWithClient(cli, cfg.Prefix)
	s.owned = true
	return s, nil
}

// NewEtcdWithClient wraps an existing client; Close does not close it.
func NewEtcdWithClient(cli *clientv3.Client, prefix string) *Etcd {
	if prefix == "" {
		prefix = "/logstream/offsets"
	}
	return &Etcd{client: cli, prefix: prefix}
}

func (s *Etcd) keyPath(key Key) string {
	return path.Join(s.prefix,
		strconv.FormatUint(uint64(key.StreamID), 10),
		strconv.FormatUint(uint64(key.TopicID), 10),
		strconv.FormatUint(uint64(key.Partition), 10),
		key.Consumer.String())
}

func (s *Etcd) Load(ctx context.Context, key Key) (uint64, error) {
	resp, err := s.client.Get(ctx, s.keyPath(key))
	if err != nil {
		return 0, fmt.Errorf("etcd get %s: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return 0, fmt.Errorf("offset %s: %w", key, types.ErrNotFound)
	}
	off, err := strconv.ParseUint(string(resp.Kvs[0].Value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt offset at %s: %w", s.keyPath(key), err)
	}
	return off, nil
}

func (s *Etcd) Save(ctx context.Context, key Key, next uint64) error {
	if _, err := s.client.Put(ctx, s.keyPath(key), strconv.FormatUint(next, 10)); err != nil {
		return fmt.Errorf("etcd put %s: %w", key, err)
	}
	return nil
}

func (s *Etcd) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
