package producer

import (
	"fmt"
	"hash/fnv"
	"sync/atomic"

	"github.com/downfa11-org/logstream/pkg/config"
)

// Partitioner picks the partition a batch is sent to.
type Partitioner interface {
	Partition(key []byte, partitions uint32) uint32
}

type fixedPartitioner uint32

// Fixed always selects id, clamped into range.
func Fixed(id uint32) Partitioner {
	return fixedPartitioner(id)
}

func (f fixedPartitioner) Partition(_ []byte, partitions uint32) uint32 {
	if partitions == 0 {
		return 0
	}
	return uint32(f) % partitions
}

type roundRobin struct {
	next atomic.Uint32
}

// RoundRobin cycles through the partitions one batch at a time.
func RoundRobin() Partitioner {
	return &roundRobin{}
}

func (r *roundRobin) Partition(_ []byte, partitions uint32) uint32 {
	if partitions == 0 {
		return 0
	}
	return (r.next.Add(1) - 1) % partitions
}

type hashPartitioner struct{}

// Hash maps the key with FNV-1a, so equal keys land on the same partition.
func Hash() Partitioner {
	return hashPartitioner{}
}

func (hashPartitioner) Partition(key []byte, partitions uint32) uint32 {
	if partitions == 0 {
		return 0
	}
	h := fnv.New32a()
	h.Write(key)
	return h.Sum32() % partitions
}

// NewPartitioner builds the partitioner selected by cfg.
func NewPartitioner(cfg *config.ClientConfig) (Partitioner, error) {
	switch cfg.Partitioning {
	case config.PartitionFixed, "":
		return Fixed(cfg.PartitionID), nil
	case config.PartitionRoundRobin:
		return RoundRobin(), nil
	case config.PartitionHash:
		return Hash(), nil
	default:
		return nil, fmt.Errorf("unknown partitioning %q", cfg.Partitioning)
	}
}
