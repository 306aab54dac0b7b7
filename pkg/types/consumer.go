package types

import (
	"fmt"
	"strings"
)

type ConsumerKind int

const (
	ConsumerSingle ConsumerKind = iota
	ConsumerGroup
)

func (k ConsumerKind) String() string {
	if k == ConsumerGroup {
		return "group"
	}
	return "consumer"
}

// Consumer identifies whose offsets are stored by the broker.
type Consumer struct {
	Kind ConsumerKind
	ID   uint32
}

func (c Consumer) String() string {
	return fmt.Sprintf("%s-%d", c.Kind, c.ID)
}

type StrategyKind string

const (
	StrategyOffset    StrategyKind = "offset"
	StrategyFirst     StrategyKind = "first"
	StrategyLast      StrategyKind = "last"
	StrategyNext      StrategyKind = "next"
	StrategyTimestamp StrategyKind = "timestamp"
)

// PollingStrategy selects where a poll starts reading.
type PollingStrategy struct {
	Kind  StrategyKind
	Value uint64
}

func OffsetStrategy(offset uint64) PollingStrategy {
	return PollingStrategy{Kind: StrategyOffset, Value: offset}
}

func NextStrategy() PollingStrategy {
	return PollingStrategy{Kind: StrategyNext}
}

func ParseStrategyKind(s string) (StrategyKind, error) {
	switch k := StrategyKind(strings.ToLower(strings.TrimSpace(s))); k {
	case StrategyOffset, StrategyFirst, StrategyLast, StrategyNext, StrategyTimestamp:
		return k, nil
	default:
		return "", fmt.Errorf("unknown polling strategy: %q", s)
	}
}

// PollRequest describes a single poll against one partition.
type PollRequest struct {
	Consumer   Consumer
	StreamID   uint32
	TopicID    uint32
	Partition  uint32
	Strategy   PollingStrategy
	Count      uint32
	AutoCommit bool
}

// SendRequest carries a batch for one partition.
type SendRequest struct {
	StreamID  uint32
	TopicID   uint32
	Partition uint32
	Messages  []Message
}
