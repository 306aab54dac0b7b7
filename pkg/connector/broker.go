package connector

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/downfa11-org/logstream/pkg/types"
)

// Broker is an in-process stream/topic/partition log. It backs the Memory connector and
// the TCP test broker. Stored consumer offsets are the next offset to read.
type Broker struct {
	mu            sync.RWMutex
	streams       map[uint32]*memStream
	streamsByName map[string]uint32
	offsets       map[offsetKey]uint64
	users         map[string]string
	now           func() time.Time
}

type memStream struct {
	stream       types.Stream
	topics       map[uint32]*memTopic
	topicsByName map[string]uint32
}

type memTopic struct {
	topic      types.Topic
	partitions [][]types.Message
}

type offsetKey struct {
	consumer  types.Consumer
	streamID  uint32
	topicID   uint32
	partition uint32
}

func NewBroker() *Broker {
	return &Broker{
		streams:       make(map[uint32]*memStream),
		streamsByName: make(map[string]uint32),
		offsets:       make(map[offsetKey]uint64),
		users:         make(map[string]string),
		now:           time.Now,
	}
}

// AddUser registers credentials. A broker without users accepts any login.
func (b *Broker) AddUser(username, password string) {
	b.mu.Lock()
	b.users[username] = password
	b.mu.Unlock()
}

func (b *Broker) Authenticate(username, password string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.users) == 0 {
		return nil
	}
	if pw, ok := b.users[username]; !ok || pw != password {
		return fmt.Errorf("invalid credentials for user %q", username)
	}
	return nil
}

func (b *Broker) GetStream(name string) (*types.Stream, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	id, ok := b.streamsByName[name]
	if !ok {
		return nil, fmt.Errorf("stream %q: %w", name, types.ErrNotFound)
	}
	s := b.streams[id].stream
	return &s, nil
}

// CreateStream creates a stream; id 0 picks the next free id.
func (b *Broker) CreateStream(name string, id uint32) (*types.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.streamsByName[name]; ok {
		return nil, fmt.Errorf("stream %q: %w", name, types.ErrAlreadyExists)
	}
	if id == 0 {
		id = nextID(len(b.streams), func(i uint32) bool { _, ok := b.streams[i]; return ok })
	}
	if _, ok := b.streams[id]; ok {
		return nil, fmt.Errorf("stream id %d: %w", id, types.ErrAlreadyExists)
	}

	s := &memStream{
		stream:       types.Stream{ID: id, Name: name},
		topics:       make(map[uint32]*memTopic),
		topicsByName: make(map[string]uint32),
	}
	b.streams[id] = s
	b.streamsByName[name] = id
	out := s.stream
	return &out, nil
}

func (b *Broker) GetTopic(streamID uint32, name string) (*types.Topic, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.streams[streamID]
	if !ok {
		return nil, fmt.Errorf("stream %d: %w", streamID, types.ErrNotFound)
	}
	id, ok := s.topicsByName[name]
	if !ok {
		return nil, fmt.Errorf("topic %q: %w", name, types.ErrNotFound)
	}
	t := s.topics[id].topic
	return &t, nil
}

func (b *Broker) CreateTopic(streamID uint32, name string, partitionsCount uint32, replicationFactor uint8, id uint32) (*types.Topic, error) {
	if partitionsCount == 0 {
		return nil, fmt.Errorf("topic %q: partitions count must be positive", name)
	}
	if replicationFactor == 0 {
		replicationFactor = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.streams[streamID]
	if !ok {
		return nil, fmt.Errorf("stream %d: %w", streamID, types.ErrNotFound)
	}
	if _, ok := s.topicsByName[name]; ok {
		return nil, fmt.Errorf("topic %q: %w", name, types.ErrAlreadyExists)
	}
	if id == 0 {
		id = nextID(len(s.topics), func(i uint32) bool { _, ok := s.topics[i]; return ok })
	}
	if _, ok := s.topics[id]; ok {
		return nil, fmt.Errorf("topic id %d: %w", id, types.ErrAlreadyExists)
	}

	t := &memTopic{
		topic: types.Topic{
			ID:                id,
			StreamID:          streamID,
			Name:              name,
			PartitionsCount:   partitionsCount,
			ReplicationFactor: replicationFactor,
		},
		partitions: make([][]types.Message, partitionsCount),
	}
	s.topics[id] = t
	s.topicsByName[name] = id
	out := t.topic
	return &out, nil
}

func (b *Broker) partitionLocked(streamID, topicID, partition uint32) (*memTopic, error) {
	s, ok := b.streams[streamID]
	if !ok {
		return nil, fmt.Errorf("stream %d: %w", streamID, types.ErrNotFound)
	}
	t, ok := s.topics[topicID]
	if !ok {
		return nil, fmt.Errorf("topic %d: %w", topicID, types.ErrNotFound)
	}
	if partition >= t.topic.PartitionsCount {
		return nil, fmt.Errorf("partition %d: %w", partition, types.ErrNotFound)
	}
	return t, nil
}

// Append assigns consecutive offsets to msgs in call order.
func (b *Broker) Append(req types.SendRequest) (*types.AckResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("empty batch")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	t, err := b.partitionLocked(req.StreamID, req.TopicID, req.Partition)
	if err != nil {
		return nil, err
	}

	log := t.partitions[req.Partition]
	base := uint64(len(log))
	ts := b.now().UnixMicro()
	for i, m := range req.Messages {
		m.Offset = base + uint64(i)
		m.Partition = req.Partition
		m.Timestamp = ts
		m.Payload = append([]byte(nil), m.Payload...)
		log = append(log, m)
	}
	t.partitions[req.Partition] = log

	return &types.AckResponse{
		Status:     "OK",
		Partition:  req.Partition,
		BaseOffset: base,
		LastOffset: base + uint64(len(req.Messages)) - 1,
		Count:      len(req.Messages),
	}, nil
}

// Read serves a poll. With AutoCommit the consumer's stored offset moves past the result.
func (b *Broker) Read(req types.PollRequest) (*types.PolledMessages, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, err := b.partitionLocked(req.StreamID, req.TopicID, req.Partition)
	if err != nil {
		return nil, err
	}
	log := t.partitions[req.Partition]
	key := offsetKey{consumer: req.Consumer, streamID: req.StreamID, topicID: req.TopicID, partition: req.Partition}

	var start uint64
	switch req.Strategy.Kind {
	case types.StrategyOffset:
		start = req.Strategy.Value
	case types.StrategyFirst:
		start = 0
	case types.StrategyLast:
		if n := uint64(len(log)); n > uint64(req.Count) {
			start = n - uint64(req.Count)
		}
	case types.StrategyNext:
		start = b.offsets[key]
	case types.StrategyTimestamp:
		start = uint64(sort.Search(len(log), func(i int) bool {
			return uint64(log[i].Timestamp) >= req.Strategy.Value
		}))
	default:
		return nil, fmt.Errorf("unknown polling strategy %q", req.Strategy.Kind)
	}

	result := &types.PolledMessages{Partition: req.Partition}
	if n := len(log); n > 0 {
		result.CurrentOffset = uint64(n - 1)
	}
	if start >= uint64(len(log)) || req.Count == 0 {
		return result, nil
	}

	end := start + uint64(req.Count)
	if end > uint64(len(log)) {
		end = uint64(len(log))
	}
	result.Messages = make([]types.Message, end-start)
	copy(result.Messages, log[start:end])

	if req.AutoCommit {
		b.offsets[key] = end
	}
	return result, nil
}

func (b *Broker) StoreOffset(consumer types.Consumer, streamID, topicID, partition uint32, offset uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.partitionLocked(streamID, topicID, partition); err != nil {
		return err
	}
	b.offsets[offsetKey{consumer: consumer, streamID: streamID, topicID: topicID, partition: partition}] = offset
	return nil
}

func (b *Broker) GetOffset(consumer types.Consumer, streamID, topicID, partition uint32) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, err := b.partitionLocked(streamID, topicID, partition); err != nil {
		return 0, err
	}
	off, ok := b.offsets[offsetKey{consumer: consumer, streamID: streamID, topicID: topicID, partition: partition}]
	if !ok {
		return 0, fmt.Errorf("offset for %s: %w", consumer, types.ErrNotFound)
	}
	return off, nil
}

func nextID(n int, taken func(uint32) bool) uint32 {
	id := uint32(n) + 1
	for taken(id) {
		id++
	}
	return id
}
