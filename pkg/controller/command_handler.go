package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/downfa11-org/logstream/pkg/connector"
	"github.com/downfa11-org/logstream/pkg/types"
	"github.com/downfa11-org/logstream/util"
)

// ClientContext is the per-connection state kept by the server.
type ClientContext struct {
	ClientID      string
	Username      string
	Authenticated bool
}

// CommandHandler serves the text command protocol on top of an in-process Broker.
type CommandHandler struct {
	Broker *connector.Broker
}

func NewCommandHandler(b *connector.Broker) *CommandHandler {
	return &CommandHandler{Broker: b}
}

// HandleCommand dispatches a single text command and returns the reply.
func (ch *CommandHandler) HandleCommand(cmd string, ctx *ClientContext) []byte {
	name, args := util.ParseCommand(cmd)
	name = strings.ToUpper(name)

	switch name {
	case "HELP":
		return []byte(ch.handleHelp())
	case "LOGIN":
		return []byte(ch.handleLogin(args, ctx))
	case "":
		return []byte("ERROR: empty command")
	}

	if !ctx.Authenticated {
		return []byte("ERROR: not authenticated")
	}

	switch name {
	case "GET_STREAM":
		return []byte(ch.handleGetStream(args))
	case "CREATE_STREAM":
		return []byte(ch.handleCreateStream(args))
	case "GET_TOPIC":
		return []byte(ch.handleGetTopic(args))
	case "CREATE_TOPIC":
		return []byte(ch.handleCreateTopic(args))
	case "POLL":
		return ch.handlePoll(args)
	case "STORE_OFFSET":
		return []byte(ch.handleStoreOffset(args))
	case "GET_OFFSET":
		return []byte(ch.handleGetOffset(args))
	default:
		return []byte(fmt.Sprintf("ERROR: unknown command %q", name))
	}
}

func (ch *CommandHandler) handleHelp() string {
	return `Available commands:
LOGIN username=<name> password=<secret> [client=<id>] - authenticate the connection
GET_STREAM name=<name> - look up a stream
CREATE_STREAM name=<name> [id=<N>] - create a stream
GET_TOPIC stream=<id> name=<name> - look up a topic
CREATE_TOPIC stream=<id> name=<name> partitions=<N> [replication=<N>] [id=<N>] - create a topic
POLL stream=<id> topic=<id> partition=<N> consumer=<id> strategy=<offset|first|last|next|timestamp> value=<N> count=<N> [auto_commit=<bool>]
STORE_OFFSET consumer=<id> stream=<id> topic=<id> partition=<N> offset=<N> - store a consumer offset
GET_OFFSET consumer=<id> stream=<id> topic=<id> partition=<N> - fetch a consumer offset
HELP - show this help`
}

func errorResponse(err error) string {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return fmt.Sprintf("ERROR: %v (not found)", stripSentinel(err))
	case errors.Is(err, types.ErrAlreadyExists):
		return fmt.Sprintf("ERROR: %v (already exists)", stripSentinel(err))
	default:
		return fmt.Sprintf("ERROR: %v", err)
	}
}

// stripSentinel drops the trailing sentinel text so it is not repeated in the reply.
func stripSentinel(err error) string {
	msg := err.Error()
	for _, s := range []error{types.ErrNotFound, types.ErrAlreadyExists} {
		msg = strings.TrimSuffix(msg, ": "+s.Error())
	}
	return msg
}

func uintArg(args map[string]string, key string, bits int, required bool) (uint64, error) {
	v, ok := args[key]
	if !ok || v == "" {
		if required {
			return 0, fmt.Errorf("missing %s parameter", key)
		}
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return n, nil
}

func (ch *CommandHandler) handleLogin(args map[string]string, ctx *ClientContext) string {
	username := args["username"]
	if err := ch.Broker.Authenticate(username, args["password"]); err != nil {
		util.Warn("login rejected for %q: %v", username, err)
		return errorResponse(err)
	}
	ctx.Username = username
	ctx.ClientID = args["client"]
	ctx.Authenticated = true
	util.Debug("client %s logged in as %q", ctx.ClientID, username)
	return "OK"
}

func streamReply(s *types.Stream) string {
	return fmt.Sprintf("OK id=%d name=%s", s.ID, s.Name)
}

func topicReply(t *types.Topic) string {
	return fmt.Sprintf("OK id=%d stream=%d name=%s partitions=%d replication=%d",
		t.ID, t.StreamID, t.Name, t.PartitionsCount, t.ReplicationFactor)
}

func (ch *CommandHandler) handleGetStream(args map[string]string) string {
	name := args["name"]
	if name == "" {
		return "ERROR: GET_STREAM requires name parameter"
	}
	s, err := ch.Broker.GetStream(name)
	if err != nil {
		return errorResponse(err)
	}
	return streamReply(s)
}

func (ch *CommandHandler) handleCreateStream(args map[string]string) string {
	name := args["name"]
	if name == "" {
		return "ERROR: CREATE_STREAM requires name parameter"
	}
	id, err := uintArg(args, "id", 32, false)
	if err != nil {
		return errorResponse(err)
	}
	s, err := ch.Broker.CreateStream(name, uint32(id))
	if err != nil {
		return errorResponse(err)
	}
	util.Info("stream '%s' created with id %d", s.Name, s.ID)
	return streamReply(s)
}

func (ch *CommandHandler) handleGetTopic(args map[string]string) string {
	streamID, err := uintArg(args, "stream", 32, true)
	if err != nil {
		return errorResponse(err)
	}
	name := args["name"]
	if name == "" {
		return "ERROR: GET_TOPIC requires name parameter"
	}
	t, err := ch.Broker.GetTopic(uint32(streamID), name)
	if err != nil {
		return errorResponse(err)
	}
	return topicReply(t)
}

func (ch *CommandHandler) handleCreateTopic(args map[string]string) string {
	streamID, err := uintArg(args, "stream", 32, true)
	if err != nil {
		return errorResponse(err)
	}
	name := args["name"]
	if name == "" {
		return "ERROR: CREATE_TOPIC requires name parameter"
	}
	partitions, err := uintArg(args, "partitions", 32, true)
	if err != nil {
		return errorResponse(err)
	}
	replication, err := uintArg(args, "replication", 8, false)
	if err != nil {
		return errorResponse(err)
	}
	id, err := uintArg(args, "id", 32, false)
	if err != nil {
		return errorResponse(err)
	}

	t, err := ch.Broker.CreateTopic(uint32(streamID), name, uint32(partitions), uint8(replication), uint32(id))
	if err != nil {
		return errorResponse(err)
	}
	util.Info("topic '%s' created in stream %d with %d partitions", t.Name, t.StreamID, t.PartitionsCount)
	return topicReply(t)
}

// location parses stream, topic and partition arguments.
func location(args map[string]string) (uint32, uint32, uint32, error) {
	streamID, err := uintArg(args, "stream", 32, true)
	if err != nil {
		return 0, 0, 0, err
	}
	topicID, err := uintArg(args, "topic", 32, true)
	if err != nil {
		return 0, 0, 0, err
	}
	partition, err := uintArg(args, "partition", 32, true)
	if err != nil {
		return 0, 0, 0, err
	}
	return uint32(streamID), uint32(topicID), uint32(partition), nil
}

func consumerArg(args map[string]string) (types.Consumer, error) {
	id, err := uintArg(args, "consumer", 32, true)
	if err != nil {
		return types.Consumer{}, err
	}
	kind, err := uintArg(args, "consumer_kind", 8, false)
	if err != nil {
		return types.Consumer{}, err
	}
	return types.Consumer{Kind: types.ConsumerKind(kind), ID: uint32(id)}, nil
}

func (ch *CommandHandler) handlePoll(args map[string]string) []byte {
	streamID, topicID, partition, err := location(args)
	if err != nil {
		return []byte(errorResponse(err))
	}
	consumer, err := consumerArg(args)
	if err != nil {
		return []byte(errorResponse(err))
	}

	kind := types.StrategyOffset
	if s, ok := args["strategy"]; ok {
		if kind, err = types.ParseStrategyKind(s); err != nil {
			return []byte(errorResponse(err))
		}
	}
	value, err := uintArg(args, "value", 64, false)
	if err != nil {
		return []byte(errorResponse(err))
	}
	count, err := uintArg(args, "count", 32, true)
	if err != nil {
		return []byte(errorResponse(err))
	}
	autoCommit := args["auto_commit"] == "true"

	polled, err := ch.Broker.Read(types.PollRequest{
		Consumer:   consumer,
		StreamID:   streamID,
		TopicID:    topicID,
		Partition:  partition,
		Strategy:   types.PollingStrategy{Kind: kind, Value: value},
		Count:      uint32(count),
		AutoCommit: autoCommit,
	})
	if err != nil {
		return []byte(errorResponse(err))
	}

	frame, err := util.EncodeBatchMessages(&types.Batch{
		StreamID:      streamID,
		TopicID:       topicID,
		Partition:     polled.Partition,
		CurrentOffset: polled.CurrentOffset,
		Messages:      polled.Messages,
	}, util.CodecNone)
	if err != nil {
		util.Error("failed to encode poll response: %v", err)
		return []byte("ERROR: internal encode error")
	}
	util.Debug("polled %d messages from %d/%d/%d for %s", len(polled.Messages), streamID, topicID, partition, consumer)
	return frame
}

func (ch *CommandHandler) handleStoreOffset(args map[string]string) string {
	streamID, topicID, partition, err := location(args)
	if err != nil {
		return errorResponse(err)
	}
	consumer, err := consumerArg(args)
	if err != nil {
		return errorResponse(err)
	}
	offset, err := uintArg(args, "offset", 64, true)
	if err != nil {
		return errorResponse(err)
	}
	if err := ch.Broker.StoreOffset(consumer, streamID, topicID, partition, offset); err != nil {
		return errorResponse(err)
	}
	return "OK"
}

func (ch *CommandHandler) handleGetOffset(args map[string]string) string {
	streamID, topicID, partition, err := location(args)
	if err != nil {
		return errorResponse(err)
	}
	consumer, err := consumerArg(args)
	if err != nil {
		return errorResponse(err)
	}
	offset, err := ch.Broker.GetOffset(consumer, streamID, topicID, partition)
	if err != nil {
		return errorResponse(err)
	}
	return fmt.Sprintf("OK offset=%d", offset)
}

// HandleBatchMessage appends a batch frame and replies with a JSON AckResponse.
func (ch *CommandHandler) HandleBatchMessage(data []byte, ctx *ClientContext) []byte {
	if !ctx.Authenticated {
		return []byte("ERROR: not authenticated")
	}

	batch, err := util.DecodeBatchMessages(data)
	if err != nil {
		util.Error("Batch message decoding failed: %v", err)
		return []byte(fmt.Sprintf("ERROR: %v", err))
	}
	if len(batch.Messages) == 0 {
		return []byte("ERROR: empty batch")
	}

	ack, err := ch.Broker.Append(types.SendRequest{
		StreamID:  batch.StreamID,
		TopicID:   batch.TopicID,
		Partition: batch.Partition,
		Messages:  batch.Messages,
	})
	if err != nil {
		return []byte(errorResponse(err))
	}

	ackBytes, err := json.Marshal(ack)
	if err != nil {
		util.Error("Failed to marshal AckResponse: %v", err)
		return []byte("ERROR: internal marshal error")
	}
	return ackBytes
}
