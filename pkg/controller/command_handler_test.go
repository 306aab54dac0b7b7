package controller

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/downfa11-org/logstream/pkg/connector"
	"github.com/downfa11-org/logstream/pkg/types"
	"github.com/downfa11-org/logstream/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T) (*CommandHandler, *ClientContext) {
	t.Helper()
	b := connector.NewBroker()
	b.AddUser("iggy", "iggy")
	ch := NewCommandHandler(b)
	ctx := &ClientContext{}
	require.Equal(t, "OK", string(ch.HandleCommand("LOGIN username=iggy password=iggy client=c1", ctx)))
	require.True(t, ctx.Authenticated)
	require.Equal(t, "c1", ctx.ClientID)
	return ch, ctx
}

func TestHandleCommandRequiresLogin(t *testing.T) {
	b := connector.NewBroker()
	b.AddUser("iggy", "iggy")
	ch := NewCommandHandler(b)
	ctx := &ClientContext{}

	assert.Equal(t, "ERROR: not authenticated", string(ch.HandleCommand("GET_STREAM name=s", ctx)))
	assert.True(t, util.IsErrorResponse(string(ch.HandleCommand("LOGIN username=iggy password=bad", ctx))))
	assert.False(t, ctx.Authenticated)
	assert.True(t, strings.HasPrefix(string(ch.HandleCommand("HELP", ctx)), "Available commands"))
}

func TestHandleTopologyCommands(t *testing.T) {
	ch, ctx := newHandler(t)

	tests := []struct {
		cmd  string
		want string
	}{
		{"GET_STREAM name=s", `ERROR: stream "s" (not found)`},
		{"CREATE_STREAM name=s id=2", "OK id=2 name=s"},
		{"CREATE_STREAM name=s id=2", `ERROR: stream "s" (already exists)`},
		{"GET_STREAM name=s", "OK id=2 name=s"},
		{"CREATE_TOPIC stream=2 name=t partitions=3", "OK id=1 stream=2 name=t partitions=3 replication=1"},
		{"GET_TOPIC stream=2 name=t", "OK id=1 stream=2 name=t partitions=3 replication=1"},
		{"GET_TOPIC stream=2 name=x", `ERROR: topic "x" (not found)`},
		{"CREATE_TOPIC stream=2 name=u", "ERROR: missing partitions parameter"},
		{"CREATE_TOPIC stream=abc name=u partitions=1", "ERROR: invalid stream: strconv.ParseUint: parsing \"abc\": invalid syntax"},
		{"CREATE_STREAM", "ERROR: CREATE_STREAM requires name parameter"},
		{"DROP_STREAM name=s", `ERROR: unknown command "DROP_STREAM"`},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, string(ch.HandleCommand(tc.cmd, ctx)), tc.cmd)
	}
}

func TestHandleBatchAndPoll(t *testing.T) {
	ch, ctx := newHandler(t)
	ch.HandleCommand("CREATE_STREAM name=s id=1", ctx)
	ch.HandleCommand("CREATE_TOPIC stream=1 name=t partitions=1 id=1", ctx)

	frame, err := util.EncodeBatchMessages(&types.Batch{
		StreamID: 1,
		TopicID:  1,
		Messages: []types.Message{types.NewMessage([]byte("a")), types.NewMessage([]byte("b"))},
	}, util.CodecLZ4)
	require.NoError(t, err)

	var ack types.AckResponse
	require.NoError(t, json.Unmarshal(ch.HandleBatchMessage(frame, ctx), &ack))
	assert.Equal(t, "OK", ack.Status)
	assert.Equal(t, 2, ack.Count)
	assert.Equal(t, uint64(1), ack.LastOffset)

	resp := ch.HandleCommand("POLL stream=1 topic=1 partition=0 consumer=1 strategy=offset value=1 count=5 auto_commit=true", ctx)
	require.True(t, util.IsBatchFrame(resp), string(resp))
	batch, err := util.DecodeBatchMessages(resp)
	require.NoError(t, err)
	require.Len(t, batch.Messages, 1)
	assert.Equal(t, "b", string(batch.Messages[0].Payload))
	assert.Equal(t, uint64(1), batch.Messages[0].Offset)

	assert.Equal(t, "OK offset=2", string(ch.HandleCommand("GET_OFFSET stream=1 topic=1 partition=0 consumer=1", ctx)))
	assert.Equal(t, "OK", string(ch.HandleCommand("STORE_OFFSET stream=1 topic=1 partition=0 consumer=1 offset=0", ctx)))
	assert.Equal(t, "OK offset=0", string(ch.HandleCommand("GET_OFFSET stream=1 topic=1 partition=0 consumer=1", ctx)))

	resp = ch.HandleCommand("POLL stream=1 topic=1 partition=0 consumer=1 strategy=sideways count=5", ctx)
	assert.True(t, util.IsErrorResponse(string(resp)))

	assert.True(t, util.IsErrorResponse(string(ch.HandleBatchMessage([]byte{0xBA, 0x7C, 9}, ctx))))
	assert.Equal(t, "ERROR: not authenticated", string(ch.HandleBatchMessage(frame, &ClientContext{})))
}
