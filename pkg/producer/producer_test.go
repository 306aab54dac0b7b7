package producer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/downfa11-org/logstream/pkg/connector"
	"github.com/downfa11-org/logstream/pkg/connector/mocks"
	"github.com/downfa11-org/logstream/pkg/pacing"
	"github.com/downfa11-org/logstream/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupMemory(t *testing.T, partitions uint32) (*connector.Broker, connector.Connector) {
	t.Helper()
	b := connector.NewBroker()
	_, err := b.CreateStream("s", 1)
	require.NoError(t, err)
	_, err = b.CreateTopic(1, "t", partitions, 1, 1)
	require.NoError(t, err)

	c := connector.NewMemory(b)
	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Login(context.Background(), "iggy", "iggy"))
	return b, c
}

func payloadsOf(msgs []types.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m.Payload)
	}
	return out
}

func TestRunSendsExactBatchesWithIncreasingIDs(t *testing.T) {
	b, c := setupMemory(t, 1)
	p, err := New(c, pacing.NewFixed(0), Options{
		StreamID: 1, TopicID: 1, PartitionsCount: 1,
		BatchSize: 10, MessagesPerBatch: 10, BatchesLimit: 5,
	})
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Attempted)
	assert.Equal(t, 5, report.Sent)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 50, report.Messages)

	polled, err := b.Read(types.PollRequest{StreamID: 1, TopicID: 1, Strategy: types.OffsetStrategy(0), Count: 100})
	require.NoError(t, err)
	require.Len(t, polled.Messages, 50)
	for i, m := range polled.Messages {
		assert.Equal(t, fmt.Sprintf("message-%d", i+1), string(m.Payload))
		assert.Equal(t, uint64(i), m.Offset)
	}
}

func TestRunFailureDoesNotStopNextBatch(t *testing.T) {
	conn := new(mocks.MockConnector)
	var sent [][]string
	record := func(args mock.Arguments) {
		sent = append(sent, payloadsOf(args.Get(1).(types.SendRequest).Messages))
	}
	ok := &types.AckResponse{Status: "OK"}

	conn.On("Send", mock.Anything, mock.Anything).Run(record).Return(ok, nil).Once()
	conn.On("Send", mock.Anything, mock.Anything).Run(record).Return(nil, errors.New("broker unavailable")).Once()
	conn.On("Send", mock.Anything, mock.Anything).Run(record).Return(ok, nil).Once()

	pauses := 0
	pacer := pacing.PacerFunc(func(ctx context.Context) error {
		pauses++
		return nil
	})
	p, err := New(conn, pacer, Options{StreamID: 1, TopicID: 1, BatchSize: 3, MessagesPerBatch: 3, BatchesLimit: 3})
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Attempted: 3, Sent: 2, Failed: 1, Messages: 6, Elapsed: report.Elapsed}, report)
	assert.Equal(t, 3, pauses, "pause follows success and failure alike")

	require.Len(t, sent, 3)
	assert.Equal(t, []string{"message-1", "message-2", "message-3"}, sent[0])
	assert.Equal(t, []string{"message-4", "message-5", "message-6"}, sent[1])
	assert.Equal(t, []string{"message-7", "message-8", "message-9"}, sent[2])
	conn.AssertExpectations(t)
}

func TestSendBatchRejectsInvalidBatch(t *testing.T) {
	conn := new(mocks.MockConnector)
	p, err := New(conn, pacing.NewFixed(0), Options{BatchSize: 2, MessagesPerBatch: 2, BatchesLimit: 1})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = p.SendBatch(ctx, 1, 1, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidBatch)
	assert.Equal(t, types.KindProduce, types.KindOf(err))

	three := []types.Message{types.NewMessage(nil), types.NewMessage(nil), types.NewMessage(nil)}
	_, err = p.SendBatch(ctx, 1, 1, nil, three)
	assert.ErrorIs(t, err, ErrInvalidBatch)

	conn.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSendBatchWrapsConnectorError(t *testing.T) {
	conn := new(mocks.MockConnector)
	boom := errors.New("write: broken pipe")
	conn.On("Send", mock.Anything, mock.MatchedBy(func(req types.SendRequest) bool {
		return req.Partition == 2 && req.StreamID == 4 && req.TopicID == 5
	})).Return(nil, boom).Once()

	p, err := New(conn, pacing.NewFixed(0), Options{PartitionsCount: 3, Partitioner: Fixed(2), BatchSize: 1, MessagesPerBatch: 1})
	require.NoError(t, err)

	_, err = p.SendBatch(context.Background(), 4, 5, nil, []types.Message{types.NewMessage([]byte("x"))})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, types.KindProduce, types.KindOf(err))
	assert.False(t, types.IsFatal(err))
	conn.AssertExpectations(t)
}

func TestRunStopsOnCancellation(t *testing.T) {
	_, c := setupMemory(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pauses := 0
	pacer := pacing.PacerFunc(func(ctx context.Context) error {
		pauses++
		if pauses == 2 {
			cancel()
		}
		return ctx.Err()
	})
	p, err := New(c, pacer, Options{StreamID: 1, TopicID: 1, BatchSize: 1, MessagesPerBatch: 1})
	require.NoError(t, err)

	report, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 2, report.Sent)
}

func TestNewValidatesOptions(t *testing.T) {
	conn := new(mocks.MockConnector)
	pacer := pacing.NewFixed(0)

	_, err := New(conn, pacer, Options{BatchSize: 0, MessagesPerBatch: 1})
	assert.Error(t, err)
	_, err = New(conn, pacer, Options{BatchSize: 5, MessagesPerBatch: 6})
	assert.Error(t, err)
	_, err = New(conn, pacer, Options{BatchSize: 5, MessagesPerBatch: 5, BatchesLimit: -1})
	assert.Error(t, err)
}
