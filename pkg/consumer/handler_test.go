package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/downfa11-org/logstream/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerFuncStopsAtFirstError(t *testing.T) {
	var handled []uint64
	bad := errors.New("bad payload")
	h := HandlerFunc(func(m types.Message) error {
		if m.Offset == 1 {
			return bad
		}
		handled = append(handled, m.Offset)
		return nil
	})

	err := h.Handle(context.Background(), []types.Message{{Offset: 0}, {Offset: 1}, {Offset: 2}})
	assert.ErrorIs(t, err, bad)
	assert.Equal(t, []uint64{0}, handled)
}

func TestDedupHandlerByID(t *testing.T) {
	var got []string
	next := HandlerFunc(func(m types.Message) error {
		got = append(got, string(m.Payload))
		return nil
	})
	h := NewDedupHandler(next)

	msgs := []types.Message{
		types.NewMessage([]byte("msg1")),
		types.NewMessage([]byte("msg2")),
		types.NewMessage([]byte("msg2")),
	}
	require.NoError(t, h.Handle(context.Background(), msgs))
	require.NoError(t, h.Handle(context.Background(), msgs))

	assert.Equal(t, []string{"msg1", "msg2", "msg2"}, got, "distinct ids with equal payloads are kept")
	assert.Equal(t, int64(3), h.Processed())
	assert.Equal(t, int64(3), h.Duplicates())
}

func TestDedupHandlerByPayloadHash(t *testing.T) {
	h := NewDedupHandler(nil)
	msgs := []types.Message{
		{ID: uuid.Nil, Payload: []byte("msg1")},
		{ID: uuid.Nil, Payload: []byte("msg2")},
		{ID: uuid.Nil, Payload: []byte("msg1")},
	}
	require.NoError(t, h.Handle(context.Background(), msgs))
	assert.Equal(t, int64(2), h.Processed())
	assert.Equal(t, int64(1), h.Duplicates())
}

func TestDedupHandlerPropagatesError(t *testing.T) {
	bad := errors.New("sink down")
	h := NewDedupHandler(HandlerFunc(func(types.Message) error { return bad }))
	err := h.Handle(context.Background(), []types.Message{types.NewMessage([]byte("x"))})
	assert.ErrorIs(t, err, bad)
	assert.Equal(t, int64(0), h.Processed())
}

func TestDedupHandlerRetriesFailedBatch(t *testing.T) {
	fail := true
	var got []string
	h := NewDedupHandler(HandlerFunc(func(m types.Message) error {
		if fail {
			return errors.New("sink down")
		}
		got = append(got, string(m.Payload))
		return nil
	}))

	msgs := []types.Message{
		types.NewMessage([]byte("msg1")),
		{ID: uuid.Nil, Payload: []byte("msg2")},
	}
	require.Error(t, h.Handle(context.Background(), msgs))

	fail = false
	require.NoError(t, h.Handle(context.Background(), msgs))
	assert.Equal(t, []string{"msg1", "msg2"}, got)
	assert.Equal(t, int64(2), h.Processed())
	assert.Equal(t, int64(0), h.Duplicates())

	require.NoError(t, h.Handle(context.Background(), msgs))
	assert.Equal(t, []string{"msg1", "msg2"}, got)
	assert.Equal(t, int64(2), h.Duplicates())
}

func TestPrintHandler(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	assert.NoError(t, PrintHandler{}.Handle(context.Background(), []types.Message{
		{Offset: 0, Payload: []byte("message-1")},
		{Offset: 1, Payload: long},
	}))
}
