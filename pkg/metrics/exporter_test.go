package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveSend(t *testing.T) {
	okBefore := testutil.ToFloat64(BatchesSent.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(BatchesSent.WithLabelValues("error"))
	msgsBefore := testutil.ToFloat64(MessagesProduced)

	ObserveSend(10, time.Millisecond, nil)
	ObserveSend(10, time.Millisecond, errors.New("broker unavailable"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(BatchesSent.WithLabelValues("ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(BatchesSent.WithLabelValues("error")))
	assert.Equal(t, msgsBefore+10, testutil.ToFloat64(MessagesProduced))
}

func TestObservePoll(t *testing.T) {
	dataBefore := testutil.ToFloat64(Polls.WithLabelValues("data"))
	emptyBefore := testutil.ToFloat64(Polls.WithLabelValues("empty"))
	errBefore := testutil.ToFloat64(Polls.WithLabelValues("error"))
	consumedBefore := testutil.ToFloat64(MessagesConsumed)

	ObservePoll(5, time.Millisecond, nil)
	ObservePoll(0, time.Millisecond, nil)
	ObservePoll(0, time.Millisecond, errors.New("timeout"))

	assert.Equal(t, dataBefore+1, testutil.ToFloat64(Polls.WithLabelValues("data")))
	assert.Equal(t, emptyBefore+1, testutil.ToFloat64(Polls.WithLabelValues("empty")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(Polls.WithLabelValues("error")))
	assert.Equal(t, consumedBefore+5, testutil.ToFloat64(MessagesConsumed))
}

func TestSetCursor(t *testing.T) {
	SetCursor(1, 2, 3, 42)
	assert.Equal(t, float64(42), testutil.ToFloat64(ConsumerCursor.WithLabelValues("1", "2", "3")))
}
