package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		kind  ErrorKind
		name  string
		fatal bool
	}{
		{KindConnection, "connection", true},
		{KindTopology, "topology", true},
		{KindProduce, "produce", false},
		{KindPoll, "poll", false},
		{KindHandler, "handler", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", NewError(tt.kind, "op", base))
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, tt.name, tt.kind.String())
			assert.Equal(t, tt.fatal, IsFatal(err))
			assert.ErrorIs(t, err, base)
		})
	}

	assert.Equal(t, ErrorKind(0), KindOf(base))
	assert.False(t, IsFatal(nil))
}

func TestParseStrategyKind(t *testing.T) {
	k, err := ParseStrategyKind(" Next ")
	assert.NoError(t, err)
	assert.Equal(t, StrategyNext, k)

	_, err = ParseStrategyKind("sideways")
	assert.Error(t, err)
}
