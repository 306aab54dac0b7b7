package connector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := newBackoff(100*time.Millisecond, 350*time.Millisecond)

	d1 := b.duration()
	assert.GreaterOrEqual(t, d1, 100*time.Millisecond)
	assert.Less(t, d1, 110*time.Millisecond)

	d2 := b.duration()
	assert.GreaterOrEqual(t, d2, 200*time.Millisecond)

	b.duration()
	d4 := b.duration()
	assert.GreaterOrEqual(t, d4, 350*time.Millisecond)
	assert.Less(t, d4, 385*time.Millisecond)

	b.reset()
	assert.Less(t, b.duration(), 110*time.Millisecond)
}

func TestBackoffZeroMin(t *testing.T) {
	b := newBackoff(0, time.Second)
	assert.Equal(t, time.Duration(0), b.duration())
}
