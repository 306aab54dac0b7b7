package bench_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/downfa11-org/logstream/pkg/bench"
	"github.com/downfa11-org/logstream/pkg/consumer"
	"github.com/downfa11-org/logstream/pkg/producer"
	"github.com/stretchr/testify/assert"
)

func TestPrintSummaryBothLoops(t *testing.T) {
	var buf bytes.Buffer
	bench.PrintSummaryTo(&buf, bench.Summary{
		Stream:      "example-stream",
		Topic:       "example-topic",
		Compression: "lz4",
		Producer:    &producer.Report{Attempted: 5, Sent: 4, Failed: 1, Messages: 40, Elapsed: 2 * time.Second},
		Consumer:    &consumer.Report{Polls: 7, Empty: 2, Batches: 5, Messages: 40, Elapsed: time.Second},
		Elapsed:     2 * time.Second,
	})

	got := buf.String()
	assert.Contains(t, got, "example-stream / example-topic")
	assert.Contains(t, got, "Batches sent/attempted   : 4/5")
	assert.Contains(t, got, "Publish Throughput       : 20.00 msg/s")
	assert.Contains(t, got, "Polls (empty)            : 7 (2)")
	assert.Contains(t, got, "Consume Throughput       : 40.00 msg/s")
}

func TestPrintSummaryProducerOnly(t *testing.T) {
	var buf bytes.Buffer
	bench.PrintSummaryTo(&buf, bench.Summary{Producer: &producer.Report{}})

	got := buf.String()
	assert.Contains(t, got, "Producer:")
	assert.NotContains(t, got, "Consumer:")
}
