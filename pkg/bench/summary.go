// Package bench formats the end-of-run summary printed by the client programs.
package bench

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/downfa11-org/logstream/pkg/consumer"
	"github.com/downfa11-org/logstream/pkg/producer"
)

// Summary collects what a session did. A nil report means that loop did not run.
type Summary struct {
	Stream      string
	Topic       string
	Partition   uint32
	Compression string

	Producer *producer.Report
	Consumer *consumer.Report
	Elapsed  time.Duration
}

func throughput(n int, d time.Duration) float64 {
	seconds := d.Seconds()
	if seconds <= 0 {
		seconds = 0.001
	}
	return float64(n) / seconds
}

// PrintSummaryTo writes the summary in a fixed layout.
func PrintSummaryTo(w io.Writer, s Summary) {
	fmt.Fprintln(w, "=== RUN SUMMARY ===")
	fmt.Fprintf(w, "Stream / Topic             : %s / %s\n", s.Stream, s.Topic)
	fmt.Fprintf(w, "Partition                  : %d\n", s.Partition)
	fmt.Fprintf(w, "Compression                : %s\n", s.Compression)
	fmt.Fprintf(w, "Elapsed Time               : %.3fs\n", s.Elapsed.Seconds())

	if p := s.Producer; p != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Producer:")
		fmt.Fprintf(w, "  Batches sent/attempted   : %d/%d\n", p.Sent, p.Attempted)
		fmt.Fprintf(w, "  Failed batches           : %d\n", p.Failed)
		fmt.Fprintf(w, "  Messages published       : %d\n", p.Messages)
		fmt.Fprintf(w, "  Publish Throughput       : %.2f msg/s\n", throughput(p.Messages, p.Elapsed))
	}
	if c := s.Consumer; c != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Consumer:")
		fmt.Fprintf(w, "  Polls (empty)            : %d (%d)\n", c.Polls, c.Empty)
		fmt.Fprintf(w, "  Batches consumed         : %d\n", c.Batches)
		fmt.Fprintf(w, "  Messages consumed        : %d\n", c.Messages)
		fmt.Fprintf(w, "  Consume Throughput       : %.2f msg/s\n", throughput(c.Messages, c.Elapsed))
	}
	fmt.Fprintln(w, "========================================")
}

func PrintSummary(s Summary) {
	PrintSummaryTo(os.Stdout, s)
}
