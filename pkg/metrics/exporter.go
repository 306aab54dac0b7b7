package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/downfa11-org/logstream/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BatchesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logstream_producer_batches_total",
		Help: "Produced batches by result.",
	}, []string{"result"})

	MessagesProduced = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logstream_producer_messages_total",
		Help: "Messages acknowledged by the broker.",
	})

	SendLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "logstream_producer_send_seconds",
		Help:    "Latency of a batch send.",
		Buckets: prometheus.DefBuckets,
	})

	Polls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logstream_consumer_polls_total",
		Help: "Polls by result (data, empty, error).",
	}, []string{"result"})

	MessagesConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logstream_consumer_messages_total",
		Help: "Messages handed to the consumer handler.",
	})

	PollLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "logstream_consumer_poll_seconds",
		Help:    "Latency of a poll.",
		Buckets: prometheus.DefBuckets,
	})

	ConsumerCursor = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "logstream_consumer_cursor",
		Help: "Next offset the consumer will read.",
	}, []string{"stream", "topic", "partition"})
)

func init() {
	prometheus.MustRegister(BatchesSent, MessagesProduced, SendLatency)
	prometheus.MustRegister(Polls, MessagesConsumed, PollLatency, ConsumerCursor)
}

// StartMetricsServer serves /metrics on port in the background. Close the returned
// server to stop it.
func StartMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		util.Info("[METRICS] Prometheus exporter listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.Error("metrics server failed: %v", err)
		}
	}()
	return srv
}

// ObserveSend records one batch send.
func ObserveSend(messages int, elapsed time.Duration, err error) {
	SendLatency.Observe(elapsed.Seconds())
	if err != nil {
		BatchesSent.WithLabelValues("error").Inc()
		return
	}
	BatchesSent.WithLabelValues("ok").Inc()
	MessagesProduced.Add(float64(messages))
}

// ObservePoll records one poll.
func ObservePoll(messages int, elapsed time.Duration, err error) {
	PollLatency.Observe(elapsed.Seconds())
	switch {
	case err != nil:
		Polls.WithLabelValues("error").Inc()
	case messages == 0:
		Polls.WithLabelValues("empty").Inc()
	default:
		Polls.WithLabelValues("data").Inc()
		MessagesConsumed.Add(float64(messages))
	}
}

func SetCursor(streamID, topicID, partition uint32, next uint64) {
	ConsumerCursor.WithLabelValues(
		strconv.FormatUint(uint64(streamID), 10),
		strconv.FormatUint(uint64(topicID), 10),
		strconv.FormatUint(uint64(partition), 10),
	).Set(float64(next))
}
