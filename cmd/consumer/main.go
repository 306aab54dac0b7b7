package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/downfa11-org/logstream/pkg/bench"
	"github.com/downfa11-org/logstream/pkg/config"
	"github.com/downfa11-org/logstream/pkg/consumer"
	"github.com/downfa11-org/logstream/pkg/session"
	"github.com/downfa11-org/logstream/util"
)

var dedup = flag.Bool("dedup", false, "Skip messages already handled in this run")

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		util.Fatal("❌ Failed to load config: %v", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		util.Error("Failed to marshal config: %v", err)
	} else {
		util.Info("Configuration:\n%s", string(data))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := session.Dial(cfg)
	if err != nil {
		util.Fatal("❌ Invalid broker address: %v", err)
	}
	s, err := session.Open(ctx, cfg, conn)
	if err != nil {
		util.Fatal("❌ Failed to connect: %v", err)
	}

	var h consumer.Handler = consumer.PrintHandler{}
	var dh *consumer.DedupHandler
	if *dedup {
		dh = consumer.NewDedupHandler(h)
		h = dh
	}

	summary, err := s.Run(ctx, session.ModeConsumer, h)
	s.Close()
	bench.PrintSummary(summary)
	if dh != nil {
		util.Info("Processed %d messages, skipped %d duplicates", dh.Processed(), dh.Duplicates())
	}
	if err != nil && ctx.Err() == nil {
		util.Fatal("❌ Consumer failed: %v", err)
	}
}
