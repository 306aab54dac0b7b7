package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/downfa11-org/logstream/pkg/bench"
	"github.com/downfa11-org/logstream/pkg/config"
	"github.com/downfa11-org/logstream/pkg/session"
	"github.com/downfa11-org/logstream/util"
)

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

	summary, err := s.Run(ctx, session.ModeProducer, nil)
	s.Close()
	bench.PrintSummary(summary)
	if err != nil && ctx.Err() == nil {
		util.Fatal("❌ Producer failed: %v", err)
	}
}
