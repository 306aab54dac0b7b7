// Command pipeline provisions the topology once and runs the producer and consumer loops
// side by side over a single connection.
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
	"github.com/downfa11-org/logstream/pkg/session"
	"github.com/downfa11-org/logstream/util"
)

var modeFlag = flag.String("mode", string(session.ModeBoth), "Loops to run: producer, consumer or both")

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		util.Fatal("❌ Failed to load config: %v", err)
	}
	mode, err := session.ParseMode(*modeFlag)
	if err != nil {
		util.Fatal("❌ %v", err)
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

	if _, err := s.Provision(ctx); err != nil {
		s.Close()
		util.Fatal("❌ Provisioning failed, not starting loops: %v", err)
	}
	util.Info("🚀 Running %s loop(s)", mode)

	summary, err := s.Run(ctx, mode, nil)
	s.Close()
	bench.PrintSummary(summary)
	if err != nil && ctx.Err() == nil {
		util.Fatal("❌ Run failed: %v", err)
	}
}
