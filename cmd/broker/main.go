// Command broker serves an in-memory stream/topic/partition log over the text command
// protocol. It keeps nothing on disk and is meant for local runs of the client programs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/downfa11-org/logstream/pkg/connector"
	"github.com/downfa11-org/logstream/pkg/controller"
	"github.com/downfa11-org/logstream/util"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8090", "Listen address")
	users := flag.String("users", "", "Comma separated user:password pairs (empty accepts any login)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	if err := util.SetLevel(*logLevel); err != nil {
		util.Fatal("❌ %v", err)
	}

	fmt.Print(`
    __                    __
   / /___  ____ ______  _/ /_________  ____ _____ ___
  / / __ \/ __ '/ ___/ / __/ ___/ _ \/ __ '/ __ '__ \
 / / /_/ / /_/ (__  ) / /_/ /  /  __/ /_/ / / / / / /
/_/\____/\__, /____/  \__/_/   \___/\__,_/_/ /_/ /_/
        /____/                          dev broker
`)

	b := connector.NewBroker()
	for _, pair := range strings.Split(*users, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, password, ok := strings.Cut(pair, ":")
		if !ok || name == "" {
			util.Fatal("❌ Invalid user entry %q (want user:password)", pair)
		}
		b.AddUser(name, password)
		util.Info("👤 Registered user %q", name)
	}

	srv := controller.NewServer(controller.NewCommandHandler(b))
	if err := srv.Start(*addr); err != nil {
		util.Fatal("❌ Broker failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	util.Info("Shutting down broker")
	if err := srv.Close(); err != nil {
		util.Error("close server: %v", err)
	}
}
