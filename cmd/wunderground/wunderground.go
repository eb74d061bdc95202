package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/clambin/wunderground/internal/cmd/cli"
)

var (
	// overridden during build
	version = "change-me"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.RootCmd.Version = version
	if err := cli.RootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("failed", "err", err)
		stop()
		os.Exit(1)
	}
}
