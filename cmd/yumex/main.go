package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"yumex/internal/cli"
)

func main() {
	// Ctrl+C / SIGTERM cancel the running command; sessions are closed on the way out.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
