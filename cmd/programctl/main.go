// Command programctl drives the program enrollment service from a terminal
// and prints backend responses as JSON.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"program-enrollment/backend/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		logging.New(os.Stderr, "error", true).Error("command failed", "error", err)
		os.Exit(1)
	}
}
