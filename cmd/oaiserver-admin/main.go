// Command oaiserver-admin manages sets, recomputes membership and applies migrations
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"oaiserver/internal/platform/logger"
)

func main() {
	// tables go to stdout, logs to stderr
	lo := logger.FromEnv()
	lo.Service = service
	lo.Writer = os.Stderr
	logger.Init(lo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	b := openFromEnv()
	err := newRootCmd(b).ExecuteContext(ctx)
	if cerr := b.Close(context.Background()); cerr != nil {
		logger.Get().Error().Err(cerr).Msg("failed to close store")
	}
	stop()
	if err != nil {
		os.Exit(1)
	}
}
