package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"strategist/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.GetLogger().WithComponent("cli").WithError(err).Error("command failed")
		stop()
		os.Exit(1)
	}
}
