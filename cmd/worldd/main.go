package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/WOW112/jingdianwow2/internal/app"
	"github.com/WOW112/jingdianwow2/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := telemetry.WrapLogger(log.Default())
	code, err := app.Run(ctx, logger)
	if err != nil {
		logger.Printf("[worldd] %v", err)
	}
	stop()
	os.Exit(int(code))
}
