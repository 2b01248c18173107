// Command server runs the statecraft game API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/palazzo-labs/statecraft/internal/app/runtime"
	"github.com/palazzo-labs/statecraft/internal/config"
	"github.com/palazzo-labs/statecraft/pkg/logger"
)

func main() {
	// optional .env for local development
	_ = godotenv.Load()

	log := logger.NewDefault("server")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	app, err := runtime.New(cfg)
	if err != nil {
		log.WithError(err).Error("failed to start application")
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- app.Run() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("server failed")
			os.Exit(1)
		}
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}
}
