package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wearable-hub/internal/config"
	"wearable-hub/internal/service"
	"wearable-hub/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real deployments use the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wearable-hub")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	svc := service.NewHealthDeviceService(cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Initialize(ctx); err != nil {
		log.Fatal("Failed to initialize service",
			zap.Error(err),
		)
	}

	log.Info("Wearable hub started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("Received signal, shutting down",
		zap.String("signal", sig.String()),
	)
	cancel()

	if err := svc.Cleanup(); err != nil {
		log.Error("Failed to clean up service",
			zap.Error(err),
		)
	}

	log.Info("Wearable hub stopped")
}
