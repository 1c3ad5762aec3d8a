package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"okxdata/internal/application/service/aggregate"
	"okxdata/internal/config"
	repository "okxdata/internal/infrastructure/marketdata"
	"okxdata/internal/infrastructure/marketdata/models"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	if err := models.Migrate(cfg.Postgres.DSN); err != nil {
		logger.Fatalf("migrate schema: %v", err)
	}

	repo, err := repository.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("connect postgres: %v", err)
	}
	defer repo.Close()

	service := aggregate.NewRunningService(aggregate.RunningConfig{
		Symbols: cfg.OKX.Symbols,
		Pause:   cfg.Aggregation.Pause,
	}, repo, repo, logger)

	logger.WithField("symbols", len(cfg.OKX.Symbols)).Info("running aggregator started")

	if err := service.RunLoop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("running aggregator stopped with error: %v", err)
	}
	logger.Info("running aggregator stopped")
}
