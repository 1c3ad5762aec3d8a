package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"okxdata/internal/config"
	repository "okxdata/internal/infrastructure/marketdata"
	"okxdata/internal/infrastructure/marketdata/models"
	"okxdata/internal/infrastructure/okx"
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

	poller := okx.NewTradePoller(okx.TradePollerConfig{
		BaseURL: cfg.OKX.RestURL,
		Symbols: cfg.OKX.Symbols,
		Pause:   cfg.Aggregation.TradePollPause,
	}, repo, logger)

	logger.WithField("symbols", len(cfg.OKX.Symbols)).Info("trade poller started")

	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("trade poller stopped with error: %v", err)
	}
	logger.Info("trade poller stopped")
}
