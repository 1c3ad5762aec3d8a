package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"okxdata/internal/application/service/publish"
	"okxdata/internal/config"
	"okxdata/internal/infrastructure/cache"
	repository "okxdata/internal/infrastructure/marketdata"
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

	repo, err := repository.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("connect postgres: %v", err)
	}
	defer repo.Close()

	compression, err := cache.ParseCompression(cfg.Cache.Compression)
	if err != nil {
		logger.Fatalf("cache config: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatalf("connect redis: %v", err)
	}

	store := cache.NewStore(redisClient, cache.StoreConfig{
		Compression:  compression,
		MaxPartBytes: cfg.Cache.MaxPartBytes,
		TTL:          cfg.Cache.TTL,
		MetadataTTL:  cfg.Cache.MetadataTTL,
	}, logger)

	service := publish.NewService(publish.Config{
		Symbols:         cfg.OKX.Symbols,
		Pause:           cfg.Publish.Pause,
		MinStartTradeID: cfg.Publish.MinStartTradeID,
		BatchLimit:      cfg.Publish.BatchLimit,
	}, repo, store, nil, logger)

	logger.WithField("symbols", len(cfg.OKX.Symbols)).Info("publisher started")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("publisher stopped with error: %v", err)
	}
	logger.Info("publisher stopped")
}
