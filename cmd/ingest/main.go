package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"okxdata/internal/config"
	domain "okxdata/internal/domain/entity/marketdata"
	"okxdata/internal/domain/interfaces"
	repository "okxdata/internal/infrastructure/marketdata"
	"okxdata/internal/infrastructure/marketdata/models"
	"okxdata/internal/infrastructure/notify"
	"okxdata/internal/infrastructure/okx"
	"okxdata/internal/infrastructure/proxy"
	"okxdata/internal/infrastructure/sink"
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

	writer := sink.NewBatchWriter(sink.BatchConfig{
		Size:    cfg.Batch.Size,
		Timeout: cfg.Batch.Timeout,
	}, repo, repo, logger)
	writer.Run(ctx)
	defer func() {
		if err := writer.Stop(context.Background()); err != nil {
			logger.Errorf("drain batch writer: %v", err)
		}
	}()

	var notifier interfaces.Notifier = notify.Nop{}
	if cfg.Telegram.BotToken != "" {
		notifier = notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
	}

	var proxies interfaces.ProxyResolver
	if cfg.Proxy.Enabled {
		pool, err := proxy.LoadPool(cfg.Proxy.Files, cfg.OKX.ConnsPerProcess)
		if err != nil {
			logger.Fatalf("load proxies: %v", err)
		}
		proxies = pool
	}

	g, gctx := errgroup.WithContext(ctx)
	for connIdx := 0; connIdx < cfg.OKX.ConnsPerProcess; connIdx++ {
		symbols := partitionSymbols(cfg.OKX.Symbols, connIdx, cfg.OKX.ConnsPerProcess)
		if len(symbols) == 0 {
			continue
		}
		manager := okx.NewConnManager(okx.Config{
			URL:        cfg.OKX.WebsocketURL,
			ProcessIdx: cfg.OKX.ProcessIdx,
			ConnIdx:    connIdx,
			Symbols:    symbols,
		}, okx.WebsocketDialer{}, proxies, notifier, func(event *domain.BookEvent) error {
			return writer.AddEvent(event)
		}, logger)
		g.Go(func() error {
			return manager.Run(gctx)
		})
	}

	logger.WithFields(logrus.Fields{
		"symbols":     len(cfg.OKX.Symbols),
		"connections": cfg.OKX.ConnsPerProcess,
		"process_idx": cfg.OKX.ProcessIdx,
	}).Info("ingestion started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("ingestion stopped with error: %v", err)
	}
	logger.Info("ingestion stopped")
}

// partitionSymbols shards the configured symbols across the process's
// connections round-robin.
func partitionSymbols(symbols []domain.SymbolID, connIdx, conns int) []domain.SymbolID {
	var out []domain.SymbolID
	for i, symbol := range symbols {
		if i%conns == connIdx {
			out = append(out, symbol)
		}
	}
	return out
}
