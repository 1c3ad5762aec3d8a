// Package publish refreshes the cached feature tables that downstream
// consumers read instead of hitting Postgres.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"okxdata/internal/domain/entity/marketdata"
	"okxdata/internal/domain/interfaces"
	"okxdata/internal/infrastructure/cache"
)

const (
	defaultPause      = 5 * time.Second
	defaultBatchLimit = 10000
)

// Processor derives named feature tables from a symbol's running records. The
// indicator math lives outside this service; it only stores whatever tables
// come back, each under its feature key.
type Processor interface {
	Process(ctx context.Context, symbol marketdata.SymbolID, records []marketdata.RunningRecord) (map[string][]byte, error)
}

// Config configures the refresh loop.
type Config struct {
	Symbols         []marketdata.SymbolID
	Pause           time.Duration
	MinStartTradeID int64
	BatchLimit      int
}

type Service struct {
	cfg       Config
	features  interfaces.FeatureRepository
	cache     interfaces.Cache
	processor Processor
	logger    *logrus.Entry
}

func NewService(cfg Config, features interfaces.FeatureRepository, store interfaces.Cache, processor Processor, logger *logrus.Logger) *Service {
	if cfg.Pause <= 0 {
		cfg.Pause = defaultPause
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = defaultBatchLimit
	}
	return &Service{
		cfg:       cfg,
		features:  features,
		cache:     store,
		processor: processor,
		logger:    logger.WithField("component", "publisher"),
	}
}

// Run refreshes every symbol's cached tables forever. Per-symbol failures are
// logged and retried on the next pass.
func (s *Service) Run(ctx context.Context) error {
	for {
		for _, symbol := range s.cfg.Symbols {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.RefreshSymbol(ctx, symbol); err != nil {
				s.logger.WithError(err).WithField("symbol", symbol.String()).Error("refresh failed")
			}
		}
		if err := sleepCtx(ctx, s.cfg.Pause); err != nil {
			return err
		}
	}
}

// RefreshSymbol stores the symbol's raw data table, then any processed
// feature tables. No records is a no-op, not an error.
func (s *Service) RefreshSymbol(ctx context.Context, symbol marketdata.SymbolID) error {
	records, err := s.features.ListRunningRecords(ctx, symbol, s.cfg.MinStartTradeID, s.cfg.BatchLimit)
	if err != nil {
		return fmt.Errorf("load running records: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode data table: %w", err)
	}
	if err := s.cache.Save(ctx, cache.DataKey(symbol), payload); err != nil {
		return fmt.Errorf("save data table: %w", err)
	}

	if s.processor == nil {
		return nil
	}
	tables, err := s.processor.Process(ctx, symbol, records)
	if err != nil {
		return fmt.Errorf("process features: %w", err)
	}
	for feature, table := range tables {
		if err := s.cache.Save(ctx, cache.FeatureKey(symbol, feature), table); err != nil {
			return fmt.Errorf("save feature %s: %w", feature, err)
		}
	}
	s.logger.WithFields(logrus.Fields{
		"symbol":   symbol.String(),
		"records":  len(records),
		"features": len(tables),
	}).Debug("refreshed cached tables")
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
