package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	domain "okxdata/internal/domain/entity/marketdata"
	"okxdata/internal/domain/interfaces"
)

const defaultRunningBatchLimit = 10000

// RunningConfig configures the running-batch aggregation loop.
type RunningConfig struct {
	Symbols    []domain.SymbolID
	Pause      time.Duration
	BatchLimit int
}

// RunningService maintains one continuously extended open window per symbol.
// Each cycle folds the next batch of trades past the window's end trade id
// into the carried totals and upserts the record in place.
type RunningService struct {
	cfg      RunningConfig
	trades   interfaces.TradeRepository
	features interfaces.FeatureRepository
	logger   *logrus.Entry
}

func NewRunningService(cfg RunningConfig, trades interfaces.TradeRepository, features interfaces.FeatureRepository, logger *logrus.Logger) *RunningService {
	if cfg.Pause <= 0 {
		cfg.Pause = defaultPause
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = defaultRunningBatchLimit
	}
	return &RunningService{
		cfg:      cfg,
		trades:   trades,
		features: features,
		logger:   logger.WithField("component", "running_aggregator"),
	}
}

// RunLoop mirrors the windowed loop's containment: per-symbol failures are
// logged and retried on the next pass.
func (s *RunningService) RunLoop(ctx context.Context) error {
	for {
		for _, symbol := range s.cfg.Symbols {
			if err := ctx.Err(); err != nil {
				return err
			}
			count, err := s.RunCycle(ctx, symbol)
			if err != nil {
				s.logger.WithError(err).WithField("symbol", symbol.String()).Error("running cycle failed")
				continue
			}
			if count > 0 {
				s.logger.WithFields(logrus.Fields{
					"symbol": symbol.String(),
					"trades": count,
				}).Info("extended running record")
			}
		}
		if err := sleepCtx(ctx, s.cfg.Pause); err != nil {
			return err
		}
	}
}

// RunCycle folds one trade batch into the symbol's running record and returns
// the number of trades consumed. No new trades is not an error.
func (s *RunningService) RunCycle(ctx context.Context, symbol domain.SymbolID) (int, error) {
	record, err := s.features.LastRunningRecord(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("load running record: %w", err)
	}

	afterTradeID := int64(0)
	if record != nil {
		afterTradeID = record.EndTradeID
	}
	trades, err := s.trades.ListTradesAfter(ctx, symbol, afterTradeID, s.cfg.BatchLimit)
	if err != nil {
		return 0, fmt.Errorf("load trades: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	record = foldTrades(symbol, record, trades)
	if err := s.features.UpsertRunningRecord(ctx, record); err != nil {
		return 0, fmt.Errorf("upsert running record: %w", err)
	}
	return len(trades), nil
}

// foldTrades extends the record with one ordered trade batch, creating the
// record from the batch's first trade when none exists yet. The start trade id
// never changes once set; it is the record's identity.
func foldTrades(symbol domain.SymbolID, record *domain.RunningRecord, trades []domain.Trade) *domain.RunningRecord {
	start := 0
	if record == nil {
		first := trades[0]
		record = &domain.RunningRecord{
			Symbol:           symbol,
			StartTradeID:     first.TradeID,
			EndTradeID:       first.TradeID,
			StartTimestampMS: first.TimestampMS,
			EndTimestampMS:   first.TimestampMS,
			OpenPrice:        first.Price,
			HighPrice:        first.Price,
			LowPrice:         first.Price,
			ClosePrice:       first.Price,
			TotalQuantity:    first.Quantity,
			TotalVolume:      first.Volume(),
			TotalTradesCount: 1,
		}
		if first.IsBuy {
			record.BuyQuantity = first.Quantity
			record.BuyVolume = first.Volume()
			record.BuyTradesCount = 1
		}
		start = 1
	}

	for i := start; i < len(trades); i++ {
		trade := &trades[i]
		if trade.Price.Cmp(record.HighPrice) > 0 {
			record.HighPrice = trade.Price
		}
		if trade.Price.Cmp(record.LowPrice) < 0 {
			record.LowPrice = trade.Price
		}
		record.ClosePrice = trade.Price
		record.EndTradeID = trade.TradeID
		record.EndTimestampMS = trade.TimestampMS

		volume := trade.Volume()
		record.TotalQuantity = record.TotalQuantity.Add(trade.Quantity)
		record.TotalVolume = record.TotalVolume.Add(volume)
		record.TotalTradesCount++
		if trade.IsBuy {
			record.BuyQuantity = record.BuyQuantity.Add(trade.Quantity)
			record.BuyVolume = record.BuyVolume.Add(volume)
			record.BuyTradesCount++
		}
	}
	return record
}
