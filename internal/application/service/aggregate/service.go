// Package aggregate builds feature records from persisted order book events
// and trades. The windowed engine replays the interval between two
// consecutive snapshots; the running engine extends one open per-symbol
// window trade batch by trade batch.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"okxdata/internal/book"
	domain "okxdata/internal/domain/entity/marketdata"
	"okxdata/internal/domain/interfaces"
)

const defaultPause = time.Second

// Config configures the windowed aggregation loop.
type Config struct {
	Symbols []domain.SymbolID
	Pause   time.Duration
}

// Service is the windowed (bracket snapshot) aggregation engine.
type Service struct {
	cfg      Config
	events   interfaces.BookEventRepository
	trades   interfaces.TradeRepository
	features interfaces.FeatureRepository
	logger   *logrus.Entry
}

func NewService(cfg Config, events interfaces.BookEventRepository, trades interfaces.TradeRepository, features interfaces.FeatureRepository, logger *logrus.Logger) *Service {
	if cfg.Pause <= 0 {
		cfg.Pause = defaultPause
	}
	return &Service{
		cfg:      cfg,
		events:   events,
		trades:   trades,
		features: features,
		logger:   logger.WithField("component", "aggregator"),
	}
}

// RunLoop passes over every configured symbol forever. A failed cycle for one
// symbol is logged and retried on the next pass; it never stops the loop.
func (s *Service) RunLoop(ctx context.Context) error {
	for {
		for _, symbol := range s.cfg.Symbols {
			if err := ctx.Err(); err != nil {
				return err
			}
			count, err := s.RunCycle(ctx, symbol)
			if err != nil {
				s.logger.WithError(err).WithField("symbol", symbol.String()).Error("aggregation cycle failed")
				continue
			}
			if count > 0 {
				s.logger.WithFields(logrus.Fields{
					"symbol":  symbol.String(),
					"records": count,
				}).Info("committed aggregation cycle")
			}
		}
		if err := sleepCtx(ctx, s.cfg.Pause); err != nil {
			return err
		}
	}
}

// RunCycle performs one resumable aggregation pass for a symbol and returns
// the number of committed records. Fewer than two bracket snapshots past the
// resume point is not an error; the cycle is simply skipped.
func (s *Service) RunCycle(ctx context.Context, symbol domain.SymbolID) (int, error) {
	resumeTS := int64(0)
	runIdx := int64(0)
	last, err := s.features.LastFeatureRecord(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("load resume point: %w", err)
	}
	if last != nil {
		resumeTS = last.EndTimestampMS
		runIdx = last.RunIdx + 1
	}

	snapshots, err := s.events.ListSnapshots(ctx, symbol, resumeTS, 2)
	if err != nil {
		return 0, fmt.Errorf("load bracket snapshots: %w", err)
	}
	if len(snapshots) < 2 {
		return 0, nil
	}
	startTS := snapshots[0].TimestampMS
	endTS := snapshots[1].TimestampMS

	updates, err := s.events.ListUpdatesBetween(ctx, symbol, startTS, endTS)
	if err != nil {
		return 0, fmt.Errorf("load updates: %w", err)
	}
	trades, err := s.trades.ListTradesBetween(ctx, symbol, startTS, endTS)
	if err != nil {
		return 0, fmt.Errorf("load trades: %w", err)
	}

	records, err := buildWindows(symbol, runIdx, snapshots[0], updates, snapshots[1], trades)
	if err != nil {
		return 0, err
	}
	if err := s.features.AddFeatureRecords(ctx, records); err != nil {
		return 0, fmt.Errorf("commit records: %w", err)
	}
	return len(records), nil
}

// buildWindows replays the event run [start, updates..., end] and emits one
// record per consecutive event pair. Start depth is measured before the pair's
// second event is applied, end depth after.
func buildWindows(symbol domain.SymbolID, runIdx int64, start domain.BookEvent, updates []domain.BookEvent, end domain.BookEvent, trades []domain.Trade) ([]domain.FeatureRecord, error) {
	events := make([]domain.BookEvent, 0, len(updates)+2)
	events = append(events, start)
	events = append(events, updates...)
	events = append(events, end)

	state := book.New()
	state.ApplyEvent(&events[0])

	records := make([]domain.FeatureRecord, 0, len(events)-1)
	for i := 1; i < len(events); i++ {
		windowStart := events[i-1].TimestampMS
		windowEnd := events[i].TimestampMS

		startAsks, startBids, err := depthAggregates(state)
		if err != nil {
			return nil, fmt.Errorf("start depth for window %d: %w", i-1, err)
		}
		state.ApplyEvent(&events[i])
		endAsks, endBids, err := depthAggregates(state)
		if err != nil {
			return nil, fmt.Errorf("end depth for window %d: %w", i-1, err)
		}

		record := domain.FeatureRecord{
			Symbol:           symbol,
			RunIdx:           runIdx,
			RecordIdx:        int64(i - 1),
			StartTimestampMS: windowStart,
			EndTimestampMS:   windowEnd,
			StartAsks:        startAsks,
			StartBids:        startBids,
			EndAsks:          endAsks,
			EndBids:          endBids,
		}
		applyTrades(&record, windowTrades(trades, windowStart, windowEnd))
		records = append(records, record)
	}
	return records, nil
}

func depthAggregates(state *book.Book) (domain.DepthAggregate, domain.DepthAggregate, error) {
	askStats, err := state.Asks.Stats()
	if err != nil {
		return domain.DepthAggregate{}, domain.DepthAggregate{}, fmt.Errorf("asks: %w", err)
	}
	bidStats, err := state.Bids.Stats()
	if err != nil {
		return domain.DepthAggregate{}, domain.DepthAggregate{}, fmt.Errorf("bids: %w", err)
	}
	return askStats.Aggregate(), bidStats.Aggregate(), nil
}

// windowTrades selects trades with windowStart <= ts < windowEnd. The input is
// ordered by trade id, which the exchange assigns in time order.
func windowTrades(trades []domain.Trade, windowStart, windowEnd int64) []domain.Trade {
	var selected []domain.Trade
	for i := range trades {
		if trades[i].TimestampMS >= windowStart && trades[i].TimestampMS < windowEnd {
			selected = append(selected, trades[i])
		}
	}
	return selected
}

// applyTrades fills the trade-derived fields of one record. A window with zero
// trades keeps nil prices and trade ids and zero totals.
func applyTrades(record *domain.FeatureRecord, trades []domain.Trade) {
	if len(trades) == 0 {
		return
	}

	first := trades[0]
	last := trades[len(trades)-1]
	open := first.Price
	high := first.Price
	low := first.Price
	closePrice := last.Price

	totalQuantity := decimal.Zero
	buyQuantity := decimal.Zero
	totalVolume := decimal.Zero
	buyVolume := decimal.Zero
	var buyCount int64

	for i := range trades {
		trade := &trades[i]
		if trade.Price.Cmp(high) > 0 {
			high = trade.Price
		}
		if trade.Price.Cmp(low) < 0 {
			low = trade.Price
		}
		volume := trade.Volume()
		totalQuantity = totalQuantity.Add(trade.Quantity)
		totalVolume = totalVolume.Add(volume)
		if trade.IsBuy {
			buyQuantity = buyQuantity.Add(trade.Quantity)
			buyVolume = buyVolume.Add(volume)
			buyCount++
		}
	}

	record.OpenPrice = &open
	record.HighPrice = &high
	record.LowPrice = &low
	record.ClosePrice = &closePrice
	record.StartTradeID = &first.TradeID
	record.EndTradeID = &last.TradeID
	record.TotalQuantity = totalQuantity
	record.BuyQuantity = buyQuantity
	record.TotalVolume = totalVolume
	record.BuyVolume = buyVolume
	record.TotalTradesCount = int64(len(trades))
	record.BuyTradesCount = buyCount
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
