package aggregate

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	domain "okxdata/internal/domain/entity/marketdata"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeEventRepo struct {
	events        []domain.BookEvent
	snapshotMinTS []int64
}

func (f *fakeEventRepo) AddEvents(_ context.Context, events []domain.BookEvent) error {
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeEventRepo) ListSnapshots(_ context.Context, symbol domain.SymbolID, minTimestampMS int64, limit int) ([]domain.BookEvent, error) {
	f.snapshotMinTS = append(f.snapshotMinTS, minTimestampMS)
	var out []domain.BookEvent
	for _, event := range f.events {
		if event.Symbol != symbol || event.Action != domain.ActionSnapshot || event.TimestampMS < minTimestampMS {
			continue
		}
		out = append(out, event)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeEventRepo) ListUpdatesBetween(_ context.Context, symbol domain.SymbolID, startTS, endTS int64) ([]domain.BookEvent, error) {
	var out []domain.BookEvent
	for _, event := range f.events {
		if event.Symbol != symbol || event.Action != domain.ActionUpdate {
			continue
		}
		if event.TimestampMS >= startTS && event.TimestampMS < endTS {
			out = append(out, event)
		}
	}
	return out, nil
}

type fakeTradeRepo struct {
	trades []domain.Trade
}

func (f *fakeTradeRepo) AddTrades(_ context.Context, trades []domain.Trade) error {
	f.trades = append(f.trades, trades...)
	return nil
}

func (f *fakeTradeRepo) ListTradesBetween(_ context.Context, symbol domain.SymbolID, startTS, endTS int64) ([]domain.Trade, error) {
	var out []domain.Trade
	for _, trade := range f.trades {
		if trade.Symbol == symbol && trade.TimestampMS >= startTS && trade.TimestampMS < endTS {
			out = append(out, trade)
		}
	}
	return out, nil
}

func (f *fakeTradeRepo) ListTradesAfter(_ context.Context, symbol domain.SymbolID, afterTradeID int64, limit int) ([]domain.Trade, error) {
	var out []domain.Trade
	for _, trade := range f.trades {
		if trade.Symbol != symbol || trade.TradeID <= afterTradeID {
			continue
		}
		out = append(out, trade)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeTradeRepo) LastTradeID(_ context.Context, symbol domain.SymbolID) (int64, bool, error) {
	var last int64
	found := false
	for _, trade := range f.trades {
		if trade.Symbol == symbol && trade.TradeID > last {
			last = trade.TradeID
			found = true
		}
	}
	return last, found, nil
}

type fakeFeatureRepo struct {
	records []domain.FeatureRecord
	commits int

	running map[domain.SymbolID]*domain.RunningRecord
}

func (f *fakeFeatureRepo) AddFeatureRecords(_ context.Context, records []domain.FeatureRecord) error {
	f.records = append(f.records, records...)
	f.commits++
	return nil
}

func (f *fakeFeatureRepo) LastFeatureRecord(_ context.Context, symbol domain.SymbolID) (*domain.FeatureRecord, error) {
	var last *domain.FeatureRecord
	for i := range f.records {
		record := &f.records[i]
		if record.Symbol != symbol {
			continue
		}
		if last == nil || record.RunIdx > last.RunIdx ||
			(record.RunIdx == last.RunIdx && record.RecordIdx > last.RecordIdx) {
			last = record
		}
	}
	if last == nil {
		return nil, nil
	}
	copyRecord := *last
	return &copyRecord, nil
}

func (f *fakeFeatureRepo) UpsertRunningRecord(_ context.Context, record *domain.RunningRecord) error {
	if f.running == nil {
		f.running = make(map[domain.SymbolID]*domain.RunningRecord)
	}
	copyRecord := *record
	f.running[record.Symbol] = &copyRecord
	return nil
}

func (f *fakeFeatureRepo) LastRunningRecord(_ context.Context, symbol domain.SymbolID) (*domain.RunningRecord, error) {
	record, ok := f.running[symbol]
	if !ok {
		return nil, nil
	}
	copyRecord := *record
	return &copyRecord, nil
}

func (f *fakeFeatureRepo) ListRunningRecords(_ context.Context, symbol domain.SymbolID, minStartTradeID int64, limit int) ([]domain.RunningRecord, error) {
	record, ok := f.running[symbol]
	if !ok || record.StartTradeID < minStartTradeID || limit < 1 {
		return nil, nil
	}
	return []domain.RunningRecord{*record}, nil
}
