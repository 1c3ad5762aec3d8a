package interfaces

import (
	"context"

	marketdata "okxdata/internal/domain/entity/marketdata"
)

// BookEventRepository persists and replays raw order book events.
type BookEventRepository interface {
	AddEvents(ctx context.Context, events []marketdata.BookEvent) error

	// ListSnapshots returns up to limit snapshot events with
	// timestamp_ms >= minTimestampMS, ordered by time ascending.
	ListSnapshots(ctx context.Context, symbol marketdata.SymbolID, minTimestampMS int64, limit int) ([]marketdata.BookEvent, error)

	// ListUpdatesBetween returns update events with
	// startTS <= timestamp_ms < endTS, ordered by time ascending.
	ListUpdatesBetween(ctx context.Context, symbol marketdata.SymbolID, startTS, endTS int64) ([]marketdata.BookEvent, error)
}

// TradeRepository persists and reads raw trades.
type TradeRepository interface {
	AddTrades(ctx context.Context, trades []marketdata.Trade) error

	// ListTradesBetween returns trades with startTS <= timestamp_ms < endTS,
	// ordered by trade_id ascending.
	ListTradesBetween(ctx context.Context, symbol marketdata.SymbolID, startTS, endTS int64) ([]marketdata.Trade, error)

	// ListTradesAfter returns up to limit trades with trade_id > afterTradeID,
	// ordered by trade_id ascending.
	ListTradesAfter(ctx context.Context, symbol marketdata.SymbolID, afterTradeID int64, limit int) ([]marketdata.Trade, error)

	// LastTradeID returns the highest stored trade_id for the symbol, or
	// (0, false) when no trades are stored.
	LastTradeID(ctx context.Context, symbol marketdata.SymbolID) (int64, bool, error)
}

// FeatureRepository persists the aggregated feature records.
type FeatureRepository interface {
	// AddFeatureRecords writes all records of one aggregation cycle in a
	// single transaction.
	AddFeatureRecords(ctx context.Context, records []marketdata.FeatureRecord) error

	// LastFeatureRecord returns the most recent committed record for the
	// symbol (run_idx desc, record_idx desc), or nil when none exists.
	LastFeatureRecord(ctx context.Context, symbol marketdata.SymbolID) (*marketdata.FeatureRecord, error)

	UpsertRunningRecord(ctx context.Context, record *marketdata.RunningRecord) error

	// LastRunningRecord returns the running record with the highest
	// start_trade_id for the symbol, or nil when none exists.
	LastRunningRecord(ctx context.Context, symbol marketdata.SymbolID) (*marketdata.RunningRecord, error)

	// ListRunningRecords returns up to limit running records with
	// start_trade_id >= minStartTradeID, ordered by start_trade_id ascending.
	ListRunningRecords(ctx context.Context, symbol marketdata.SymbolID, minStartTradeID int64, limit int) ([]marketdata.RunningRecord, error)
}
