package marketdata

import "github.com/shopspring/decimal"

// DepthAggregate captures one side of the order book at an instant: totals plus
// the extreme price/quantity/volume over every price level present.
type DepthAggregate struct {
	TotalQuantity decimal.Decimal
	TotalVolume   decimal.Decimal
	MaxPrice      decimal.Decimal
	MinPrice      decimal.Decimal
	MaxQuantity   decimal.Decimal
	MinQuantity   decimal.Decimal
	MaxVolume     decimal.Decimal
	MinVolume     decimal.Decimal
}

// FeatureRecord is one closed aggregation window produced by the windowed
// engine: the interval between two consecutive persisted order book events,
// with the trades that fell inside it. Keyed by (symbol, run_idx, record_idx);
// immutable after commit.
//
// Price and trade-id fields are nil for a window without trades.
type FeatureRecord struct {
	Symbol    SymbolID
	RunIdx    int64
	RecordIdx int64

	StartTimestampMS int64
	EndTimestampMS   int64

	OpenPrice  *decimal.Decimal
	HighPrice  *decimal.Decimal
	LowPrice   *decimal.Decimal
	ClosePrice *decimal.Decimal

	StartTradeID *int64
	EndTradeID   *int64

	TotalQuantity    decimal.Decimal
	BuyQuantity      decimal.Decimal
	TotalVolume      decimal.Decimal
	BuyVolume        decimal.Decimal
	TotalTradesCount int64
	BuyTradesCount   int64

	StartAsks DepthAggregate
	StartBids DepthAggregate
	EndAsks   DepthAggregate
	EndBids   DepthAggregate
}

// RunningRecord is the running-batch variant's single open window per symbol:
// keyed by (symbol, start_trade_id) and rewritten in place as trade batches are
// folded in. Carries trade aggregates only.
type RunningRecord struct {
	Symbol       SymbolID
	StartTradeID int64
	EndTradeID   int64

	StartTimestampMS int64
	EndTimestampMS   int64

	OpenPrice  decimal.Decimal
	HighPrice  decimal.Decimal
	LowPrice   decimal.Decimal
	ClosePrice decimal.Decimal

	TotalQuantity    decimal.Decimal
	BuyQuantity      decimal.Decimal
	TotalVolume      decimal.Decimal
	BuyVolume        decimal.Decimal
	TotalTradesCount int64
	BuyTradesCount   int64
}
