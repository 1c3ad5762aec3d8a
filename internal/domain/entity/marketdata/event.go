package marketdata

import "github.com/shopspring/decimal"

// PriceLevel is one (price, quantity) pair. In a delta a zero quantity means
// "remove this price level"; any other quantity is the new absolute quantity.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// BookEvent is one order book message from the live feed: a full Snapshot or an
// incremental Update. SequenceID/PrevSequenceID are only meaningful within one
// connection's lifetime; persisted ordering is (symbol, timestamp_ms).
type BookEvent struct {
	Symbol         SymbolID
	TimestampMS    int64
	Action         ActionID
	SequenceID     int64
	PrevSequenceID int64
	AskDeltas      []PriceLevel
	BidDeltas      []PriceLevel
}
