package marketdata

import "github.com/shopspring/decimal"

// Trade models a single executed trade. TradeID is monotonic and assumed
// gap-free per symbol.
type Trade struct {
	Symbol      SymbolID
	TradeID     int64
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	IsBuy       bool
	TimestampMS int64
}

// Volume is price * quantity.
func (t Trade) Volume() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}
