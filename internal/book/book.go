// Package book keeps the in-memory order book state for one symbol and
// computes depth statistics over it. A Book is owned by exactly one task (a
// live connection or one replay cycle) and is never shared.
package book

import (
	"errors"

	"github.com/shopspring/decimal"

	marketdata "okxdata/internal/domain/entity/marketdata"
)

// ErrEmptyBook is returned when depth statistics are requested for a side with
// no price levels. Once a snapshot has been applied an empty side is a data
// quality fault, not a valid state.
var ErrEmptyBook = errors.New("order book side is empty")

// Side maps a price (by its canonical decimal string) to its level. A level
// with zero quantity is never stored: applying a zero-quantity delta removes
// the price instead.
type Side map[string]marketdata.PriceLevel

// Apply folds deltas into the side. Quantities are absolute, so applying the
// same delta twice is idempotent.
func (s Side) Apply(deltas []marketdata.PriceLevel) {
	for _, delta := range deltas {
		key := delta.Price.String()
		if delta.Quantity.IsZero() {
			delete(s, key)
			continue
		}
		s[key] = delta
	}
}

// DepthStats aggregates one side at an instant. Each extreme level is selected
// independently: MaxPrice is the level with the highest price, MaxQuantity the
// level with the largest quantity, and so on.
type DepthStats struct {
	TotalQuantity decimal.Decimal
	TotalVolume   decimal.Decimal

	MaxPrice    marketdata.PriceLevel
	MinPrice    marketdata.PriceLevel
	MaxQuantity marketdata.PriceLevel
	MinQuantity marketdata.PriceLevel
	MaxVolume   marketdata.PriceLevel
	MinVolume   marketdata.PriceLevel
}

// Aggregate flattens the stats into the persisted metric set.
func (d DepthStats) Aggregate() marketdata.DepthAggregate {
	return marketdata.DepthAggregate{
		TotalQuantity: d.TotalQuantity,
		TotalVolume:   d.TotalVolume,
		MaxPrice:      d.MaxPrice.Price,
		MinPrice:      d.MinPrice.Price,
		MaxQuantity:   d.MaxQuantity.Quantity,
		MinQuantity:   d.MinQuantity.Quantity,
		MaxVolume:     d.MaxVolume.Price.Mul(d.MaxVolume.Quantity),
		MinVolume:     d.MinVolume.Price.Mul(d.MinVolume.Quantity),
	}
}

// Stats computes depth statistics over every level of the side, or ErrEmptyBook
// when no levels exist. Ties on any extreme are broken toward the level with
// the higher price, so the selection does not depend on map iteration order.
func (s Side) Stats() (DepthStats, error) {
	if len(s) == 0 {
		return DepthStats{}, ErrEmptyBook
	}

	var stats DepthStats
	first := true
	for _, level := range s {
		volume := level.Price.Mul(level.Quantity)

		stats.TotalQuantity = stats.TotalQuantity.Add(level.Quantity)
		stats.TotalVolume = stats.TotalVolume.Add(volume)

		if first {
			stats.MaxPrice, stats.MinPrice = level, level
			stats.MaxQuantity, stats.MinQuantity = level, level
			stats.MaxVolume, stats.MinVolume = level, level
			first = false
			continue
		}

		stats.MaxPrice = pickLevel(stats.MaxPrice, level, level.Price.Cmp(stats.MaxPrice.Price))
		stats.MinPrice = pickLevel(stats.MinPrice, level, stats.MinPrice.Price.Cmp(level.Price))
		stats.MaxQuantity = pickLevel(stats.MaxQuantity, level, level.Quantity.Cmp(stats.MaxQuantity.Quantity))
		stats.MinQuantity = pickLevel(stats.MinQuantity, level, stats.MinQuantity.Quantity.Cmp(level.Quantity))
		stats.MaxVolume = pickLevel(stats.MaxVolume, level, volume.Cmp(stats.MaxVolume.Price.Mul(stats.MaxVolume.Quantity)))
		stats.MinVolume = pickLevel(stats.MinVolume, level, stats.MinVolume.Price.Mul(stats.MinVolume.Quantity).Cmp(volume))
	}
	return stats, nil
}

// pickLevel keeps current unless candidate wins (cmp > 0) or ties on the metric
// (cmp == 0) with a higher price.
func pickLevel(current, candidate marketdata.PriceLevel, cmp int) marketdata.PriceLevel {
	if cmp > 0 {
		return candidate
	}
	if cmp == 0 && candidate.Price.Cmp(current.Price) > 0 {
		return candidate
	}
	return current
}

// Book is the per-symbol order book state.
type Book struct {
	Asks Side
	Bids Side
}

// New returns an empty book.
func New() *Book {
	return &Book{
		Asks: make(Side),
		Bids: make(Side),
	}
}

// ApplyEvent mutates the book with one event's deltas. A snapshot replaces the
// entire tracked depth, so both sides are reset before its levels are applied.
func (b *Book) ApplyEvent(event *marketdata.BookEvent) {
	if event.Action == marketdata.ActionSnapshot {
		b.Asks = make(Side, len(event.AskDeltas))
		b.Bids = make(Side, len(event.BidDeltas))
	}
	b.Asks.Apply(event.AskDeltas)
	b.Bids.Apply(event.BidDeltas)
}
