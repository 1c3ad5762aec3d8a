package book

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	marketdata "okxdata/internal/domain/entity/marketdata"
)

func level(price, quantity string) marketdata.PriceLevel {
	return marketdata.PriceLevel{
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(quantity),
	}
}

func TestSideApplySetAndRemove(t *testing.T) {
	side := make(Side)

	side.Apply([]marketdata.PriceLevel{level("100", "1"), level("101", "2")})
	require.Len(t, side, 2)
	assert.True(t, side["100"].Quantity.Equal(decimal.NewFromInt(1)))

	// Absolute quantities: re-applying replaces, not increments.
	side.Apply([]marketdata.PriceLevel{level("100", "3")})
	assert.True(t, side["100"].Quantity.Equal(decimal.NewFromInt(3)))

	// Zero quantity removes the level; removing an absent level is a no-op.
	side.Apply([]marketdata.PriceLevel{level("100", "0"), level("999", "0")})
	_, ok := side["100"]
	assert.False(t, ok)
	require.Len(t, side, 1)
}

func TestSideApplyIdempotent(t *testing.T) {
	once := make(Side)
	twice := make(Side)
	deltas := []marketdata.PriceLevel{level("100.5", "0.25"), level("101", "1")}

	once.Apply(deltas)
	twice.Apply(deltas)
	twice.Apply(deltas)

	assert.Equal(t, once, twice)
}

func TestSideStats(t *testing.T) {
	side := make(Side)
	side.Apply([]marketdata.PriceLevel{
		level("100", "1"),
		level("101", "2"),
		level("99", "0.5"),
	})

	stats, err := side.Stats()
	require.NoError(t, err)

	assert.True(t, stats.TotalQuantity.Equal(decimal.RequireFromString("3.5")), "total quantity %s", stats.TotalQuantity)
	assert.True(t, stats.TotalVolume.Equal(decimal.RequireFromString("351.5")), "total volume %s", stats.TotalVolume)

	assert.Equal(t, level("101", "2"), stats.MaxPrice)
	assert.Equal(t, level("99", "0.5"), stats.MinPrice)
	assert.Equal(t, level("101", "2"), stats.MaxQuantity)
	assert.Equal(t, level("99", "0.5"), stats.MinQuantity)
	assert.Equal(t, level("101", "2"), stats.MaxVolume)
	assert.Equal(t, level("99", "0.5"), stats.MinVolume)
}

func TestSideStatsTieBreakHigherPrice(t *testing.T) {
	side := make(Side)
	side.Apply([]marketdata.PriceLevel{
		level("100", "2"),
		level("102", "2"),
		level("101", "2"),
	})

	stats, err := side.Stats()
	require.NoError(t, err)

	// All quantities equal: the higher price must win the quantity extremes.
	assert.Equal(t, level("102", "2"), stats.MaxQuantity)
	assert.Equal(t, level("102", "2"), stats.MinQuantity)
}

func TestSideStatsEmpty(t *testing.T) {
	side := make(Side)
	_, err := side.Stats()
	assert.ErrorIs(t, err, ErrEmptyBook)
}

func TestBookApplyEventSnapshotResets(t *testing.T) {
	b := New()
	b.ApplyEvent(&marketdata.BookEvent{
		Symbol:    marketdata.SymbolBTCUSDT,
		Action:    marketdata.ActionSnapshot,
		AskDeltas: []marketdata.PriceLevel{level("100", "1")},
		BidDeltas: []marketdata.PriceLevel{level("99", "1")},
	})
	b.ApplyEvent(&marketdata.BookEvent{
		Symbol:    marketdata.SymbolBTCUSDT,
		Action:    marketdata.ActionUpdate,
		AskDeltas: []marketdata.PriceLevel{level("100", "0"), level("102", "1")},
	})

	require.Len(t, b.Asks, 1)
	assert.Equal(t, level("102", "1"), b.Asks["102"])
	require.Len(t, b.Bids, 1)

	// A fresh snapshot replaces the entire tracked depth.
	b.ApplyEvent(&marketdata.BookEvent{
		Symbol:    marketdata.SymbolBTCUSDT,
		Action:    marketdata.ActionSnapshot,
		AskDeltas: []marketdata.PriceLevel{level("200", "1")},
		BidDeltas: []marketdata.PriceLevel{level("199", "1")},
	})
	require.Len(t, b.Asks, 1)
	assert.Equal(t, level("200", "1"), b.Asks["200"])
}
