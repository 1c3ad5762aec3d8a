package sink

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "okxdata/internal/domain/entity/marketdata"
)

type captureEventRepo struct {
	batches [][]domain.BookEvent
}

func (c *captureEventRepo) AddEvents(_ context.Context, events []domain.BookEvent) error {
	batch := make([]domain.BookEvent, len(events))
	copy(batch, events)
	c.batches = append(c.batches, batch)
	return nil
}

func (c *captureEventRepo) ListSnapshots(context.Context, domain.SymbolID, int64, int) ([]domain.BookEvent, error) {
	return nil, nil
}

func (c *captureEventRepo) ListUpdatesBetween(context.Context, domain.SymbolID, int64, int64) ([]domain.BookEvent, error) {
	return nil, nil
}

type captureTradeRepo struct {
	batches [][]domain.Trade
}

func (c *captureTradeRepo) AddTrades(_ context.Context, trades []domain.Trade) error {
	batch := make([]domain.Trade, len(trades))
	copy(batch, trades)
	c.batches = append(c.batches, batch)
	return nil
}

func (c *captureTradeRepo) ListTradesBetween(context.Context, domain.SymbolID, int64, int64) ([]domain.Trade, error) {
	return nil, nil
}

func (c *captureTradeRepo) ListTradesAfter(context.Context, domain.SymbolID, int64, int) ([]domain.Trade, error) {
	return nil, nil
}

func (c *captureTradeRepo) LastTradeID(context.Context, domain.SymbolID) (int64, bool, error) {
	return 0, false, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestBatchWriterFlushesBySize(t *testing.T) {
	events := &captureEventRepo{}
	trades := &captureTradeRepo{}
	writer := NewBatchWriter(BatchConfig{Size: 2, Timeout: time.Hour}, events, trades, testLogger())
	writer.Run(context.Background())

	event := domain.BookEvent{Symbol: domain.SymbolBTCUSDT, TimestampMS: 1, Action: domain.ActionSnapshot}
	require.NoError(t, writer.AddEvent(&event))
	assert.Empty(t, events.batches)

	require.NoError(t, writer.AddEvent(&event))
	require.Len(t, events.batches, 1)
	assert.Len(t, events.batches[0], 2)
}

func TestBatchWriterStopDrains(t *testing.T) {
	events := &captureEventRepo{}
	trades := &captureTradeRepo{}
	writer := NewBatchWriter(BatchConfig{Size: 100, Timeout: time.Hour}, events, trades, testLogger())
	writer.Run(context.Background())

	trade := domain.Trade{
		Symbol:   domain.SymbolBTCUSDT,
		TradeID:  1,
		Price:    decimal.RequireFromString("100"),
		Quantity: decimal.RequireFromString("1"),
	}
	require.NoError(t, writer.AddTrade(&trade))
	assert.Empty(t, trades.batches)

	require.NoError(t, writer.Stop(context.Background()))
	require.Len(t, trades.batches, 1)
}

func TestBatchWriterRejectsNil(t *testing.T) {
	writer := NewBatchWriter(BatchConfig{Size: 1}, &captureEventRepo{}, &captureTradeRepo{}, testLogger())
	writer.Run(context.Background())

	assert.Error(t, writer.AddEvent(nil))
	assert.Error(t, writer.AddTrade(nil))
}
