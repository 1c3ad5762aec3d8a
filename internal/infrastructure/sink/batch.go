// Package sink buffers ingested entities and flushes them to the repositories
// in batches, by size or by timeout, whichever hits first.
package sink

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	domain "okxdata/internal/domain/entity/marketdata"
	"okxdata/internal/domain/interfaces"
)

// BatchConfig controls batching thresholds for ingestion writes.
type BatchConfig struct {
	Size    int
	Timeout time.Duration
}

// BatchWriter buffers order book events and trades and flushes them to the
// backing repositories.
type BatchWriter struct {
	events *batchBuffer[domain.BookEvent]
	trades *batchBuffer[domain.Trade]
}

// NewBatchWriter configures a batch writer over the given repositories.
func NewBatchWriter(cfg BatchConfig, events interfaces.BookEventRepository, trades interfaces.TradeRepository, logger *logrus.Logger) *BatchWriter {
	componentLogger := logger.WithField("component", "batch_writer")
	return &BatchWriter{
		events: newBatchBuffer(cfg, func(ctx context.Context, batch []domain.BookEvent) error {
			return events.AddEvents(ctx, batch)
		}, componentLogger.WithField("entity", "book_event")),
		trades: newBatchBuffer(cfg, func(ctx context.Context, batch []domain.Trade) error {
			return trades.AddTrades(ctx, batch)
		}, componentLogger.WithField("entity", "trade")),
	}
}

// Run sets the base context for asynchronous flush operations.
func (b *BatchWriter) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	b.events.setContext(ctx)
	b.trades.setContext(ctx)
}

// Stop flushes remaining buffers using the provided context.
func (b *BatchWriter) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	b.events.setContext(ctx)
	b.trades.setContext(ctx)

	var errs []error
	if err := b.events.drain(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := b.trades.drain(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// AddEvent appends an order book event to the event buffer.
func (b *BatchWriter) AddEvent(event *domain.BookEvent) error {
	if event == nil {
		return errors.New("book event is nil")
	}
	copyEvent := *event
	return b.events.enqueue(copyEvent)
}

// AddTrade appends a trade to the trade buffer.
func (b *BatchWriter) AddTrade(trade *domain.Trade) error {
	if trade == nil {
		return errors.New("trade is nil")
	}
	copyTrade := *trade
	return b.trades.enqueue(copyTrade)
}

type batchBuffer[T any] struct {
	cfg     BatchConfig
	mu      sync.Mutex
	items   []T
	timer   *time.Timer
	flushFn func(context.Context, []T) error
	logger  *logrus.Entry
	ctx     context.Context
}

func newBatchBuffer[T any](cfg BatchConfig, flushFn func(context.Context, []T) error, logger *logrus.Entry) *batchBuffer[T] {
	return &batchBuffer[T]{
		cfg:     cfg,
		flushFn: flushFn,
		logger:  logger,
	}
}

func (bb *batchBuffer[T]) setContext(ctx context.Context) {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	bb.ctx = ctx
}

func (bb *batchBuffer[T]) enqueue(item T) error {
	bb.mu.Lock()
	ctx := bb.ctx
	if ctx == nil {
		bb.mu.Unlock()
		return errors.New("batch buffer is not running")
	}
	if err := ctx.Err(); err != nil {
		bb.mu.Unlock()
		return err
	}
	bb.items = append(bb.items, item)
	var batch []T
	limit := bb.cfg.Size
	if limit <= 0 {
		limit = 1
	}
	if len(bb.items) >= limit {
		batch = bb.takeBatchLocked()
	} else if bb.timer == nil && bb.cfg.Timeout > 0 {
		bb.startTimerLocked()
	}
	bb.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return bb.flushWithContext(ctx, batch)
}

func (bb *batchBuffer[T]) startTimerLocked() {
	timeout := bb.cfg.Timeout
	if timeout <= 0 {
		return
	}
	bb.timer = time.AfterFunc(timeout, func() {
		batch := bb.takeBatch()
		if len(batch) == 0 {
			return
		}
		if err := bb.flushWithCurrentContext(batch); err != nil && bb.logger != nil {
			bb.logger.WithError(err).Warn("batch flush failed")
		}
	})
}

func (bb *batchBuffer[T]) takeBatch() []T {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	return bb.takeBatchLocked()
}

func (bb *batchBuffer[T]) takeBatchLocked() []T {
	if bb.timer != nil {
		bb.timer.Stop()
		bb.timer = nil
	}
	if len(bb.items) == 0 {
		return nil
	}
	batch := make([]T, len(bb.items))
	copy(batch, bb.items)
	bb.items = bb.items[:0]
	return batch
}

func (bb *batchBuffer[T]) flushWithCurrentContext(batch []T) error {
	bb.mu.Lock()
	ctx := bb.ctx
	bb.mu.Unlock()
	return bb.flushWithContext(ctx, batch)
}

func (bb *batchBuffer[T]) flushWithContext(ctx context.Context, batch []T) error {
	if len(batch) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	if err := bb.flushFn(ctx, batch); err != nil {
		return err
	}
	if bb.logger != nil {
		bb.logger.WithFields(logrus.Fields{
			"size":    len(batch),
			"took_ms": time.Since(start).Milliseconds(),
		}).Debug("flushed batch")
	}
	return nil
}

func (bb *batchBuffer[T]) drain(ctx context.Context) error {
	batch := bb.takeBatch()
	if len(batch) == 0 {
		return nil
	}
	return bb.flushWithContext(ctx, batch)
}
