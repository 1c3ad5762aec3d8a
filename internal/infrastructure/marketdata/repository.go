package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	domain "okxdata/internal/domain/entity/marketdata"
)

// Repository is the pgx-backed store for raw order book events, raw trades and
// aggregated feature records.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// Book events

func (r *Repository) AddEvents(ctx context.Context, events []domain.BookEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(events))
	for i := range events {
		asks, err := marshalLevels(events[i].AskDeltas)
		if err != nil {
			return err
		}
		bids, err := marshalLevels(events[i].BidDeltas)
		if err != nil {
			return err
		}
		rows = append(rows, []interface{}{
			events[i].Symbol,
			events[i].TimestampMS,
			events[i].Action,
			events[i].SequenceID,
			events[i].PrevSequenceID,
			asks,
			bids,
		})
	}
	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"book_events"},
		[]string{"symbol", "timestamp_ms", "action", "sequence_id", "prev_sequence_id", "asks", "bids"},
		pgx.CopyFromRows(rows),
	)
	return err
}

const selectEventColumns = `symbol, timestamp_ms, action, sequence_id, prev_sequence_id, asks, bids`

func (r *Repository) ListSnapshots(ctx context.Context, symbol domain.SymbolID, minTimestampMS int64, limit int) ([]domain.BookEvent, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	query := `
		SELECT ` + selectEventColumns + `
		FROM book_events
		WHERE symbol=$1 AND timestamp_ms >= $2 AND action=$3
		ORDER BY timestamp_ms ASC
		LIMIT $4`
	rows, err := r.pool.Query(ctx, query, symbol, minTimestampMS, domain.ActionSnapshot, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (r *Repository) ListUpdatesBetween(ctx context.Context, symbol domain.SymbolID, startTS, endTS int64) ([]domain.BookEvent, error) {
	query := `
		SELECT ` + selectEventColumns + `
		FROM book_events
		WHERE symbol=$1 AND timestamp_ms >= $2 AND timestamp_ms < $3 AND action=$4
		ORDER BY timestamp_ms ASC`
	rows, err := r.pool.Query(ctx, query, symbol, startTS, endTS, domain.ActionUpdate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]domain.BookEvent, error) {
	var events []domain.BookEvent
	for rows.Next() {
		var (
			event    domain.BookEvent
			asksJSON []byte
			bidsJSON []byte
		)
		err := rows.Scan(
			&event.Symbol,
			&event.TimestampMS,
			&event.Action,
			&event.SequenceID,
			&event.PrevSequenceID,
			&asksJSON,
			&bidsJSON,
		)
		if err != nil {
			return nil, err
		}
		if event.AskDeltas, err = unmarshalLevels(asksJSON); err != nil {
			return nil, err
		}
		if event.BidDeltas, err = unmarshalLevels(bidsJSON); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Trades

const upsertTradeQuery = `
	INSERT INTO trades (symbol, trade_id, is_buy, price, quantity, timestamp_ms)
	VALUES ($1,$2,$3,$4,$5,$6)
	ON CONFLICT (symbol, trade_id) DO UPDATE
	SET is_buy = EXCLUDED.is_buy,
	    price = EXCLUDED.price,
	    quantity = EXCLUDED.quantity,
	    timestamp_ms = EXCLUDED.timestamp_ms`

func (r *Repository) AddTrades(ctx context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i := range trades {
		batch.Queue(upsertTradeQuery,
			trades[i].Symbol,
			trades[i].TradeID,
			trades[i].IsBuy,
			trades[i].Price.String(),
			trades[i].Quantity.String(),
			trades[i].TimestampMS,
		)
	}
	results := r.pool.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}

const selectTradeColumns = `symbol, trade_id, is_buy, price::text, quantity::text, timestamp_ms`

func (r *Repository) ListTradesBetween(ctx context.Context, symbol domain.SymbolID, startTS, endTS int64) ([]domain.Trade, error) {
	query := `
		SELECT ` + selectTradeColumns + `
		FROM trades
		WHERE symbol=$1 AND timestamp_ms >= $2 AND timestamp_ms < $3
		ORDER BY trade_id ASC`
	rows, err := r.pool.Query(ctx, query, symbol, startTS, endTS)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

func (r *Repository) ListTradesAfter(ctx context.Context, symbol domain.SymbolID, afterTradeID int64, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	query := `
		SELECT ` + selectTradeColumns + `
		FROM trades
		WHERE symbol=$1 AND trade_id > $2
		ORDER BY trade_id ASC
		LIMIT $3`
	rows, err := r.pool.Query(ctx, query, symbol, afterTradeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

func (r *Repository) LastTradeID(ctx context.Context, symbol domain.SymbolID) (int64, bool, error) {
	const query = `
		SELECT trade_id
		FROM trades
		WHERE symbol=$1
		ORDER BY trade_id DESC
		LIMIT 1`
	var tradeID int64
	err := r.pool.QueryRow(ctx, query, symbol).Scan(&tradeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return tradeID, true, nil
}

func collectTrades(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var (
			trade    domain.Trade
			price    string
			quantity string
		)
		err := rows.Scan(
			&trade.Symbol,
			&trade.TradeID,
			&trade.IsBuy,
			&price,
			&quantity,
			&trade.TimestampMS,
		)
		if err != nil {
			return nil, err
		}
		if trade.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		if trade.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

// Helpers

// marshalLevels encodes deltas as [["price","quantity"], ...] with the exact
// upstream decimal strings.
func marshalLevels(levels []domain.PriceLevel) ([]byte, error) {
	pairs := make([][2]string, 0, len(levels))
	for _, level := range levels {
		pairs = append(pairs, [2]string{level.Price.String(), level.Quantity.String()})
	}
	return json.Marshal(pairs)
}

func unmarshalLevels(data []byte) ([]domain.PriceLevel, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var pairs [][2]string
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, err
	}
	levels := make([]domain.PriceLevel, 0, len(pairs))
	for _, pair := range pairs {
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			return nil, err
		}
		quantity, err := decimal.NewFromString(pair[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, domain.PriceLevel{Price: price, Quantity: quantity})
	}
	return levels, nil
}
