package marketdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	domain "okxdata/internal/domain/entity/marketdata"
)

const featureColumns = `
	symbol, run_idx, record_idx,
	start_timestamp_ms, end_timestamp_ms,
	open_price, high_price, low_price, close_price,
	start_trade_id, end_trade_id,
	total_quantity, buy_quantity, total_volume, buy_volume,
	total_trades_count, buy_trades_count,
	start_ask_total_quantity, start_ask_total_volume,
	start_ask_max_price, start_ask_min_price,
	start_ask_max_quantity, start_ask_min_quantity,
	start_ask_max_volume, start_ask_min_volume,
	start_bid_total_quantity, start_bid_total_volume,
	start_bid_max_price, start_bid_min_price,
	start_bid_max_quantity, start_bid_min_quantity,
	start_bid_max_volume, start_bid_min_volume,
	end_ask_total_quantity, end_ask_total_volume,
	end_ask_max_price, end_ask_min_price,
	end_ask_max_quantity, end_ask_min_quantity,
	end_ask_max_volume, end_ask_min_volume,
	end_bid_total_quantity, end_bid_total_volume,
	end_bid_max_price, end_bid_min_price,
	end_bid_max_quantity, end_bid_min_quantity,
	end_bid_max_volume, end_bid_min_volume`

var insertFeatureQuery = fmt.Sprintf(`
	INSERT INTO feature_records (%s)
	VALUES (%s)`, featureColumns, placeholders(49))

func placeholders(n int) string {
	out := ""
	for i := 1; i <= n; i++ {
		if i > 1 {
			out += ","
		}
		out += fmt.Sprintf("$%d", i)
	}
	return out
}

// AddFeatureRecords commits every record of one aggregation cycle atomically.
// The resume cursor only ever advances past records that reached this commit.
func (r *Repository) AddFeatureRecords(ctx context.Context, records []domain.FeatureRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin feature transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range records {
		record := &records[i]
		args := []interface{}{
			record.Symbol, record.RunIdx, record.RecordIdx,
			record.StartTimestampMS, record.EndTimestampMS,
			decimalOrNil(record.OpenPrice), decimalOrNil(record.HighPrice),
			decimalOrNil(record.LowPrice), decimalOrNil(record.ClosePrice),
			record.StartTradeID, record.EndTradeID,
			record.TotalQuantity.String(), record.BuyQuantity.String(),
			record.TotalVolume.String(), record.BuyVolume.String(),
			record.TotalTradesCount, record.BuyTradesCount,
		}
		args = appendDepthArgs(args, record.StartAsks)
		args = appendDepthArgs(args, record.StartBids)
		args = appendDepthArgs(args, record.EndAsks)
		args = appendDepthArgs(args, record.EndBids)

		if _, err := tx.Exec(ctx, insertFeatureQuery, args...); err != nil {
			return fmt.Errorf("insert feature record (%s, %d, %d): %w",
				record.Symbol, record.RunIdx, record.RecordIdx, err)
		}
	}
	return tx.Commit(ctx)
}

func (r *Repository) LastFeatureRecord(ctx context.Context, symbol domain.SymbolID) (*domain.FeatureRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM feature_records
		WHERE symbol=$1
		ORDER BY run_idx DESC, record_idx DESC
		LIMIT 1`, featureColumnsSelect)
	row := r.pool.QueryRow(ctx, query, symbol)
	record, err := scanFeatureRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// featureColumnsSelect casts numerics to text so scans go through decimal
// string parsing.
const featureColumnsSelect = `
	symbol, run_idx, record_idx,
	start_timestamp_ms, end_timestamp_ms,
	open_price::text, high_price::text, low_price::text, close_price::text,
	start_trade_id, end_trade_id,
	total_quantity::text, buy_quantity::text, total_volume::text, buy_volume::text,
	total_trades_count, buy_trades_count,
	start_ask_total_quantity::text, start_ask_total_volume::text,
	start_ask_max_price::text, start_ask_min_price::text,
	start_ask_max_quantity::text, start_ask_min_quantity::text,
	start_ask_max_volume::text, start_ask_min_volume::text,
	start_bid_total_quantity::text, start_bid_total_volume::text,
	start_bid_max_price::text, start_bid_min_price::text,
	start_bid_max_quantity::text, start_bid_min_quantity::text,
	start_bid_max_volume::text, start_bid_min_volume::text,
	end_ask_total_quantity::text, end_ask_total_volume::text,
	end_ask_max_price::text, end_ask_min_price::text,
	end_ask_max_quantity::text, end_ask_min_quantity::text,
	end_ask_max_volume::text, end_ask_min_volume::text,
	end_bid_total_quantity::text, end_bid_total_volume::text,
	end_bid_max_price::text, end_bid_min_price::text,
	end_bid_max_quantity::text, end_bid_min_quantity::text,
	end_bid_max_volume::text, end_bid_min_volume::text`

func scanFeatureRecord(row pgx.Row) (*domain.FeatureRecord, error) {
	var (
		record                             domain.FeatureRecord
		openRaw, highRaw, lowRaw, closeRaw *string
		totalQty, buyQty, totalVol, buyVol string
		depthRaw                           [32]string
	)
	args := []interface{}{
		&record.Symbol, &record.RunIdx, &record.RecordIdx,
		&record.StartTimestampMS, &record.EndTimestampMS,
		&openRaw, &highRaw, &lowRaw, &closeRaw,
		&record.StartTradeID, &record.EndTradeID,
		&totalQty, &buyQty, &totalVol, &buyVol,
		&record.TotalTradesCount, &record.BuyTradesCount,
	}
	for i := range depthRaw {
		args = append(args, &depthRaw[i])
	}
	if err := row.Scan(args...); err != nil {
		return nil, err
	}

	var err error
	if record.OpenPrice, err = parseOptionalDecimal(openRaw); err != nil {
		return nil, err
	}
	if record.HighPrice, err = parseOptionalDecimal(highRaw); err != nil {
		return nil, err
	}
	if record.LowPrice, err = parseOptionalDecimal(lowRaw); err != nil {
		return nil, err
	}
	if record.ClosePrice, err = parseOptionalDecimal(closeRaw); err != nil {
		return nil, err
	}
	if record.TotalQuantity, err = decimal.NewFromString(totalQty); err != nil {
		return nil, err
	}
	if record.BuyQuantity, err = decimal.NewFromString(buyQty); err != nil {
		return nil, err
	}
	if record.TotalVolume, err = decimal.NewFromString(totalVol); err != nil {
		return nil, err
	}
	if record.BuyVolume, err = decimal.NewFromString(buyVol); err != nil {
		return nil, err
	}

	depth := [4]*domain.DepthAggregate{
		&record.StartAsks, &record.StartBids, &record.EndAsks, &record.EndBids,
	}
	for i, aggregate := range depth {
		if err := parseDepthAggregate(aggregate, depthRaw[i*8:(i+1)*8]); err != nil {
			return nil, err
		}
	}
	return &record, nil
}

func parseDepthAggregate(aggregate *domain.DepthAggregate, raw []string) error {
	fields := [8]*decimal.Decimal{
		&aggregate.TotalQuantity, &aggregate.TotalVolume,
		&aggregate.MaxPrice, &aggregate.MinPrice,
		&aggregate.MaxQuantity, &aggregate.MinQuantity,
		&aggregate.MaxVolume, &aggregate.MinVolume,
	}
	for i, field := range fields {
		value, err := decimal.NewFromString(raw[i])
		if err != nil {
			return err
		}
		*field = value
	}
	return nil
}

func appendDepthArgs(args []interface{}, aggregate domain.DepthAggregate) []interface{} {
	return append(args,
		aggregate.TotalQuantity.String(), aggregate.TotalVolume.String(),
		aggregate.MaxPrice.String(), aggregate.MinPrice.String(),
		aggregate.MaxQuantity.String(), aggregate.MinQuantity.String(),
		aggregate.MaxVolume.String(), aggregate.MinVolume.String(),
	)
}

func decimalOrNil(value *decimal.Decimal) interface{} {
	if value == nil {
		return nil
	}
	return value.String()
}

func parseOptionalDecimal(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	value, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// Running records

const upsertRunningQuery = `
	INSERT INTO running_records (
		symbol, start_trade_id, end_trade_id,
		start_timestamp_ms, end_timestamp_ms,
		open_price, high_price, low_price, close_price,
		total_quantity, buy_quantity, total_volume, buy_volume,
		total_trades_count, buy_trades_count
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	ON CONFLICT (symbol, start_trade_id) DO UPDATE
	SET end_trade_id = EXCLUDED.end_trade_id,
	    start_timestamp_ms = EXCLUDED.start_timestamp_ms,
	    end_timestamp_ms = EXCLUDED.end_timestamp_ms,
	    open_price = EXCLUDED.open_price,
	    high_price = EXCLUDED.high_price,
	    low_price = EXCLUDED.low_price,
	    close_price = EXCLUDED.close_price,
	    total_quantity = EXCLUDED.total_quantity,
	    buy_quantity = EXCLUDED.buy_quantity,
	    total_volume = EXCLUDED.total_volume,
	    buy_volume = EXCLUDED.buy_volume,
	    total_trades_count = EXCLUDED.total_trades_count,
	    buy_trades_count = EXCLUDED.buy_trades_count`

func (r *Repository) UpsertRunningRecord(ctx context.Context, record *domain.RunningRecord) error {
	if record == nil {
		return errors.New("nil running record")
	}
	_, err := r.pool.Exec(ctx, upsertRunningQuery,
		record.Symbol, record.StartTradeID, record.EndTradeID,
		record.StartTimestampMS, record.EndTimestampMS,
		record.OpenPrice.String(), record.HighPrice.String(),
		record.LowPrice.String(), record.ClosePrice.String(),
		record.TotalQuantity.String(), record.BuyQuantity.String(),
		record.TotalVolume.String(), record.BuyVolume.String(),
		record.TotalTradesCount, record.BuyTradesCount,
	)
	return err
}

const runningColumnsSelect = `
	symbol, start_trade_id, end_trade_id,
	start_timestamp_ms, end_timestamp_ms,
	open_price::text, high_price::text, low_price::text, close_price::text,
	total_quantity::text, buy_quantity::text, total_volume::text, buy_volume::text,
	total_trades_count, buy_trades_count`

func (r *Repository) LastRunningRecord(ctx context.Context, symbol domain.SymbolID) (*domain.RunningRecord, error) {
	query := `
		SELECT ` + runningColumnsSelect + `
		FROM running_records
		WHERE symbol=$1
		ORDER BY start_trade_id DESC
		LIMIT 1`
	row := r.pool.QueryRow(ctx, query, symbol)
	record, err := scanRunningRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *Repository) ListRunningRecords(ctx context.Context, symbol domain.SymbolID, minStartTradeID int64, limit int) ([]domain.RunningRecord, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	query := `
		SELECT ` + runningColumnsSelect + `
		FROM running_records
		WHERE symbol=$1 AND start_trade_id >= $2
		ORDER BY start_trade_id ASC
		LIMIT $3`
	rows, err := r.pool.Query(ctx, query, symbol, minStartTradeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.RunningRecord
	for rows.Next() {
		record, err := scanRunningRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func scanRunningRecord(row pgx.Row) (*domain.RunningRecord, error) {
	var (
		record  domain.RunningRecord
		rawDecs [8]string
	)
	err := row.Scan(
		&record.Symbol, &record.StartTradeID, &record.EndTradeID,
		&record.StartTimestampMS, &record.EndTimestampMS,
		&rawDecs[0], &rawDecs[1], &rawDecs[2], &rawDecs[3],
		&rawDecs[4], &rawDecs[5], &rawDecs[6], &rawDecs[7],
		&record.TotalTradesCount, &record.BuyTradesCount,
	)
	if err != nil {
		return nil, err
	}
	fields := [8]*decimal.Decimal{
		&record.OpenPrice, &record.HighPrice, &record.LowPrice, &record.ClosePrice,
		&record.TotalQuantity, &record.BuyQuantity, &record.TotalVolume, &record.BuyVolume,
	}
	for i, field := range fields {
		value, err := decimal.NewFromString(rawDecs[i])
		if err != nil {
			return nil, err
		}
		*field = value
	}
	return &record, nil
}
