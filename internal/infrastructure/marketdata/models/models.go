// Package models declares the persisted schema. The repositories talk to
// Postgres through pgx; gorm is used only to create and migrate the tables at
// startup.
package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// BookEvent is one raw order book event as received from the stream.
type BookEvent struct {
	ID             int64  `gorm:"primaryKey;autoIncrement;column:id"`
	Symbol         int32  `gorm:"column:symbol;not null;index:idx_book_events_symbol_ts,priority:1"`
	TimestampMS    int64  `gorm:"column:timestamp_ms;not null;index:idx_book_events_symbol_ts,priority:2"`
	Action         int32  `gorm:"column:action;not null"`
	SequenceID     int64  `gorm:"column:sequence_id;not null"`
	PrevSequenceID int64  `gorm:"column:prev_sequence_id;not null"`
	Asks           []byte `gorm:"column:asks;type:jsonb;not null"`
	Bids           []byte `gorm:"column:bids;type:jsonb;not null"`
}

func (BookEvent) TableName() string { return "book_events" }

// Trade is one raw exchange trade.
type Trade struct {
	Symbol      int32           `gorm:"primaryKey;column:symbol"`
	TradeID     int64           `gorm:"primaryKey;column:trade_id"`
	IsBuy       bool            `gorm:"column:is_buy;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(38,18);not null"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:numeric(38,18);not null"`
	TimestampMS int64           `gorm:"column:timestamp_ms;not null;index"`
}

func (Trade) TableName() string { return "trades" }

// depthColumns is embedded four times per feature record, once per side and
// window edge.
type depthColumns struct {
	TotalQuantity decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	TotalVolume   decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	MaxPrice      decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	MinPrice      decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	MaxQuantity   decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	MinQuantity   decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	MaxVolume     decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	MinVolume     decimal.Decimal `gorm:"type:numeric(38,18);not null"`
}

// FeatureRecord is one closed aggregation window.
type FeatureRecord struct {
	Symbol    int32 `gorm:"primaryKey;column:symbol"`
	RunIdx    int64 `gorm:"primaryKey;column:run_idx"`
	RecordIdx int64 `gorm:"primaryKey;column:record_idx"`

	StartTimestampMS int64 `gorm:"column:start_timestamp_ms;not null"`
	EndTimestampMS   int64 `gorm:"column:end_timestamp_ms;not null"`

	OpenPrice  *decimal.Decimal `gorm:"column:open_price;type:numeric(38,18)"`
	HighPrice  *decimal.Decimal `gorm:"column:high_price;type:numeric(38,18)"`
	LowPrice   *decimal.Decimal `gorm:"column:low_price;type:numeric(38,18)"`
	ClosePrice *decimal.Decimal `gorm:"column:close_price;type:numeric(38,18)"`

	StartTradeID *int64 `gorm:"column:start_trade_id"`
	EndTradeID   *int64 `gorm:"column:end_trade_id"`

	TotalQuantity    decimal.Decimal `gorm:"column:total_quantity;type:numeric(38,18);not null"`
	BuyQuantity      decimal.Decimal `gorm:"column:buy_quantity;type:numeric(38,18);not null"`
	TotalVolume      decimal.Decimal `gorm:"column:total_volume;type:numeric(38,18);not null"`
	BuyVolume        decimal.Decimal `gorm:"column:buy_volume;type:numeric(38,18);not null"`
	TotalTradesCount int64           `gorm:"column:total_trades_count;not null"`
	BuyTradesCount   int64           `gorm:"column:buy_trades_count;not null"`

	StartAsk depthColumns `gorm:"embedded;embeddedPrefix:start_ask_"`
	StartBid depthColumns `gorm:"embedded;embeddedPrefix:start_bid_"`
	EndAsk   depthColumns `gorm:"embedded;embeddedPrefix:end_ask_"`
	EndBid   depthColumns `gorm:"embedded;embeddedPrefix:end_bid_"`
}

func (FeatureRecord) TableName() string { return "feature_records" }

// RunningRecord is the open, continuously extended window per symbol.
type RunningRecord struct {
	Symbol       int32 `gorm:"primaryKey;column:symbol"`
	StartTradeID int64 `gorm:"primaryKey;column:start_trade_id"`
	EndTradeID   int64 `gorm:"column:end_trade_id;not null"`

	StartTimestampMS int64 `gorm:"column:start_timestamp_ms;not null"`
	EndTimestampMS   int64 `gorm:"column:end_timestamp_ms;not null"`

	OpenPrice  decimal.Decimal `gorm:"column:open_price;type:numeric(38,18);not null"`
	HighPrice  decimal.Decimal `gorm:"column:high_price;type:numeric(38,18);not null"`
	LowPrice   decimal.Decimal `gorm:"column:low_price;type:numeric(38,18);not null"`
	ClosePrice decimal.Decimal `gorm:"column:close_price;type:numeric(38,18);not null"`

	TotalQuantity    decimal.Decimal `gorm:"column:total_quantity;type:numeric(38,18);not null"`
	BuyQuantity      decimal.Decimal `gorm:"column:buy_quantity;type:numeric(38,18);not null"`
	TotalVolume      decimal.Decimal `gorm:"column:total_volume;type:numeric(38,18);not null"`
	BuyVolume        decimal.Decimal `gorm:"column:buy_volume;type:numeric(38,18);not null"`
	TotalTradesCount int64           `gorm:"column:total_trades_count;not null"`
	BuyTradesCount   int64           `gorm:"column:buy_trades_count;not null"`
}

func (RunningRecord) TableName() string { return "running_records" }

// Migrate creates or updates every table the pipeline writes.
func Migrate(dsn string) error {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open database for migration: %w", err)
	}
	if err := db.AutoMigrate(&BookEvent{}, &Trade{}, &FeatureRecord{}, &RunningRecord{}); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.Close()
}
