package cache

import (
	"fmt"

	domain "okxdata/internal/domain/entity/marketdata"
)

const keyPrefix = "trades"

// Feature key helpers. Layout: trades:{symbol}:{feature}[:{sub-key}].

func DataKey(symbol domain.SymbolID) string {
	return featureKey(symbol, "data")
}

func BollingerKey(symbol domain.SymbolID) string {
	return featureKey(symbol, "bollinger")
}

func CandlesKey(symbol domain.SymbolID, interval string) string {
	return featureKey(symbol, "candles") + ":" + interval
}

func RSIKey(symbol domain.SymbolID) string {
	return featureKey(symbol, "rsi")
}

func SmoothedKey(symbol domain.SymbolID, level string) string {
	return featureKey(symbol, "smoothed") + ":" + level
}

func ExtremeLinesKey(symbol domain.SymbolID) string {
	return featureKey(symbol, "extreme_lines")
}

func OrderBookVolumesKey(symbol domain.SymbolID) string {
	return featureKey(symbol, "order_book_volumes")
}

func VelocityKey(symbol domain.SymbolID) string {
	return featureKey(symbol, "velocity")
}

// FeatureKey builds the key for an arbitrary named feature table.
func FeatureKey(symbol domain.SymbolID, feature string) string {
	return featureKey(symbol, feature)
}

func featureKey(symbol domain.SymbolID, feature string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, symbol, feature)
}
