package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	marketdata "okxdata/internal/domain/entity/marketdata"
)

const (
	defaultEnv               = "development"
	defaultRedisAddr         = "localhost:6379"
	defaultRedisDB           = 0
	defaultWebsocketURL      = "wss://ws.okx.com:8443/ws/v5/public"
	defaultRestURL           = "https://www.okx.com"
	defaultSymbols           = "BTC-USDT,ETH-USDT"
	defaultConnsPerProcess   = 1
	defaultBatchSize         = 100
	defaultBatchTimeout      = time.Second
	defaultAggregationPause  = time.Second
	defaultTradePollPause    = 500 * time.Millisecond
	defaultPublishPause      = 5 * time.Second
	defaultCacheTTLSeconds   = 300
	defaultCacheCompression  = "lz4"
	defaultCacheMaxPartBytes = 400_000_000
	defaultPublishBatchLimit = 10000
)

// Config keeps the runtime configuration shared by every binary.
type Config struct {
	Env         string
	Postgres    PostgresConfig
	Redis       RedisConfig
	OKX         OKXConfig
	Proxy       ProxyConfig
	Telegram    TelegramConfig
	Batch       BatchConfig
	Aggregation AggregationConfig
	Cache       CacheConfig
	Publish     PublishConfig
}

// PostgresConfig stores database connection parameters.
type PostgresConfig struct {
	DSN string
}

// RedisConfig stores Redis connection parameters.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// OKXConfig identifies the upstream endpoints and this process's connection
// slot partition.
type OKXConfig struct {
	WebsocketURL    string
	RestURL         string
	Symbols         []marketdata.SymbolID
	ProcessIdx      int
	ConnsPerProcess int
}

// ProxyConfig stores the upstream SOCKS5 proxy pool.
type ProxyConfig struct {
	Enabled bool
	Files   []string
}

// TelegramConfig stores alerting credentials; alerting is disabled when the
// token is empty.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// BatchConfig stores ingestion write batching thresholds.
type BatchConfig struct {
	Size    int
	Timeout time.Duration
}

// AggregationConfig stores aggregation loop pacing.
type AggregationConfig struct {
	Pause          time.Duration
	TradePollPause time.Duration
}

// CacheConfig stores cache encoding and expiry.
type CacheConfig struct {
	TTL          time.Duration
	MetadataTTL  time.Duration
	Compression  string
	MaxPartBytes int
}

// PublishConfig stores the cache refresh loop settings.
type PublishConfig struct {
	Pause           time.Duration
	MinStartTradeID int64
	BatchLimit      int
}

// Load builds Config from environment variables.
func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		return nil, errors.New("DATABASE_DSN is required")
	}

	redisDB, err := getInt("REDIS_DB", defaultRedisDB)
	if err != nil {
		return nil, err
	}
	symbols, err := getSymbols("SYMBOLS", defaultSymbols)
	if err != nil {
		return nil, err
	}
	processIdx, err := getInt("PROCESS_IDX", 0)
	if err != nil {
		return nil, err
	}
	connsPerProcess, err := getInt("CONNECTIONS_PER_PROCESS", defaultConnsPerProcess)
	if err != nil {
		return nil, err
	}
	proxyEnabled, err := getBool("PROXY_ENABLED", false)
	if err != nil {
		return nil, err
	}
	batchSize, err := getInt("BATCH_SIZE", defaultBatchSize)
	if err != nil {
		return nil, err
	}
	batchTimeout, err := getDuration("BATCH_TIMEOUT", defaultBatchTimeout)
	if err != nil {
		return nil, err
	}
	aggregationPause, err := getDuration("AGGREGATION_PAUSE", defaultAggregationPause)
	if err != nil {
		return nil, err
	}
	tradePollPause, err := getDuration("TRADE_POLL_PAUSE", defaultTradePollPause)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := getDuration("CACHE_TTL", time.Duration(defaultCacheTTLSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	cacheMetadataTTL, err := getDuration("CACHE_METADATA_TTL", cacheTTL)
	if err != nil {
		return nil, err
	}
	cacheMaxPartBytes, err := getInt("CACHE_MAX_PART_BYTES", defaultCacheMaxPartBytes)
	if err != nil {
		return nil, err
	}
	publishPause, err := getDuration("PUBLISH_PAUSE", defaultPublishPause)
	if err != nil {
		return nil, err
	}
	publishMinStartTradeID, err := getInt64("PUBLISH_MIN_START_TRADE_ID", 0)
	if err != nil {
		return nil, err
	}
	publishBatchLimit, err := getInt("PUBLISH_BATCH_LIMIT", defaultPublishBatchLimit)
	if err != nil {
		return nil, err
	}

	return &Config{
		Env: getString("APP_ENV", defaultEnv),
		Postgres: PostgresConfig{
			DSN: dsn,
		},
		Redis: RedisConfig{
			Addr:     getString("REDIS_ADDR", defaultRedisAddr),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		OKX: OKXConfig{
			WebsocketURL:    getString("OKX_WS_URL", defaultWebsocketURL),
			RestURL:         getString("OKX_REST_URL", defaultRestURL),
			Symbols:         symbols,
			ProcessIdx:      processIdx,
			ConnsPerProcess: connsPerProcess,
		},
		Proxy: ProxyConfig{
			Enabled: proxyEnabled,
			Files:   getStrings("PROXY_FILES"),
		},
		Telegram: TelegramConfig{
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			ChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		},
		Batch: BatchConfig{
			Size:    batchSize,
			Timeout: batchTimeout,
		},
		Aggregation: AggregationConfig{
			Pause:          aggregationPause,
			TradePollPause: tradePollPause,
		},
		Cache: CacheConfig{
			TTL:          cacheTTL,
			MetadataTTL:  cacheMetadataTTL,
			Compression:  getString("CACHE_COMPRESSION", defaultCacheCompression),
			MaxPartBytes: cacheMaxPartBytes,
		},
		Publish: PublishConfig{
			Pause:           publishPause,
			MinStartTradeID: publishMinStartTradeID,
			BatchLimit:      publishBatchLimit,
		},
	}, nil
}

func getString(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func getStrings(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	return values
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to int: %w", key, value, err)
	}
	return parsed, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to int64: %w", key, value, err)
	}
	return parsed, nil
}

func getBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("convert %s value %q to bool: %w", key, value, err)
	}
	return parsed, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to duration: %w", key, value, err)
	}
	return parsed, nil
}

func getSymbols(key, fallback string) ([]marketdata.SymbolID, error) {
	raw := getString(key, fallback)
	var symbols []marketdata.SymbolID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		symbol, err := marketdata.ParseSymbolID(part)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", key, err)
		}
		symbols = append(symbols, symbol)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%s has no symbols", key)
	}
	return symbols, nil
}
