// Package cache stores feature tables in Redis as compressed, size-chunked
// binary values. Large payloads are split across {key}:part_{i} keys with a
// sibling {key}:metadata JSON describing how to reassemble them.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const schemaVersion = 1

// ErrCacheMiss is returned by Load when the key has no metadata entry.
var ErrCacheMiss = errors.New("cache miss")

// StoreConfig controls encoding and expiry of cached values.
type StoreConfig struct {
	Compression  Compression
	MaxPartBytes int
	TTL          time.Duration
	MetadataTTL  time.Duration
}

func (c *StoreConfig) applyDefaults() {
	if c.Compression == "" {
		c.Compression = CompressionLZ4
	}
	if c.MaxPartBytes <= 0 {
		c.MaxPartBytes = 400_000_000
	}
	if c.MetadataTTL <= 0 {
		c.MetadataTTL = c.TTL
	}
}

type metadata struct {
	Compression   Compression `json:"compression"`
	PartsCount    int         `json:"parts_count"`
	TotalSize     int         `json:"total_size"`
	SchemaVersion int         `json:"schema_version"`
}

// Store is the go-redis backed cache.
type Store struct {
	client *redis.Client
	cfg    StoreConfig
	logger *logrus.Entry
}

func NewStore(client *redis.Client, cfg StoreConfig, logger *logrus.Logger) *Store {
	cfg.applyDefaults()
	return &Store{
		client: client,
		cfg:    cfg,
		logger: logger.WithField("component", "cache"),
	}
}

// Save compresses and writes one value. A single-part payload lives at the
// bare key; larger payloads are split across part keys. Metadata is written
// last so a reader never sees metadata pointing at missing parts.
func (s *Store) Save(ctx context.Context, key string, value []byte) error {
	compressed, err := compress(s.cfg.Compression, value)
	if err != nil {
		return err
	}
	parts := splitParts(compressed, s.cfg.MaxPartBytes)

	if len(parts) == 1 {
		if err := s.client.Set(ctx, key, parts[0], s.cfg.TTL).Err(); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	} else {
		for i, part := range parts {
			partKey := fmt.Sprintf("%s:part_%d", key, i)
			if err := s.client.Set(ctx, partKey, part, s.cfg.TTL).Err(); err != nil {
				return fmt.Errorf("set %s: %w", partKey, err)
			}
		}
	}

	meta := metadata{
		Compression:   s.cfg.Compression,
		PartsCount:    len(parts),
		TotalSize:     len(compressed),
		SchemaVersion: schemaVersion,
	}
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata for %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key+":metadata", metaRaw, s.cfg.MetadataTTL).Err(); err != nil {
		return fmt.Errorf("set %s:metadata: %w", key, err)
	}

	s.logger.WithFields(logrus.Fields{
		"key":   key,
		"parts": len(parts),
		"size":  len(compressed),
	}).Debug("saved cache value")
	return nil
}

// Load reassembles and decompresses one value, or ErrCacheMiss when the
// metadata key is absent or the parts have expired out from under it.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	metaRaw, err := s.client.Get(ctx, key+":metadata").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get %s:metadata: %w", key, err)
	}
	var meta metadata
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata for %s: %w", key, err)
	}

	var compressed []byte
	if meta.PartsCount <= 1 {
		compressed, err = s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
	} else {
		compressed = make([]byte, 0, meta.TotalSize)
		for i := 0; i < meta.PartsCount; i++ {
			partKey := fmt.Sprintf("%s:part_%d", key, i)
			part, err := s.client.Get(ctx, partKey).Bytes()
			if errors.Is(err, redis.Nil) {
				return nil, ErrCacheMiss
			}
			if err != nil {
				return nil, fmt.Errorf("get %s: %w", partKey, err)
			}
			compressed = append(compressed, part...)
		}
	}

	return decompress(meta.Compression, compressed)
}

// splitParts cuts data into chunks of at most maxPartBytes. Empty data still
// yields one empty part so the key layout stays uniform.
func splitParts(data []byte, maxPartBytes int) [][]byte {
	if len(data) <= maxPartBytes {
		return [][]byte{data}
	}
	parts := make([][]byte, 0, (len(data)+maxPartBytes-1)/maxPartBytes)
	for start := 0; start < len(data); start += maxPartBytes {
		end := start + maxPartBytes
		if end > len(data) {
			end = len(data)
		}
		parts = append(parts, data[start:end])
	}
	return parts
}
