package cache

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression names the codec applied to cached payloads before chunking.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionLZ4  Compression = "lz4"
	CompressionZstd Compression = "zstd"
)

// ParseCompression validates a configured codec name.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case CompressionNone, CompressionLZ4, CompressionZstd:
		return Compression(name), nil
	}
	return "", fmt.Errorf("unknown compression codec: %q", name)
}

func compress(codec Compression, data []byte) ([]byte, error) {
	switch codec {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		var buf bytes.Buffer
		writer := lz4.NewWriter(&buf)
		if _, err := writer.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("lz4 close: %w", err)
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		encoder, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		defer encoder.Close()
		return encoder.EncodeAll(data, nil), nil
	}
	return nil, fmt.Errorf("unknown compression codec: %q", codec)
}

func decompress(codec Compression, data []byte) ([]byte, error) {
	switch codec {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		reader := lz4.NewReader(bytes.NewReader(data))
		out, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return out, nil
	case CompressionZstd:
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer decoder.Close()
		out, err := decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown compression codec: %q", codec)
}
