package cache

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "okxdata/internal/domain/entity/marketdata"
)

func TestCompressRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("order book depth "), 1024)

	for _, codec := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(string(codec), func(t *testing.T) {
			compressed, err := compress(codec, payload)
			require.NoError(t, err)

			restored, err := decompress(codec, compressed)
			require.NoError(t, err)
			assert.Equal(t, payload, restored)
		})
	}
}

func TestCompressShrinksRepetitiveData(t *testing.T) {
	payload := bytes.Repeat([]byte("100.5,1.25;"), 4096)

	for _, codec := range []Compression{CompressionLZ4, CompressionZstd} {
		compressed, err := compress(codec, payload)
		require.NoError(t, err)
		assert.Less(t, len(compressed), len(payload), "%s did not shrink payload", codec)
	}
}

func TestParseCompression(t *testing.T) {
	codec, err := ParseCompression("zstd")
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, codec)

	_, err = ParseCompression("gzip")
	assert.Error(t, err)
}

func TestSplitParts(t *testing.T) {
	data := []byte("0123456789")

	parts := splitParts(data, 4)
	require.Len(t, parts, 3)
	assert.Equal(t, []byte("0123"), parts[0])
	assert.Equal(t, []byte("4567"), parts[1])
	assert.Equal(t, []byte("89"), parts[2])

	// Fits in one part: stored whole.
	parts = splitParts(data, 100)
	require.Len(t, parts, 1)
	assert.Equal(t, data, parts[0])
}

func TestFeatureKeys(t *testing.T) {
	assert.Equal(t, "trades:BTC-USDT:data", DataKey(domain.SymbolBTCUSDT))
	assert.Equal(t, "trades:ETH-USDT:candles:1m", CandlesKey(domain.SymbolETHUSDT, "1m"))
	assert.Equal(t, "trades:SOL-USDT:smoothed:2", SmoothedKey(domain.SymbolSOLUSDT, "2"))
	assert.Equal(t, "trades:BTC-USDT:rsi", FeatureKey(domain.SymbolBTCUSDT, "rsi"))
}
