package okx

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "okxdata/internal/domain/entity/marketdata"
)

func TestDecodeMessageSnapshot(t *testing.T) {
	raw := []byte(`{
		"arg": {"channel": "books", "instId": "BTC-USDT"},
		"action": "snapshot",
		"data": [{
			"asks": [["100.5", "1.25", "0", "3"], ["101", "2", "0", "1"]],
			"bids": [["99.5", "0.5", "0", "2"]],
			"ts": "1700000000123",
			"seqId": 42,
			"prevSeqId": -1
		}]
	}`)

	event, err := decodeMessage(raw)
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, domain.SymbolBTCUSDT, event.Symbol)
	assert.Equal(t, domain.ActionSnapshot, event.Action)
	assert.Equal(t, int64(1700000000123), event.TimestampMS)
	assert.Equal(t, int64(42), event.SequenceID)
	assert.Equal(t, int64(-1), event.PrevSequenceID)

	require.Len(t, event.AskDeltas, 2)
	assert.True(t, event.AskDeltas[0].Price.Equal(decimal.RequireFromString("100.5")))
	assert.True(t, event.AskDeltas[0].Quantity.Equal(decimal.RequireFromString("1.25")))
	require.Len(t, event.BidDeltas, 1)
}

func TestDecodeMessageUpdate(t *testing.T) {
	raw := []byte(`{
		"arg": {"channel": "books", "instId": "ETH-USDT"},
		"action": "update",
		"data": [{
			"asks": [["2000", "0", "0", "0"]],
			"bids": [],
			"ts": "1700000001000",
			"seqId": 43,
			"prevSeqId": 42
		}]
	}`)

	event, err := decodeMessage(raw)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, domain.ActionUpdate, event.Action)
	assert.True(t, event.AskDeltas[0].Quantity.IsZero())
	assert.Empty(t, event.BidDeltas)
}

func TestDecodeMessageControlEnvelope(t *testing.T) {
	raw := []byte(`{"event": "subscribe", "arg": {"channel": "books", "instId": "BTC-USDT"}}`)

	event, err := decodeMessage(raw)
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestDecodeMessageErrorEnvelope(t *testing.T) {
	raw := []byte(`{"event": "error", "code": "60012", "msg": "Illegal request"}`)

	_, err := decodeMessage(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "60012")
}

func TestDecodeMessageUnknownSymbol(t *testing.T) {
	raw := []byte(`{
		"arg": {"channel": "books", "instId": "DOGE-USDT"},
		"action": "update",
		"data": [{"asks": [], "bids": [], "ts": "1", "seqId": 1, "prevSeqId": 0}]
	}`)

	_, err := decodeMessage(raw)
	assert.Error(t, err)
}
