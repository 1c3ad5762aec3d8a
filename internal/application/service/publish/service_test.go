package publish

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okxdata/internal/domain/entity/marketdata"
)

type fakeFeatureSource struct {
	records []marketdata.RunningRecord
	gotMin  int64
}

func (f *fakeFeatureSource) AddFeatureRecords(context.Context, []marketdata.FeatureRecord) error {
	return nil
}

func (f *fakeFeatureSource) LastFeatureRecord(context.Context, marketdata.SymbolID) (*marketdata.FeatureRecord, error) {
	return nil, nil
}

func (f *fakeFeatureSource) UpsertRunningRecord(context.Context, *marketdata.RunningRecord) error {
	return nil
}

func (f *fakeFeatureSource) LastRunningRecord(context.Context, marketdata.SymbolID) (*marketdata.RunningRecord, error) {
	return nil, nil
}

func (f *fakeFeatureSource) ListRunningRecords(_ context.Context, symbol marketdata.SymbolID, minStartTradeID int64, _ int) ([]marketdata.RunningRecord, error) {
	f.gotMin = minStartTradeID
	var out []marketdata.RunningRecord
	for _, record := range f.records {
		if record.Symbol == symbol && record.StartTradeID >= minStartTradeID {
			out = append(out, record)
		}
	}
	return out, nil
}

type fakeCache struct {
	saved map[string][]byte
}

func (f *fakeCache) Save(_ context.Context, key string, value []byte) error {
	if f.saved == nil {
		f.saved = make(map[string][]byte)
	}
	f.saved[key] = value
	return nil
}

func (f *fakeCache) Load(_ context.Context, key string) ([]byte, error) {
	return f.saved[key], nil
}

type fakeProcessor struct {
	tables map[string][]byte
}

func (f *fakeProcessor) Process(_ context.Context, _ marketdata.SymbolID, _ []marketdata.RunningRecord) (map[string][]byte, error) {
	return f.tables, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRefreshSymbolStoresDataAndFeatures(t *testing.T) {
	source := &fakeFeatureSource{
		records: []marketdata.RunningRecord{{
			Symbol:       marketdata.SymbolBTCUSDT,
			StartTradeID: 100,
			EndTradeID:   200,
			OpenPrice:    decimal.RequireFromString("50"),
			ClosePrice:   decimal.RequireFromString("51"),
		}},
	}
	store := &fakeCache{}
	processor := &fakeProcessor{tables: map[string][]byte{
		"rsi":       []byte("rsi-table"),
		"bollinger": []byte("bollinger-table"),
	}}

	service := NewService(Config{MinStartTradeID: 50}, source, store, processor, testLogger())
	require.NoError(t, service.RefreshSymbol(context.Background(), marketdata.SymbolBTCUSDT))

	assert.Equal(t, int64(50), source.gotMin)

	payload, ok := store.saved["trades:BTC-USDT:data"]
	require.True(t, ok)
	var decoded []marketdata.RunningRecord
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, int64(100), decoded[0].StartTradeID)

	assert.Equal(t, []byte("rsi-table"), store.saved["trades:BTC-USDT:rsi"])
	assert.Equal(t, []byte("bollinger-table"), store.saved["trades:BTC-USDT:bollinger"])
}

func TestRefreshSymbolNoRecordsIsNoop(t *testing.T) {
	store := &fakeCache{}
	service := NewService(Config{}, &fakeFeatureSource{}, store, nil, testLogger())

	require.NoError(t, service.RefreshSymbol(context.Background(), marketdata.SymbolBTCUSDT))
	assert.Empty(t, store.saved)
}
