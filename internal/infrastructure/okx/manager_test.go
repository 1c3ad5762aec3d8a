package okx

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okxdata/internal/book"
	domain "okxdata/internal/domain/entity/marketdata"
)

type subscribeCall struct {
	request subscribeRequest
	at      time.Time
}

type fakeConn struct {
	frames [][]byte
	next   int
	final  error

	writes []subscribeCall
	closed bool
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	if c.next >= len(c.frames) {
		if c.final != nil {
			return 0, nil, c.final
		}
		return 0, nil, io.EOF
	}
	frame := c.frames[c.next]
	c.next++
	return 1, frame, nil
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	request, ok := v.(subscribeRequest)
	if !ok {
		return errors.New("unexpected write payload")
	}
	c.writes = append(c.writes, subscribeCall{request: request, at: time.Now()})
	return nil
}

func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestManager(cfg Config, handler EventHandler) *ConnManager {
	return NewConnManager(cfg, nil, nil, nil, handler, testLogger())
}

func TestSubscribeAllOrderAndStagger(t *testing.T) {
	const delay = 20 * time.Millisecond
	symbols := []domain.SymbolID{
		domain.SymbolBTCUSDT,
		domain.SymbolETHUSDT,
		domain.SymbolSOLUSDT,
	}
	m := newTestManager(Config{Symbols: symbols, ResubscribeDelay: delay}, nil)
	conn := &fakeConn{}

	require.NoError(t, m.subscribeAll(context.Background(), conn))
	require.Len(t, conn.writes, 3)

	for i, call := range conn.writes {
		require.Len(t, call.request.Args, 1)
		assert.Equal(t, symbols[i].String(), call.request.Args[0].InstID)
		assert.Equal(t, booksChannel, call.request.Args[0].Channel)
		if i > 0 {
			spacing := call.at.Sub(conn.writes[i-1].at)
			assert.GreaterOrEqual(t, spacing, delay, "subscribe %d sent too early", i)
		}
	}
	assert.Equal(t, int64(3), m.stats.Subscribes)
}

func TestSubscribeDuplicateIsNoop(t *testing.T) {
	m := newTestManager(Config{Symbols: []domain.SymbolID{domain.SymbolBTCUSDT}}, nil)
	conn := &fakeConn{}

	require.NoError(t, m.subscribe(conn, domain.SymbolBTCUSDT))
	require.NoError(t, m.subscribe(conn, domain.SymbolBTCUSDT))

	assert.Len(t, conn.writes, 1)
	assert.Equal(t, int64(1), m.stats.Subscribes)
}

func TestResetStateAllowsResubscribe(t *testing.T) {
	m := newTestManager(Config{Symbols: []domain.SymbolID{domain.SymbolBTCUSDT}}, nil)
	conn := &fakeConn{}

	require.NoError(t, m.subscribe(conn, domain.SymbolBTCUSDT))
	m.resetState()
	require.NoError(t, m.subscribe(conn, domain.SymbolBTCUSDT))

	assert.Len(t, conn.writes, 2)
}

func TestStreamAppliesValidatedEvents(t *testing.T) {
	var seen []domain.BookEvent
	m := newTestManager(Config{Symbols: []domain.SymbolID{domain.SymbolBTCUSDT}},
		func(event *domain.BookEvent) error {
			seen = append(seen, *event)
			return nil
		})

	conn := &fakeConn{
		frames: [][]byte{
			[]byte(`{"event": "subscribe", "arg": {"channel": "books", "instId": "BTC-USDT"}}`),
			[]byte(`{
				"arg": {"channel": "books", "instId": "BTC-USDT"},
				"action": "snapshot",
				"data": [{"asks": [["100", "1"]], "bids": [["99", "1"]], "ts": "1", "seqId": 10, "prevSeqId": -1}]
			}`),
			[]byte(`{
				"arg": {"channel": "books", "instId": "BTC-USDT"},
				"action": "update",
				"data": [{"asks": [["100", "0"], ["102", "1"]], "bids": [], "ts": "2", "seqId": 11, "prevSeqId": 10}]
			}`),
		},
	}

	err := m.stream(context.Background(), conn)
	assert.ErrorIs(t, err, io.EOF)

	require.Len(t, seen, 2)
	assert.Equal(t, domain.ActionSnapshot, seen[0].Action)
	assert.Equal(t, domain.ActionUpdate, seen[1].Action)

	state := m.books[domain.SymbolBTCUSDT]
	require.NotNil(t, state)
	assert.Len(t, state.Asks, 1)
	_, has102 := state.Asks["102"]
	assert.True(t, has102)
	assert.Equal(t, int64(3), m.stats.Messages)
	assert.Equal(t, int64(2), m.stats.Events)
}

func TestStreamSequenceGapStopsStream(t *testing.T) {
	m := newTestManager(Config{Symbols: []domain.SymbolID{domain.SymbolBTCUSDT}}, nil)

	conn := &fakeConn{
		frames: [][]byte{
			[]byte(`{
				"arg": {"channel": "books", "instId": "BTC-USDT"},
				"action": "snapshot",
				"data": [{"asks": [["100", "1"]], "bids": [["99", "1"]], "ts": "1", "seqId": 10, "prevSeqId": -1}]
			}`),
			[]byte(`{
				"arg": {"channel": "books", "instId": "BTC-USDT"},
				"action": "update",
				"data": [{"asks": [], "bids": [], "ts": "2", "seqId": 13, "prevSeqId": 12}]
			}`),
		},
	}

	err := m.stream(context.Background(), conn)
	var gap *book.SequenceGapError
	require.True(t, errors.As(err, &gap))
	assert.Equal(t, int64(12), gap.PrevSequenceID)
	assert.Equal(t, int64(10), gap.LastSequenceID)
}

func TestStreamCountsPongFrames(t *testing.T) {
	m := newTestManager(Config{}, nil)
	conn := &fakeConn{frames: [][]byte{[]byte("pong")}}

	err := m.stream(context.Background(), conn)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, int64(1), m.stats.Pongs)
}
