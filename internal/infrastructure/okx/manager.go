// Package okx holds the live market data ingestion path: one connection
// manager per websocket connection, each owning a partition of symbols, plus
// the REST trade poller.
package okx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"

	"okxdata/internal/book"
	domain "okxdata/internal/domain/entity/marketdata"
	"okxdata/internal/domain/interfaces"
)

const (
	defaultReadTimeout      = 15 * time.Second
	defaultProxyBackoff     = 5 * time.Second
	defaultConnectBackoff   = 15 * time.Second
	defaultResubscribeDelay = 500 * time.Millisecond
	defaultPingInterval     = 5 * time.Second
	handshakeTimeout        = 10 * time.Second
)

// Conn is the subset of a websocket connection the manager drives.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v interface{}) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// Dialer opens a transport connection, optionally through a SOCKS5 proxy.
type Dialer interface {
	Dial(ctx context.Context, url, proxyAddr string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct{}

func (WebsocketDialer) Dial(ctx context.Context, url, proxyAddr string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	if proxyAddr != "" {
		socks, err := proxy.SOCKS5("tcp", proxyAddr, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("build socks5 dialer for %s: %w", proxyAddr, err)
		}
		contextDialer, ok := socks.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks5 dialer for %s has no context dial", proxyAddr)
		}
		dialer.NetDialContext = contextDialer.DialContext
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// EventHandler consumes each validated book event. A handler error tears the
// connection down like any other stream failure.
type EventHandler func(event *domain.BookEvent) error

// Config identifies one connection slot and its symbol partition.
type Config struct {
	URL        string
	ProcessIdx int
	ConnIdx    int
	Symbols    []domain.SymbolID

	ReadTimeout      time.Duration
	ProxyBackoff     time.Duration
	ConnectBackoff   time.Duration
	ResubscribeDelay time.Duration
	PingInterval     time.Duration
}

func (c *Config) applyDefaults() {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.ProxyBackoff <= 0 {
		c.ProxyBackoff = defaultProxyBackoff
	}
	if c.ConnectBackoff <= 0 {
		c.ConnectBackoff = defaultConnectBackoff
	}
	if c.ResubscribeDelay <= 0 {
		c.ResubscribeDelay = defaultResubscribeDelay
	}
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
}

// ConnManager runs the connect/subscribe/stream/reconnect cycle for one
// websocket connection. All state is connection-local; a reconnect rebuilds
// every book from the next snapshot.
type ConnManager struct {
	cfg      Config
	dialer   Dialer
	proxies  interfaces.ProxyResolver
	notifier interfaces.Notifier
	handler  EventHandler
	logger   *logrus.Entry

	books      map[domain.SymbolID]*book.Book
	lastSeq    map[domain.SymbolID]int64
	haveSeq    map[domain.SymbolID]bool
	subscribed map[domain.SymbolID]bool
	stats      connStats
}

func NewConnManager(cfg Config, dialer Dialer, proxies interfaces.ProxyResolver, notifier interfaces.Notifier, handler EventHandler, logger *logrus.Logger) *ConnManager {
	cfg.applyDefaults()
	return &ConnManager{
		cfg:      cfg,
		dialer:   dialer,
		proxies:  proxies,
		notifier: notifier,
		handler:  handler,
		logger: logger.WithFields(logrus.Fields{
			"component":   "conn_manager",
			"process_idx": cfg.ProcessIdx,
			"conn_idx":    cfg.ConnIdx,
		}),
		books:      make(map[domain.SymbolID]*book.Book),
		lastSeq:    make(map[domain.SymbolID]int64),
		haveSeq:    make(map[domain.SymbolID]bool),
		subscribed: make(map[domain.SymbolID]bool),
	}
}

// proxyError marks a connect failure attributable to the proxy hop; it gets
// the short backoff and an alert.
type proxyError struct {
	addr string
	err  error
}

func (e *proxyError) Error() string {
	return fmt.Sprintf("connect via proxy %s: %v", e.addr, e.err)
}

func (e *proxyError) Unwrap() error { return e.err }

// Run loops the connection lifecycle until the context is cancelled. No stream
// failure escapes this loop; everything is logged, optionally alerted, and
// retried.
func (m *ConnManager) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := m.connect(ctx)
		if err != nil {
			backoff := m.cfg.ConnectBackoff
			var pErr *proxyError
			if errors.As(err, &pErr) {
				backoff = m.cfg.ProxyBackoff
				m.alert(ctx, fmt.Sprintf("connection %d/%d proxy failure: %v",
					m.cfg.ProcessIdx, m.cfg.ConnIdx, err))
			}
			m.logger.WithError(err).Warn("connect failed")
			if err := sleepCtx(ctx, backoff); err != nil {
				return err
			}
			continue
		}

		err = m.stream(ctx, conn)
		if closeErr := conn.Close(); closeErr != nil {
			m.logger.WithError(closeErr).Debug("close connection")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch classifyDisconnect(err) {
		case disconnectTimeout:
			m.logger.WithError(err).Warn("receive timeout, reconnecting")
		case disconnectClean:
			m.logger.Info("remote closed cleanly, reconnecting")
		default:
			m.logger.WithError(err).Error("stream failed, reconnecting")
			m.alert(ctx, fmt.Sprintf("connection %d/%d dropped: %v (%s)",
				m.cfg.ProcessIdx, m.cfg.ConnIdx, err, m.stats.String()))
		}
	}
}

// connect dials, resets all connection-local state and subscribes the symbol
// partition, staggering every subscribe after the first.
func (m *ConnManager) connect(ctx context.Context) (Conn, error) {
	proxyAddr := ""
	if m.proxies != nil {
		if addr, ok := m.proxies.Resolve(m.cfg.ProcessIdx, m.cfg.ConnIdx); ok {
			proxyAddr = addr
		}
	}

	conn, err := m.dialer.Dial(ctx, m.cfg.URL, proxyAddr)
	if err != nil {
		if proxyAddr != "" {
			return nil, &proxyError{addr: proxyAddr, err: err}
		}
		return nil, err
	}
	m.logger.WithField("proxy", proxyAddr).Info("connected")

	m.resetState()
	if err := m.subscribeAll(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return conn, nil
}

func (m *ConnManager) resetState() {
	for symbol := range m.books {
		delete(m.books, symbol)
	}
	for symbol := range m.lastSeq {
		delete(m.lastSeq, symbol)
	}
	for symbol := range m.haveSeq {
		delete(m.haveSeq, symbol)
	}
	for symbol := range m.subscribed {
		delete(m.subscribed, symbol)
	}
	m.stats.reset()
}

func (m *ConnManager) subscribeAll(ctx context.Context, conn Conn) error {
	for i, symbol := range m.cfg.Symbols {
		if i > 0 {
			if err := sleepCtx(ctx, m.cfg.ResubscribeDelay); err != nil {
				return err
			}
		}
		if err := m.subscribe(conn, symbol); err != nil {
			return err
		}
	}
	return nil
}

// subscribe sends the subscribe control message once per connection; repeat
// calls for an already-subscribed symbol are no-ops.
func (m *ConnManager) subscribe(conn Conn, symbol domain.SymbolID) error {
	if m.subscribed[symbol] {
		return nil
	}
	if err := conn.WriteJSON(newSubscribeRequest(symbol)); err != nil {
		return fmt.Errorf("subscribe %s: %w", symbol, err)
	}
	m.subscribed[symbol] = true
	m.stats.Subscribes++
	m.logger.WithField("symbol", symbol.String()).Info("subscribed")
	return nil
}

// pingMessage is the application-level keepalive. The server answers with a
// bare "pong" text frame.
type pingMessage struct {
	Ping string `json:"ping"`
	Time string `json:"time"`
}

func newPingMessage() pingMessage {
	return pingMessage{
		Ping: strings.ReplaceAll(uuid.NewString(), "-", ""),
		Time: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// pingLoop writes keepalives until the context ends. A write failure closes
// the connection so the blocked reader fails over into reconnect.
func (m *ConnManager) pingLoop(ctx context.Context, conn Conn) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := conn.WriteJSON(newPingMessage()); err != nil {
			m.logger.WithError(err).Warn("ping failed")
			_ = conn.Close()
			return
		}
		atomic.AddInt64(&m.stats.Pings, 1)
	}
}

func (m *ConnManager) stream(ctx context.Context, conn Conn) error {
	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go m.pingLoop(pingCtx, conn)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		m.stats.Messages++

		if string(raw) == "pong" {
			m.stats.Pongs++
			continue
		}

		event, err := decodeMessage(raw)
		if err != nil {
			return err
		}
		if event == nil {
			continue
		}
		if err := m.applyEvent(event); err != nil {
			return err
		}
	}
}

func (m *ConnManager) applyEvent(event *domain.BookEvent) error {
	next, err := book.ValidateSequence(event, m.lastSeq[event.Symbol], m.haveSeq[event.Symbol])
	if err != nil {
		return err
	}
	m.lastSeq[event.Symbol] = next
	m.haveSeq[event.Symbol] = true

	state, ok := m.books[event.Symbol]
	if !ok {
		state = book.New()
		m.books[event.Symbol] = state
	}
	state.ApplyEvent(event)
	m.stats.Events++

	if m.handler != nil {
		return m.handler(event)
	}
	return nil
}

func (m *ConnManager) alert(ctx context.Context, text string) {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(ctx, text)
}

type disconnectKind int

const (
	disconnectTimeout disconnectKind = iota
	disconnectClean
	disconnectError
)

func classifyDisconnect(err error) disconnectKind {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return disconnectTimeout
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return disconnectClean
	}
	return disconnectError
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
