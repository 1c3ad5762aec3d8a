package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	domain "okxdata/internal/domain/entity/marketdata"
	"okxdata/internal/domain/interfaces"
)

const (
	defaultRestBaseURL  = "https://www.okx.com"
	historyTradesPath   = "/api/v5/market/history-trades"
	tradesPerPoll       = 100
	defaultTradePause   = 500 * time.Millisecond
	paginationByTradeID = "1"
)

// initialTradeIDs seeds the poll cursor for a symbol with no persisted trades.
var initialTradeIDs = map[domain.SymbolID]int64{
	domain.SymbolBTCUSDT: 744536971,
	domain.SymbolETHUSDT: 600257838,
	domain.SymbolSOLUSDT: 0,
}

// TradePollerConfig configures the REST trade poller.
type TradePollerConfig struct {
	BaseURL string
	Symbols []domain.SymbolID
	Pause   time.Duration
}

// TradePoller tails the public trade history endpoint symbol by symbol and
// upserts each page into the trade repository.
type TradePoller struct {
	cfg    TradePollerConfig
	client *resty.Client
	trades interfaces.TradeRepository
	logger *logrus.Entry
}

func NewTradePoller(cfg TradePollerConfig, trades interfaces.TradeRepository, logger *logrus.Logger) *TradePoller {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultRestBaseURL
	}
	if cfg.Pause <= 0 {
		cfg.Pause = defaultTradePause
	}
	return &TradePoller{
		cfg:    cfg,
		client: resty.New().SetBaseURL(cfg.BaseURL),
		trades: trades,
		logger: logger.WithField("component", "trade_poller"),
	}
}

// Run polls forever. A failed pass for one symbol is logged and does not stop
// the loop for the others.
func (p *TradePoller) Run(ctx context.Context) error {
	for {
		for _, symbol := range p.cfg.Symbols {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := p.pollSymbol(ctx, symbol); err != nil {
				p.logger.WithError(err).WithField("symbol", symbol.String()).Error("trade poll failed")
			}
			if err := sleepCtx(ctx, p.cfg.Pause); err != nil {
				return err
			}
		}
		if err := sleepCtx(ctx, p.cfg.Pause); err != nil {
			return err
		}
	}
}

func (p *TradePoller) pollSymbol(ctx context.Context, symbol domain.SymbolID) error {
	lastTradeID, found, err := p.trades.LastTradeID(ctx, symbol)
	if err != nil {
		return fmt.Errorf("load last trade id: %w", err)
	}
	if !found {
		lastTradeID = initialTradeIDs[symbol]
	}

	p.logger.WithFields(logrus.Fields{
		"symbol":        symbol.String(),
		"last_trade_id": lastTradeID,
	}).Debug("polling trades")

	trades, err := p.fetchPage(ctx, symbol, lastTradeID)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		return nil
	}
	if err := p.trades.AddTrades(ctx, trades); err != nil {
		return fmt.Errorf("store trades: %w", err)
	}
	p.logger.WithFields(logrus.Fields{
		"symbol": symbol.String(),
		"count":  len(trades),
	}).Info("stored trades")
	return nil
}

type historyTradesResponse struct {
	Code string      `json:"code"`
	Msg  string      `json:"msg"`
	Data []wireTrade `json:"data"`
}

type wireTrade struct {
	InstID      string      `json:"instId"`
	TradeID     string      `json:"tradeId"`
	Price       string      `json:"px"`
	Quantity    string      `json:"sz"`
	Side        string      `json:"side"`
	TimestampMS json.Number `json:"ts"`
}

// fetchPage requests the window (lastTradeID-1, lastTradeID+tradesPerPoll]
// so the page always re-covers the cursor trade and extends past it.
func (p *TradePoller) fetchPage(ctx context.Context, symbol domain.SymbolID, lastTradeID int64) ([]domain.Trade, error) {
	var body historyTradesResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"instId": symbol.String(),
			"type":   paginationByTradeID,
			"after":  strconv.FormatInt(lastTradeID+tradesPerPoll, 10),
			"before": strconv.FormatInt(lastTradeID-1, 10),
			"limit":  strconv.Itoa(tradesPerPoll),
		}).
		SetResult(&body).
		Get(historyTradesPath)
	if err != nil {
		return nil, fmt.Errorf("request history trades: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("history trades: http %d", resp.StatusCode())
	}
	if body.Code != "0" {
		return nil, fmt.Errorf("history trades: upstream code=%s msg=%q", body.Code, body.Msg)
	}

	trades := make([]domain.Trade, 0, len(body.Data))
	for _, raw := range body.Data {
		trade, err := decodeTrade(symbol, raw)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

func decodeTrade(symbol domain.SymbolID, raw wireTrade) (domain.Trade, error) {
	if raw.InstID != symbol.String() {
		return domain.Trade{}, fmt.Errorf("trade for %q in %s page", raw.InstID, symbol)
	}
	tradeID, err := strconv.ParseInt(raw.TradeID, 10, 64)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("parse trade id %q: %w", raw.TradeID, err)
	}
	timestamp, err := strconv.ParseInt(raw.TimestampMS.String(), 10, 64)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("parse trade ts %q: %w", raw.TimestampMS, err)
	}
	price, err := decimal.NewFromString(raw.Price)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("parse trade price %q: %w", raw.Price, err)
	}
	quantity, err := decimal.NewFromString(raw.Quantity)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("parse trade quantity %q: %w", raw.Quantity, err)
	}

	var isBuy bool
	switch raw.Side {
	case "buy":
		isBuy = true
	case "sell":
		isBuy = false
	default:
		return domain.Trade{}, fmt.Errorf("unknown trade side %q", raw.Side)
	}

	return domain.Trade{
		Symbol:      symbol,
		TradeID:     tradeID,
		Price:       price,
		Quantity:    quantity,
		IsBuy:       isBuy,
		TimestampMS: timestamp,
	}, nil
}
