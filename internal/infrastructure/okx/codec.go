package okx

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	domain "okxdata/internal/domain/entity/marketdata"
)

const booksChannel = "books"

// subscribeRequest is the upstream subscribe control message.
type subscribeRequest struct {
	Op   string            `json:"op"`
	Args []subscriptionArg `json:"args"`
}

type subscriptionArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

func newSubscribeRequest(symbol domain.SymbolID) subscribeRequest {
	return subscribeRequest{
		Op: "subscribe",
		Args: []subscriptionArg{
			{Channel: booksChannel, InstID: symbol.String()},
		},
	}
}

// wireMessage covers both the event envelope ("subscribe" acks, errors) and
// data pushes; exactly one of Event and Data is populated.
type wireMessage struct {
	Event string          `json:"event"`
	Code  string          `json:"code"`
	Msg   string          `json:"msg"`
	Arg   subscriptionArg `json:"arg"`

	Action string         `json:"action"`
	Data   []wireBookData `json:"data"`
}

// wireBookData is one push payload. Levels come as arrays of strings where the
// first two entries are price and quantity; trailing entries are ignored.
type wireBookData struct {
	Asks        [][]string  `json:"asks"`
	Bids        [][]string  `json:"bids"`
	TimestampMS json.Number `json:"ts"`
	SequenceID  int64       `json:"seqId"`
	PrevSeqID   int64       `json:"prevSeqId"`
}

// decodeMessage parses one raw frame. Control envelopes yield a nil event with
// no error (an "error" envelope is the exception and is surfaced). Data frames
// yield exactly one book event.
func decodeMessage(raw []byte) (*domain.BookEvent, error) {
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if msg.Event != "" {
		if msg.Event == "error" {
			return nil, fmt.Errorf("upstream error event: code=%s msg=%q", msg.Code, msg.Msg)
		}
		return nil, nil
	}
	if len(msg.Data) != 1 {
		return nil, fmt.Errorf("data frame with %d payloads, want 1", len(msg.Data))
	}

	symbol, err := domain.ParseSymbolID(msg.Arg.InstID)
	if err != nil {
		return nil, err
	}
	action, err := domain.ParseActionID(msg.Action)
	if err != nil {
		return nil, err
	}
	data := msg.Data[0]
	timestamp, err := strconv.ParseInt(data.TimestampMS.String(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse ts %q: %w", data.TimestampMS, err)
	}
	asks, err := decodeLevels(data.Asks)
	if err != nil {
		return nil, fmt.Errorf("decode asks: %w", err)
	}
	bids, err := decodeLevels(data.Bids)
	if err != nil {
		return nil, fmt.Errorf("decode bids: %w", err)
	}

	return &domain.BookEvent{
		Symbol:         symbol,
		TimestampMS:    timestamp,
		Action:         action,
		SequenceID:     data.SequenceID,
		PrevSequenceID: data.PrevSeqID,
		AskDeltas:      asks,
		BidDeltas:      bids,
	}, nil
}

func decodeLevels(raw [][]string) ([]domain.PriceLevel, error) {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			return nil, fmt.Errorf("level with %d fields, want at least 2", len(entry))
		}
		price, err := decimal.NewFromString(entry[0])
		if err != nil {
			return nil, fmt.Errorf("parse level price %q: %w", entry[0], err)
		}
		quantity, err := decimal.NewFromString(entry[1])
		if err != nil {
			return nil, fmt.Errorf("parse level quantity %q: %w", entry[1], err)
		}
		levels = append(levels, domain.PriceLevel{Price: price, Quantity: quantity})
	}
	return levels, nil
}
