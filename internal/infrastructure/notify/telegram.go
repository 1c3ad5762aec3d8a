// Package notify delivers best-effort operational alerts.
package notify

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const telegramBaseURL = "https://api.telegram.org"

// Telegram posts alerts to a chat via the bot API. Delivery failures are
// logged and swallowed; alerting never takes a connection down.
type Telegram struct {
	client *resty.Client
	chatID string
	logger *logrus.Entry
}

func NewTelegram(token, chatID string, logger *logrus.Logger) *Telegram {
	return &Telegram{
		client: resty.New().SetBaseURL(fmt.Sprintf("%s/bot%s", telegramBaseURL, token)),
		chatID: chatID,
		logger: logger.WithField("component", "telegram"),
	}
}

func (t *Telegram) Notify(ctx context.Context, text string) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": t.chatID,
			"text":    text,
		}).
		Post("/sendMessage")
	if err != nil {
		t.logger.WithError(err).Warn("send alert failed")
		return
	}
	if resp.IsError() {
		t.logger.WithField("status", resp.StatusCode()).Warn("send alert rejected")
	}
}

// Nop is the notifier used when alerting is not configured.
type Nop struct{}

func (Nop) Notify(context.Context, string) {}
