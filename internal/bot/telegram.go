package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"visa-notifier/internal/metrics"
)

// Delivery is the outcome of one notification attempt. Callers may ignore it.
type Delivery struct {
	Sent bool
	Err  error
}

// Notifier sends one HTML-formatted message to the configured chat.
type Notifier interface {
	Send(ctx context.Context, text string) Delivery
}

// UpdateSource returns the chat messages buffered by the messaging channel.
type UpdateSource interface {
	RecentUpdates(ctx context.Context) ([]tgbotapi.Update, error)
}

// TelegramChannel talks to the Bot API for a single chat.
type TelegramChannel struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

// NewTelegramChannel builds the Bot API client without the getMe call that
// tgbotapi.NewBotAPI makes.
func NewTelegramChannel(token, apiEndpoint string, chatID int64, timeout time.Duration, log zerolog.Logger) (*TelegramChannel, error) {
	if token == "" || chatID == 0 {
		return nil, errors.New("telegram bot token or chat id is not configured")
	}
	if apiEndpoint == "" {
		apiEndpoint = tgbotapi.APIEndpoint
	}

	api := &tgbotapi.BotAPI{
		Token:  token,
		Client: &http.Client{Timeout: timeout},
		Buffer: 100,
	}
	api.SetAPIEndpoint(apiEndpoint)

	return &TelegramChannel{
		api:    api,
		chatID: chatID,
		log:    log,
	}, nil
}

func (c *TelegramChannel) ChatID() int64 { return c.chatID }

// contextClient attaches ctx to the requests tgbotapi builds without one.
type contextClient struct {
	ctx    context.Context
	client tgbotapi.HTTPClient
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

// withContext returns a copy of the Bot API client whose calls end with ctx.
func (c *TelegramChannel) withContext(ctx context.Context) *tgbotapi.BotAPI {
	api := *c.api
	api.Client = contextClient{ctx: ctx, client: c.api.Client}
	return &api
}

func (c *TelegramChannel) Send(ctx context.Context, text string) Delivery {
	if err := ctx.Err(); err != nil {
		return Delivery{Err: err}
	}

	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = false

	if _, err := c.withContext(ctx).Send(msg); err != nil {
		return Delivery{Err: fmt.Errorf("telegram sendMessage: %w", err)}
	}
	return Delivery{Sent: true}
}

// RecentUpdates reads up to 100 buffered updates without long polling.
func (c *TelegramChannel) RecentUpdates(ctx context.Context) ([]tgbotapi.Update, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u := tgbotapi.NewUpdate(0)
	u.Limit = 100
	u.Timeout = 0

	updates, err := c.withContext(ctx).GetUpdates(u)
	if err != nil {
		return nil, fmt.Errorf("telegram getUpdates: %w", err)
	}
	c.log.Debug().Int("updates", len(updates)).Msg("Fetched Telegram updates")
	return updates, nil
}

// LogNotifier writes messages to the log instead of sending them (dry-run).
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) Send(_ context.Context, text string) Delivery {
	n.Log.Info().Str("text", text).Msg("Dry run: message not sent")
	return Delivery{Sent: true}
}

// notify sends text and logs a failed delivery; it never returns the error.
func notify(ctx context.Context, n Notifier, rec *metrics.Recorder, log zerolog.Logger, kind, text string) Delivery {
	d := n.Send(ctx, text)
	rec.IncNotification(kind, d.Sent)
	if d.Err != nil {
		log.Error().Err(d.Err).Str("kind", kind).Msg("Failed to send Telegram notification")
	} else {
		log.Info().Str("kind", kind).Msg("Telegram notification sent")
	}
	return d
}
