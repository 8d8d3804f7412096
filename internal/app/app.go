// Package app wires configuration, logging and the bot components into the
// one-shot runs started by the scheduler.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"visa-notifier/internal/bot"
	"visa-notifier/internal/config"
	"visa-notifier/internal/i18n"
	"visa-notifier/internal/logging"
	"visa-notifier/internal/metrics"
	"visa-notifier/internal/vfs"
)

const (
	ModeCheck      = "check"
	ModeRespond    = "respond"
	ModeNotifyTest = "notify-test"
)

// ErrCheckFailed is returned by CheckSlots when the only configured country failed.
var ErrCheckFailed = errors.New("visa slot check failed")

type Options struct {
	Mode   string
	DryRun bool // log messages instead of sending them
	Now    func() time.Time
}

type App struct {
	cfg       *config.AppConfig
	mode      string
	log       zerolog.Logger
	tr        *i18n.Translator
	formatter bot.Formatter
	channel   *bot.TelegramChannel
	notifier  bot.Notifier
	metrics   *metrics.Recorder
	now       func() time.Time
}

func New(cfg *config.AppConfig, log zerolog.Logger, opts Options) (*App, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log = log.With().Str("run_id", uuid.NewString()).Str("mode", opts.Mode).Logger()

	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("%w: BOT_LANGUAGE: %w", config.ErrInvalidConfig, err)
	}

	channel, err := bot.NewTelegramChannel(cfg.TelegramBotToken, cfg.TelegramAPIEndpoint, cfg.TelegramChatID, cfg.NotifyTimeout, log)
	if err != nil {
		return nil, err
	}

	var notifier bot.Notifier = channel
	if opts.DryRun {
		notifier = bot.LogNotifier{Log: log}
	}

	log.Info().
		Str("bot_token", logging.Redact(cfg.TelegramBotToken)).
		Str("vfs_username", logging.Redact(cfg.VFSUsername)).
		Str("origin", cfg.OriginCountry).
		Strs("targets", cfg.TargetCountries).
		Strs("command_targets", cfg.CommandCountries).
		Str("language", tr.Lang()).
		Bool("dry_run", opts.DryRun).
		Msg("Configuration loaded")

	return &App{
		cfg:       cfg,
		mode:      opts.Mode,
		log:       log,
		tr:        tr,
		formatter: bot.NewFormatter(tr),
		channel:   channel,
		notifier:  notifier,
		metrics:   metrics.New(),
		now:       opts.Now,
	}, nil
}

func (a *App) Metrics() *metrics.Recorder { return a.metrics }

func (a *App) newChecker(target string) (bot.SlotChecker, error) {
	return vfs.NewChecker(vfs.Options{
		BaseURL:     a.cfg.VFSAPIURL,
		PortalURL:   a.cfg.VFSPortalURL,
		Origin:      a.cfg.OriginCountry,
		Target:      target,
		Category:    a.cfg.VisaCategory,
		Subcategory: a.cfg.VisaSubcategory,
		Credentials: vfs.Credentials{
			Username: a.cfg.VFSUsername,
			Password: a.cfg.VFSPassword,
		},
		Timeout:       a.cfg.RequestTimeout,
		DetailTimeout: a.cfg.DetailTimeout,
		Logger:        a.log,
	})
}

func (a *App) sweep(countries []string) *bot.Sweep {
	return &bot.Sweep{
		Origin:     a.cfg.OriginCountry,
		Countries:  countries,
		NewChecker: a.newChecker,
		Pause:      a.cfg.CountryPause,
		Translator: a.tr,
		Metrics:    a.metrics,
		Log:        a.log,
	}
}

// CheckSlots runs one sweep over every target country and sends the resulting
// notifications. Only a failed single-country run is reported as an error.
func (a *App) CheckSlots(ctx context.Context) (bot.Results, error) {
	a.log.Info().Int("countries", len(a.cfg.TargetCountries)).Msg("Starting visa slot check")

	results := a.sweep(a.cfg.TargetCountries).Run(ctx)

	reporter := &bot.Reporter{
		Notifier:   a.notifier,
		Formatter:  a.formatter,
		OriginName: a.tr.Country(a.cfg.OriginCountry),
		ReportHour: a.cfg.DailyReportHour,
		Now:        a.now,
		Metrics:    a.metrics,
		Log:        a.log,
	}
	summary := reporter.Report(ctx, results)

	a.log.Info().
		Int("slot_alerts", summary.SlotAlerts).
		Int("failed", len(results.Failed())).
		Bool("digest", summary.Digest).
		Msg("Visa slot check finished")

	if a.cfg.SingleCountry() && len(results.Failed()) > 0 {
		return results, fmt.Errorf("%w: %w", ErrCheckFailed, results.Err())
	}
	return results, nil
}

// RespondToCommands answers the chat commands sent since the previous run.
func (a *App) RespondToCommands(ctx context.Context) (int, error) {
	responder := &bot.Responder{
		Updates:   a.channel,
		Notifier:  a.notifier,
		Formatter: a.formatter,
		Sweep:     a.sweep(a.cfg.CommandCountries),
		ChatID:    a.cfg.TelegramChatID,
		Window:    a.cfg.UpdateWindow,
		Pause:     a.cfg.CommandPause,
		Now:       a.now,
		Metrics:   a.metrics,
		Log:       a.log,
	}
	handled, err := responder.Run(ctx)
	if err != nil {
		return 0, err
	}
	a.log.Info().Int("commands", handled).Msg("Command responder finished")
	return handled, nil
}

// SendTestNotification checks that the bot can reach the configured chat.
func (a *App) SendTestNotification(ctx context.Context) error {
	d := a.notifier.Send(ctx, a.formatter.TestMessage(a.cfg.OriginCountry, a.cfg.TargetCountries))
	a.metrics.IncNotification("test", d.Sent)
	if d.Err != nil {
		return d.Err
	}
	a.log.Info().Msg("Telegram test notification sent")
	return nil
}

// Close pushes the run metrics when a Pushgateway is configured.
func (a *App) Close(ctx context.Context) {
	if a.cfg.PushgatewayURL == "" {
		return
	}
	if err := a.metrics.Push(ctx, a.cfg.PushgatewayURL, a.mode); err != nil {
		a.log.Warn().Err(err).Msg("Failed to push metrics")
		return
	}
	a.log.Debug().Str("gateway", a.cfg.PushgatewayURL).Msg("Metrics pushed")
}
