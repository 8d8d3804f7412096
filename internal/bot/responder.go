package bot

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"visa-notifier/internal/metrics"
)

const commandPrefix = "/"

// countryAliases maps chat commands to target country codes.
var countryAliases = map[string]string{
	"/france":   "fra",
	"/phap":     "fra",
	"/italy":    "ita",
	"/italia":   "ita",
	"/spain":    "esp",
	"/tbn":      "esp",
	"/portugal": "prt",
	"/bdn":      "prt",
}

type commandHandler func(ctx context.Context, command string)

// ParseCommand extracts the lower-cased command token of a message, without
// any "@botname" suffix. ok is false when the text is not a command.
func ParseCommand(text string) (command string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	token, _, _ := strings.Cut(fields[0], "@")
	token = strings.ToLower(token)
	if !strings.HasPrefix(token, commandPrefix) {
		return "", false
	}
	return token, true
}

// Responder answers chat commands received since the previous run.
type Responder struct {
	Updates   UpdateSource
	Notifier  Notifier
	Formatter Formatter
	Sweep     *Sweep
	ChatID    int64
	Window    time.Duration // only messages newer than now-Window are handled
	Pause     time.Duration // between two countries of /all
	Now       func() time.Time
	Metrics   *metrics.Recorder
	Log       zerolog.Logger
}

func (r *Responder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Responder) routes() map[string]commandHandler {
	routes := map[string]commandHandler{
		"/help":   r.handleHelp,
		"/all":    r.handleCheckAll,
		"/status": r.handleCheckAll,
	}
	for alias, country := range countryAliases {
		routes[alias] = r.handleCountry(country)
	}
	return routes
}

// Run fetches the buffered updates and handles each new command once.
// It returns the number of commands handled.
func (r *Responder) Run(ctx context.Context) (int, error) {
	updates, err := r.Updates.RecentUpdates(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := r.now().Add(-r.Window).Unix()
	routes := r.routes()
	processed := make(map[int]bool)
	handled := 0

	for _, update := range updates {
		msg := update.Message
		if msg == nil || msg.Chat == nil || int64(msg.Date) < cutoff {
			continue
		}
		if processed[update.UpdateID] || msg.Chat.ID != r.ChatID {
			continue
		}
		processed[update.UpdateID] = true

		command, ok := ParseCommand(msg.Text)
		if !ok {
			continue
		}

		r.Log.Info().Str("command", command).Int("update_id", update.UpdateID).Msg("Received command")
		r.Metrics.IncCommand(metricLabel(command, routes))
		handled++

		if handler, exists := routes[command]; exists {
			handler(ctx, command)
		} else {
			r.reply(ctx, "unknown_command", r.Formatter.UnknownCommand(command))
		}
	}

	if handled == 0 {
		r.Log.Info().Dur("window", r.Window).Msg("No new commands")
	}
	return handled, nil
}

// metricLabel keeps arbitrary user input out of metric labels.
func metricLabel(command string, routes map[string]commandHandler) string {
	if _, ok := routes[command]; ok {
		return command
	}
	return "unknown"
}

func (r *Responder) reply(ctx context.Context, kind, text string) {
	notify(ctx, r.Notifier, r.Metrics, r.Log, kind, text)
}

func (r *Responder) handleHelp(ctx context.Context, _ string) {
	r.reply(ctx, "help", r.Formatter.Help())
}

func (r *Responder) handleCountry(country string) commandHandler {
	return func(ctx context.Context, _ string) {
		r.checkAndReply(ctx, country)
	}
}

func (r *Responder) handleCheckAll(ctx context.Context, _ string) {
	countries := r.Sweep.Countries
	r.reply(ctx, "sweep_start", r.Formatter.SweepStart(len(countries)))

	for i, country := range countries {
		if i > 0 {
			if err := sleep(ctx, r.Pause); err != nil {
				r.Log.Warn().Err(err).Msg("Stopped check-all early")
				return
			}
		}
		r.checkAndReply(ctx, country)
	}
}

func (r *Responder) checkAndReply(ctx context.Context, country string) {
	targetName := country
	if r.Sweep.Translator != nil {
		targetName = r.Sweep.Translator.Country(country)
	}
	r.reply(ctx, "checking", r.Formatter.Checking(targetName))

	result := r.Sweep.Check(ctx, country)
	r.reply(ctx, "reply", r.Formatter.Reply(result, r.now()))
}
