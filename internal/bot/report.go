package bot

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"visa-notifier/internal/metrics"
)

// digestWindow is the part of the report hour in which a run sends the digest.
// It must stay at or below half the external schedule period (30 minutes),
// otherwise two runs can land inside the same window.
const digestWindow = 30 * time.Minute

// IsDigestTime reports whether now falls in the first half of reportHour (UTC+7).
func IsDigestTime(now time.Time, reportHour int) bool {
	local := now.In(ReportZone)
	return local.Hour() == reportHour && time.Duration(local.Minute())*time.Minute < digestWindow
}

// ReportSummary tells what a Report call sent.
type ReportSummary struct {
	SlotAlerts  int
	ErrorReport bool
	Digest      bool
}

// Reporter turns sweep results into Telegram messages.
type Reporter struct {
	Notifier   Notifier
	Formatter  Formatter
	OriginName string
	ReportHour int
	Now        func() time.Time
	Metrics    *metrics.Recorder
	Log        zerolog.Logger

	digestSent bool
}

func (r *Reporter) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Report sends one alert per country with slots, then one batched error
// message, then the digest when the run falls inside the report window.
// Delivery failures are logged and never returned.
func (r *Reporter) Report(ctx context.Context, results Results) ReportSummary {
	var summary ReportSummary
	now := r.now()

	for _, res := range results {
		if !res.HasSlots() {
			continue
		}
		d := notify(ctx, r.Notifier, r.Metrics, r.Log, "slots_found", r.Formatter.SlotsFound(res, now))
		if d.Sent {
			summary.SlotAlerts++
		}
	}

	if failed := results.Failed(); len(failed) > 0 {
		d := notify(ctx, r.Notifier, r.Metrics, r.Log, "errors", r.Formatter.Errors(failed))
		summary.ErrorReport = d.Sent
	}

	if !r.digestSent && IsDigestTime(now, r.ReportHour) {
		r.digestSent = true
		r.Log.Info().Int("report_hour", r.ReportHour).Msg("Report hour reached, sending daily digest")
		d := notify(ctx, r.Notifier, r.Metrics, r.Log, "digest", r.Formatter.Digest(results, r.OriginName, now))
		summary.Digest = d.Sent
	}
	return summary
}
