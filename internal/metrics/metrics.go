package metrics

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const jobName = "visa_notifier"

// Recorder collects the metrics of one run on a private registry. A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	checks        *prometheus.CounterVec
	centersFound  *prometheus.GaugeVec
	checkDuration *prometheus.HistogramVec
	notifications *prometheus.CounterVec
	commands      *prometheus.CounterVec
	lastRun       prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "visa_checks_total",
				Help: "Country checks by outcome (ok/auth_error/upstream_error).",
			},
			[]string{"country", "outcome"},
		),
		centersFound: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "visa_centers_with_slots",
				Help: "Centers reporting open slots in the latest check.",
			},
			[]string{"country"},
		),
		checkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "visa_check_duration_seconds",
				Help:    "Duration of one country check.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
			},
			[]string{"country"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "visa_notifications_total",
				Help: "Telegram messages by kind and delivery result.",
			},
			[]string{"kind", "result"},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "visa_commands_total",
				Help: "Chat commands handled, by command token.",
			},
			[]string{"command"},
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "visa_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run.",
		}),
	}
	r.registry.MustRegister(r.checks, r.centersFound, r.checkDuration, r.notifications, r.commands, r.lastRun)
	return r
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ObserveCheck(country, outcome string, centers int, took time.Duration) {
	if r == nil {
		return
	}
	r.checks.WithLabelValues(norm(country), norm(outcome)).Inc()
	r.checkDuration.WithLabelValues(norm(country)).Observe(took.Seconds())
	if outcome == "ok" {
		r.centersFound.WithLabelValues(norm(country)).Set(float64(centers))
	}
}

func (r *Recorder) IncNotification(kind string, sent bool) {
	if r == nil {
		return
	}
	result := "sent"
	if !sent {
		result = "failed"
	}
	r.notifications.WithLabelValues(norm(kind), result).Inc()
}

func (r *Recorder) IncCommand(command string) {
	if r == nil {
		return
	}
	r.commands.WithLabelValues(norm(command)).Inc()
}

// Push sends the collected metrics to a Prometheus Pushgateway, grouped by mode.
func (r *Recorder) Push(ctx context.Context, gatewayURL, mode string) error {
	if r == nil || gatewayURL == "" {
		return nil
	}
	r.lastRun.SetToCurrentTime()
	return push.New(gatewayURL, jobName).
		Gatherer(r.registry).
		Grouping("mode", mode).
		PushContext(ctx)
}
