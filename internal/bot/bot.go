package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"visa-notifier/internal/i18n"
	"visa-notifier/internal/metrics"
	"visa-notifier/internal/vfs"
)

// SlotChecker checks one target country. *vfs.Checker implements it.
type SlotChecker interface {
	CheckAvailableSlots(ctx context.Context) ([]vfs.SlotRecord, error)
	PortalURL() string
}

// CheckerFactory builds a fresh checker for a target country code. Every country
// gets its own checker because the login token is scoped to the target.
type CheckerFactory func(target string) (SlotChecker, error)

// CountryResult is the outcome of checking one target country. A non-nil Err
// means the check did not complete; it says nothing about availability.
type CountryResult struct {
	Country    string
	OriginName string
	TargetName string
	PortalURL  string
	Slots      []vfs.SlotRecord
	Err        error
}

func (r CountryResult) Failed() bool { return r.Err != nil }

func (r CountryResult) HasSlots() bool { return r.Err == nil && len(r.Slots) > 0 }

type Results []CountryResult

// Err combines the errors of every failed country, or returns nil.
func (rs Results) Err() error {
	var errs error
	for _, r := range rs {
		if r.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", r.Country, r.Err))
		}
	}
	return errs
}

func (rs Results) Failed() Results {
	var failed Results
	for _, r := range rs {
		if r.Failed() {
			failed = append(failed, r)
		}
	}
	return failed
}

// Sweep checks every configured country, one at a time and in order.
type Sweep struct {
	Origin     string
	Countries  []string
	NewChecker CheckerFactory
	Pause      time.Duration // between two countries
	Translator *i18n.Translator
	Metrics    *metrics.Recorder
	Log        zerolog.Logger
}

// Run checks each country in order with Pause between consecutive checks.
// A failing country never stops the ones after it. If ctx ends during a pause
// the remaining countries are reported with the context error.
func (s *Sweep) Run(ctx context.Context) Results {
	results := make(Results, 0, len(s.Countries))
	for i, country := range s.Countries {
		if i > 0 {
			if err := sleep(ctx, s.Pause); err != nil {
				for _, rest := range s.Countries[i:] {
					results = append(results, s.result(rest, nil, err))
				}
				return results
			}
		}
		results = append(results, s.Check(ctx, country))
	}
	return results
}

// Check runs the full login → centers → dates sequence for one country.
func (s *Sweep) Check(ctx context.Context, country string) CountryResult {
	log := s.Log.With().Str("country", country).Logger()
	log.Info().Str("origin", s.Origin).Msg("Checking visa slots")

	start := time.Now()
	checker, err := s.NewChecker(country)
	if err != nil {
		err = fmt.Errorf("create checker: %w", err)
		s.Metrics.ObserveCheck(country, outcomeOf(err), 0, time.Since(start))
		return s.result(country, nil, err)
	}

	slots, err := checker.CheckAvailableSlots(ctx)
	s.Metrics.ObserveCheck(country, outcomeOf(err), len(slots), time.Since(start))

	res := s.result(country, slots, err)
	res.PortalURL = checker.PortalURL()
	switch {
	case err != nil:
		log.Error().Err(err).Msg("Check failed")
	case len(slots) > 0:
		log.Info().Int("centers", len(slots)).Msg("Found centers with open slots")
	default:
		log.Info().Msg("No open slots this time")
	}
	return res
}

func (s *Sweep) result(country string, slots []vfs.SlotRecord, err error) CountryResult {
	res := CountryResult{
		Country:    country,
		OriginName: s.Origin,
		TargetName: country,
		Slots:      slots,
		Err:        err,
	}
	if s.Translator != nil {
		res.OriginName = s.Translator.Country(s.Origin)
		res.TargetName = s.Translator.Country(country)
	}
	if err != nil {
		res.Slots = nil
	}
	return res
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case vfs.IsAuthError(err):
		return "auth_error"
	case errors.Is(err, vfs.ErrUpstream):
		return "upstream_error"
	default:
		return "error"
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
