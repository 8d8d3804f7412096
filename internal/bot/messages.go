package bot

import (
	"html"
	"strings"
	"time"

	"visa-notifier/internal/i18n"
	"visa-notifier/internal/vfs"
)

// ReportZone is the reference zone for digest timing and displayed timestamps.
var ReportZone = time.FixedZone("UTC+7", 7*60*60)

const (
	datePreview       = 5
	maxErrorLen       = 500
	maxInlineErrorLen = 300
)

// Formatter renders Telegram HTML messages from check results.
type Formatter struct {
	tr *i18n.Translator
}

func NewFormatter(tr *i18n.Translator) Formatter {
	return Formatter{tr: tr}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func esc(s string) string { return html.EscapeString(s) }

func (f Formatter) centerName(s vfs.SlotRecord) string {
	if s.Center == "" || s.Center == vfs.UnknownCenter {
		return f.tr.T("unknown")
	}
	return s.Center
}

func (f Formatter) bookingURL(s vfs.SlotRecord, r CountryResult) string {
	if s.BookingURL != "" {
		return s.BookingURL
	}
	if r.PortalURL != "" {
		return r.PortalURL
	}
	return vfs.DefaultPortalURL
}

func (f Formatter) datesPreview(dates []string) string {
	shown := dates
	if len(shown) > datePreview {
		shown = shown[:datePreview]
	}
	escaped := make([]string, len(shown))
	for i, d := range shown {
		escaped[i] = esc(d)
	}
	preview := strings.Join(escaped, ", ")
	if len(dates) > datePreview {
		preview += f.tr.T("slots_found_more", len(dates)-datePreview)
	}
	return preview
}

// SlotsFound is the high-priority alert for one country with open slots.
func (f Formatter) SlotsFound(r CountryResult, now time.Time) string {
	lines := []string{
		f.tr.T("slots_found_header"),
		f.tr.T("slots_found_route", esc(r.OriginName), esc(r.TargetName)),
		f.tr.T("slots_found_detected", now.In(ReportZone).Format("02/01/2006 15:04")),
	}
	for i, s := range r.Slots {
		lines = append(lines, f.tr.T("slots_found_center", i+1, esc(f.centerName(s))))
		if s.EarliestDate != "" {
			lines = append(lines, f.tr.T("slots_found_earliest", esc(s.EarliestDate)))
		}
		if len(s.Slots) > 0 {
			lines = append(lines, f.tr.T("slots_found_dates", f.datesPreview(s.Slots)))
		}
		lines = append(lines, f.tr.T("slots_found_link", esc(f.bookingURL(s, r))))
	}
	lines = append(lines, f.tr.T("slots_found_footer"))
	return strings.Join(lines, "\n")
}

// Errors batches every failed country into one message.
func (f Formatter) Errors(failed Results) string {
	lines := []string{f.tr.T("errors_header")}
	for _, r := range failed {
		lines = append(lines, f.tr.T("errors_line", esc(r.TargetName), esc(truncate(r.Err.Error(), maxErrorLen))))
	}
	lines = append(lines, f.tr.T("errors_footer"))
	return strings.Join(lines, "\n")
}

// Digest summarizes the status of every configured country.
func (f Formatter) Digest(results Results, originName string, now time.Time) string {
	lines := []string{
		f.tr.T("digest_header", now.In(ReportZone).Format("02/01/2006")),
		f.tr.T("digest_origin", esc(originName), len(results)),
	}
	anySlots := false
	for _, r := range results {
		switch {
		case r.Failed():
			lines = append(lines, f.tr.T("digest_error", esc(r.TargetName)))
		case r.HasSlots():
			anySlots = true
			lines = append(lines, f.tr.T("digest_slots", esc(r.TargetName), len(r.Slots)))
			for _, s := range r.Slots {
				earliest := s.EarliestDate
				if earliest == "" {
					earliest = f.tr.T("unknown")
				}
				lines = append(lines, f.tr.T("digest_center", esc(f.centerName(s)), esc(earliest)))
			}
			lines = append(lines, f.tr.T("digest_link", esc(f.bookingURL(r.Slots[0], r))))
		default:
			lines = append(lines, f.tr.T("digest_no_slots", esc(r.TargetName)))
		}
	}
	if !anySlots {
		lines = append(lines, f.tr.T("digest_footer_none"))
	}
	return strings.Join(lines, "\n")
}

func (f Formatter) Checking(targetName string) string {
	return f.tr.T("reply_checking", esc(targetName))
}

// Reply answers a chat command with the result of one country check.
func (f Formatter) Reply(r CountryResult, now time.Time) string {
	if r.Failed() {
		return f.tr.T("reply_error", esc(r.TargetName), esc(truncate(r.Err.Error(), maxInlineErrorLen)))
	}

	checkedAt := f.tr.T("reply_checked_at", now.In(ReportZone).Format("15:04 02/01/2006"))
	if !r.HasSlots() {
		return f.tr.T("reply_no_slots", esc(r.TargetName)) + "\n" + checkedAt
	}

	lines := []string{f.tr.T("reply_slots_header", esc(r.TargetName))}
	for _, s := range r.Slots {
		earliest := s.EarliestDate
		if earliest == "" {
			earliest = f.tr.T("unknown")
		}
		lines = append(lines,
			f.tr.T("reply_center", esc(f.centerName(s))),
			f.tr.T("reply_earliest", esc(earliest)),
			f.tr.T("reply_link", esc(f.bookingURL(s, r))),
		)
	}
	lines = append(lines, checkedAt)
	return strings.Join(lines, "\n")
}

func (f Formatter) SweepStart(countries int) string {
	return f.tr.T("reply_sweep_start", countries)
}

func (f Formatter) UnknownCommand(command string) string {
	return f.tr.T("reply_unknown_command", esc(command))
}

func (f Formatter) Help() string {
	return f.tr.T("help")
}

func (f Formatter) TestMessage(origin string, targets []string) string {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = f.tr.Country(t)
	}
	return f.tr.T("test_message", esc(f.tr.Country(origin)), esc(strings.Join(names, ", ")))
}
