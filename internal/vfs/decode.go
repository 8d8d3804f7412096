package vfs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// UnknownCenter names a center whose payload carried none of the name fields.
const UnknownCenter = "unknown"

const maxDetailDates = 10

const availablePlaceholder = "true"

// Candidate field names per logical attribute, in priority order. The booking
// service renames fields between versions; the first non-empty one wins.
var (
	centerNameFields   = []string{"centerName", "name", "locationName"}
	slotListFields     = []string{"slots", "availableSlots"}
	earliestDateFields = []string{"earliestDate", "firstAvailableDate"}
	tokenFields        = []string{"token", "access_token"}
)

// CenterSummary is one appointment center as reported by checkslots.
type CenterSummary struct {
	Name         string
	Slots        []string
	EarliestDate string
}

// HasAvailability reports whether the summary indicates any open slot.
func (c CenterSummary) HasAvailability() bool {
	return len(c.Slots) > 0 || c.EarliestDate != ""
}

// DecodeCenters accepts either a single center object or a list of them.
// List entries that are not objects are skipped.
func DecodeCenters(body []byte) ([]CenterSummary, error) {
	body = bytes.TrimSpace(body)
	var objects []map[string]json.RawMessage

	switch {
	case len(body) > 0 && body[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("decode center list: %w", err)
		}
		for _, item := range items {
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
				continue
			}
			objects = append(objects, obj)
		}
	case len(body) > 0 && body[0] == '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, fmt.Errorf("decode center: %w", err)
		}
		objects = append(objects, obj)
	case json.Valid(body):
		// null or a bare scalar carries no center
	default:
		return nil, errors.New("decode centers: expected a JSON object or list")
	}

	centers := make([]CenterSummary, 0, len(objects))
	for _, obj := range objects {
		centers = append(centers, decodeCenter(obj))
	}
	return centers, nil
}

func decodeCenter(obj map[string]json.RawMessage) CenterSummary {
	name := firstString(obj, centerNameFields)
	if name == "" {
		name = UnknownCenter
	}
	return CenterSummary{
		Name:         name,
		Slots:        firstList(obj, slotListFields),
		EarliestDate: firstString(obj, earliestDateFields),
	}
}

// DecodeDates accepts a list of dates or an object with a "dates" list,
// and keeps at most maxDetailDates non-empty entries.
func DecodeDates(body []byte) ([]string, error) {
	body = bytes.TrimSpace(body)
	var raw []json.RawMessage

	switch {
	case len(body) > 0 && body[0] == '[':
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("decode dates: %w", err)
		}
	case len(body) > 0 && body[0] == '{':
		var obj struct {
			Dates []json.RawMessage `json:"dates"`
		}
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, fmt.Errorf("decode dates: %w", err)
		}
		raw = obj.Dates
	default:
		return nil, errors.New("decode dates: expected a JSON object or list")
	}

	dates := stringValues(raw)
	if len(dates) > maxDetailDates {
		dates = dates[:maxDetailDates]
	}
	return dates, nil
}

func decodeToken(body []byte) (string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	return firstString(obj, tokenFields), nil
}

func firstString(obj map[string]json.RawMessage, fields []string) string {
	for _, field := range fields {
		if s := stringValue(obj[field]); s != "" {
			return s
		}
	}
	return ""
}

// firstList returns the first alias holding a non-empty list. A missing
// field, null or [] moves on to the next alias.
func firstList(obj map[string]json.RawMessage, fields []string) []string {
	for _, field := range fields {
		raw := bytes.TrimSpace(obj[field])
		if len(raw) == 0 {
			continue
		}
		if raw[0] != '[' {
			// a bare count or date still signals availability
			if s := stringValue(raw); s != "" {
				return []string{s}
			}
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
			continue
		}
		values := make([]string, len(items))
		for i, item := range items {
			values[i] = displayValue(item)
		}
		return values
	}
	return nil
}

// displayValue renders a slot entry. Entries with no text of their own, such
// as null or "", become availablePlaceholder so the slot is still counted.
func displayValue(raw json.RawMessage) string {
	if s := stringValue(raw); s != "" {
		return s
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && (raw[0] == '{' || raw[0] == '[') {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err == nil {
			return buf.String()
		}
	}
	return availablePlaceholder
}

func stringValues(items []json.RawMessage) []string {
	var values []string
	for _, item := range items {
		if s := stringValue(item); s != "" {
			values = append(values, s)
		}
	}
	return values
}

// stringValue renders a JSON scalar as text. null, false, 0, "" and empty
// containers count as empty. Objects are kept as compact JSON.
func stringValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case 'n', 'f':
		return ""
	case 't':
		return "true"
	case '[', '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return ""
		}
		if s := buf.String(); s != "[]" && s != "{}" {
			return s
		}
		return ""
	default:
		if f, err := strconv.ParseFloat(string(raw), 64); err != nil || f == 0 {
			return ""
		}
		return string(raw)
	}
}
