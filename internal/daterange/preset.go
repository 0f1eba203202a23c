package daterange

import (
	"strings"
	"time"
)

// Clock abstracts time.Now so presets resolve deterministically in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock with the local wall clock.
type SystemClock struct{}

// Now returns the current local time.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return time.Time(c) }

// Preset names a range relative to today.
type Preset string

const (
	PresetToday      Preset = "today"
	PresetYesterday  Preset = "yesterday"
	PresetLast7Days  Preset = "last-7-days"
	PresetLast30Days Preset = "last-30-days"
	PresetThisWeek   Preset = "this-week"
	PresetThisMonth  Preset = "this-month"
	PresetLastMonth  Preset = "last-month"
	PresetThisYear   Preset = "this-year"
)

// Presets lists the presets in the order the UI cycles through them.
var Presets = []Preset{
	PresetToday,
	PresetYesterday,
	PresetLast7Days,
	PresetThisWeek,
	PresetLast30Days,
	PresetThisMonth,
	PresetLastMonth,
	PresetThisYear,
}

// ResolvePreset returns the range for name as of clock's today.
func ResolvePreset(name string, clock Clock) (Range, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	now := clock.Now()
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	span := func(from, to time.Time) Range {
		return Range{Start: KeyFromTime(from), End: KeyFromTime(to)}
	}

	switch Preset(strings.ToLower(strings.TrimSpace(name))) {
	case PresetToday:
		return span(today, today), nil
	case PresetYesterday:
		y := today.AddDate(0, 0, -1)
		return span(y, y), nil
	case PresetLast7Days:
		return span(today.AddDate(0, 0, -6), today), nil
	case PresetLast30Days:
		return span(today.AddDate(0, 0, -29), today), nil
	case PresetThisWeek:
		// Weeks start on Monday.
		offset := (int(today.Weekday()) + 6) % 7
		monday := today.AddDate(0, 0, -offset)
		return span(monday, monday.AddDate(0, 0, 6)), nil
	case PresetThisMonth:
		first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
		return span(first, first.AddDate(0, 1, -1)), nil
	case PresetLastMonth:
		first := time.Date(y, m-1, 1, 0, 0, 0, 0, time.UTC)
		return span(first, first.AddDate(0, 1, -1)), nil
	case PresetThisYear:
		return span(time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(y, 12, 31, 0, 0, 0, 0, time.UTC)), nil
	}
	return Range{}, &ValidationError{Field: "preset", Value: name, Reason: "unknown preset"}
}

// IsPreset reports whether name is a known preset.
func IsPreset(name string) bool {
	for _, p := range Presets {
		if string(p) == strings.ToLower(strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

// NextPreset returns the preset after cur in Presets, wrapping around.
// An unknown cur yields the first preset.
func NextPreset(cur string) Preset {
	for i, p := range Presets {
		if string(p) == cur {
			return Presets[(i+1)%len(Presets)]
		}
	}
	return Presets[0]
}

// ParseExpr accepts a preset name or an explicit START..END range and
// returns the range plus a label suitable for a persisted session.
func ParseExpr(expr string, clock Clock) (Range, string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Range{}, "", &ValidationError{Field: "range", Reason: "empty expression"}
	}
	if IsPreset(expr) {
		r, err := ResolvePreset(expr, clock)
		return r, strings.ToLower(expr), err
	}
	r, err := ParseRange(expr)
	if err != nil {
		return Range{}, "", err
	}
	return r, r.String(), nil
}
