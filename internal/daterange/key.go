// Package daterange implements the inclusive calendar-date predicate used by
// the filter engine.
//
// Dates are canonical YYYY-MM-DD keys with no timezone. Because the form is
// zero-padded and fixed-width, lexicographic order equals chronological order
// and the predicate is a pair of string comparisons.
package daterange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layout is the canonical date key layout.
const Layout = "2006-01-02"

// Key is a canonical YYYY-MM-DD calendar day.
type Key string

// ValidationError reports malformed date or range input. It is the only
// error the engine surfaces synchronously to callers.
type ValidationError struct {
	Field  string // "start", "end", "range", "preset", "key"
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ParseKey parses s into a canonical key. s must have exactly three integer
// components, zero-padded to 4-2-2, naming a real calendar day.
func ParseKey(s string) (Key, error) {
	return parseField("key", s)
}

func parseField(field, s string) (Key, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return "", &ValidationError{Field: field, Value: s, Reason: "want YYYY-MM-DD"}
	}
	if len(parts[0]) != 4 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return "", &ValidationError{Field: field, Value: s, Reason: "want zero-padded YYYY-MM-DD"}
	}

	var ymd [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return "", &ValidationError{Field: field, Value: s, Reason: "non-numeric component"}
		}
		ymd[i] = n
	}

	year, month, day := ymd[0], ymd[1], ymd[2]
	if month < 1 || month > 12 {
		return "", &ValidationError{Field: field, Value: s, Reason: "month out of range"}
	}
	if day < 1 || day > daysIn(year, time.Month(month)) {
		return "", &ValidationError{Field: field, Value: s, Reason: "day out of range"}
	}
	return Key(s), nil
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Valid reports whether k is a canonical, real calendar day.
func (k Key) Valid() bool {
	_, err := ParseKey(string(k))
	return err == nil
}

// String returns the key text.
func (k Key) String() string { return string(k) }

// Time returns midnight UTC of the day. Zero time for an invalid key.
func (k Key) Time() time.Time {
	t, err := time.Parse(Layout, string(k))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns the key n calendar days later (earlier for negative n).
func (k Key) AddDays(n int) Key {
	return KeyFromTime(k.Time().AddDate(0, 0, n))
}

// Weekday returns the day of week of k.
func (k Key) Weekday() time.Weekday {
	return k.Time().Weekday()
}

// Month returns the YYYY-MM prefix of k.
func (k Key) Month() string {
	if len(k) < 7 {
		return ""
	}
	return string(k[:7])
}

// KeyFromTime returns the calendar day of t in t's own location.
func KeyFromTime(t time.Time) Key {
	return Key(t.Format(Layout))
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b Key) int {
	return int(b.Time().Sub(a.Time()).Hours() / 24)
}
