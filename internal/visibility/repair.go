package visibility

import (
	"errors"
	"fmt"
	"strings"

	"github.com/araddon/dateparse"

	"github.com/abelbrown/rangefilter/internal/daterange"
	"github.com/abelbrown/rangefilter/internal/record"
)

// ErrNoDisplayDate means the record has no secondary date text to repair from.
var ErrNoDisplayDate = errors.New("no display date")

// Repairer derives a date key for a record whose canonical key is missing.
type Repairer interface {
	RepairDateKey(rec *record.Record) (daterange.Key, error)
}

// RepairFunc adapts a function to Repairer.
type RepairFunc func(rec *record.Record) (daterange.Key, error)

// RepairDateKey implements Repairer.
func (f RepairFunc) RepairDateKey(rec *record.Record) (daterange.Key, error) {
	return f(rec)
}

// DisplayDateRepairer parses the human-readable date shown by the record's
// handle. Ambiguous numeric forms such as 03/04/2025 are rejected rather than
// guessed.
type DisplayDateRepairer struct{}

// RepairDateKey implements Repairer.
func (DisplayDateRepairer) RepairDateKey(rec *record.Record) (daterange.Key, error) {
	text := strings.TrimSpace(rec.DisplayDate())
	if text == "" {
		return "", ErrNoDisplayDate
	}

	t, err := dateparse.ParseStrict(text)
	if err != nil {
		return "", fmt.Errorf("parse display date %q: %w", text, err)
	}

	// The calendar day as written, whatever zone dateparse attached.
	return daterange.ParseKey(t.Format(daterange.Layout))
}
