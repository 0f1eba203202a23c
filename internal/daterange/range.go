package daterange

import (
	"encoding/json"
	"strings"
)

// Range is an inclusive [Start, End] span of calendar days.
type Range struct {
	Start Key `json:"start"`
	End   Key `json:"end"`
}

// NewRange parses both boundaries and rejects start > end.
func NewRange(start, end string) (Range, error) {
	r := Range{Start: Key(start), End: Key(end)}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// Validate checks both boundaries and their order.
func (r Range) Validate() error {
	if _, err := parseField("start", string(r.Start)); err != nil {
		return err
	}
	if _, err := parseField("end", string(r.End)); err != nil {
		return err
	}
	if r.Start > r.End {
		return &ValidationError{Field: "range", Value: r.String(), Reason: "start is after end"}
	}
	return nil
}

// Contains reports whether key falls inside r. r must already be validated.
func (r Range) Contains(key Key) bool {
	return r.Start <= key && key <= r.End
}

// Days returns the number of calendar days covered by r.
func (r Range) Days() int {
	return DaysBetween(r.Start, r.End) + 1
}

// String renders the range as START..END.
func (r Range) String() string {
	return string(r.Start) + ".." + string(r.End)
}

// UnmarshalJSON validates the decoded range so corrupt persisted state is
// rejected at decode time.
func (r *Range) UnmarshalJSON(data []byte) error {
	type plain Range
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := Range(p).Validate(); err != nil {
		return err
	}
	*r = Range(p)
	return nil
}

// Contains is the range predicate: it validates both boundaries, failing with
// a *ValidationError, then tests start <= key <= end. key itself is compared
// as-is; callers decide what an invalid key means.
func Contains(key Key, r Range) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}
	return r.Contains(key), nil
}

// ParseRange parses "START..END". A single date means a one-day range.
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	start, end, found := strings.Cut(s, "..")
	if !found {
		return NewRange(s, s)
	}
	return NewRange(strings.TrimSpace(start), strings.TrimSpace(end))
}
