// Package visibility computes, ahead of any UI mutation, which records a
// date range leaves visible.
//
// Planning is pure with one documented exception: a record whose date key is
// missing or malformed is repaired from its displayed date when possible, and
// the repaired key is written back into Record.DateKey so later passes skip
// the repair. Result.Repaired lists the indices that were written.
package visibility

// Reason explains one planning decision.
type Reason uint8

const (
	ReasonVisible Reason = iota
	ReasonOutOfRange
	ReasonInvalidDate
)

func (r Reason) String() string {
	switch r {
	case ReasonVisible:
		return "visible"
	case ReasonOutOfRange:
		return "out-of-range"
	case ReasonInvalidDate:
		return "invalid-date"
	default:
		return "unknown"
	}
}

// Counts tallies planning decisions. Visible+OutOfRange+InvalidDate == Total.
type Counts struct {
	Visible     int `json:"visible" yaml:"visible"`
	InvalidDate int `json:"invalid_date" yaml:"invalid_date"`
	OutOfRange  int `json:"out_of_range" yaml:"out_of_range"`
	Total       int `json:"total" yaml:"total"`
}

func (c *Counts) add(r Reason) {
	c.Total++
	switch r {
	case ReasonVisible:
		c.Visible++
	case ReasonOutOfRange:
		c.OutOfRange++
	default:
		c.InvalidDate++
	}
}

// Plan is an immutable, index-aligned set of visibility decisions. The zero
// value is an empty plan.
type Plan struct {
	reasons []Reason
}

// Len returns the number of decisions, equal to the number of planned records.
func (p Plan) Len() int { return len(p.reasons) }

// Visible reports the decision for record i.
func (p Plan) Visible(i int) bool { return p.reasons[i] == ReasonVisible }

// Reason returns why record i got its decision.
func (p Plan) Reason(i int) Reason { return p.reasons[i] }

// Decisions returns a copy of the boolean decisions.
func (p Plan) Decisions() []bool {
	out := make([]bool, len(p.reasons))
	for i := range p.reasons {
		out[i] = p.Visible(i)
	}
	return out
}

// CountsOf tallies the first n decisions. It yields the partial counts of a
// pass that stopped after applying n records.
func (p Plan) CountsOf(n int) Counts {
	if n > len(p.reasons) {
		n = len(p.reasons)
	}
	var c Counts
	for _, r := range p.reasons[:n] {
		c.add(r)
	}
	return c
}
