package visibility

import (
	"context"

	"github.com/abelbrown/rangefilter/internal/daterange"
	"github.com/abelbrown/rangefilter/internal/logging"
	"github.com/abelbrown/rangefilter/internal/record"
)

// ctxCheckEvery is how many records are planned between context checks.
const ctxCheckEvery = 1000

// Result is the output of one planning pass.
type Result struct {
	Plan     Plan
	Counts   Counts
	Repaired []int // indices whose DateKey was written by repair
}

// Planner builds visibility plans. The zero value plans without repair.
type Planner struct {
	Repairer Repairer
}

// NewPlanner returns a Planner using r for missing date keys.
func NewPlanner(r Repairer) *Planner {
	return &Planner{Repairer: r}
}

// Plan decides visibility for every record against rng.
//
// A malformed rng fails with *daterange.ValidationError before any record is
// looked at. Records whose key cannot be determined even by repair are
// planned hidden and counted as InvalidDate; that is never an error. Handles
// are not touched. A cancelled ctx aborts planning with ctx.Err().
func (p *Planner) Plan(ctx context.Context, records []*record.Record, rng daterange.Range) (Result, error) {
	if err := rng.Validate(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{Plan: Plan{reasons: make([]Reason, len(records))}}

	for i, rec := range records {
		if i > 0 && i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}

		key, repaired, ok := p.resolveKey(rec)
		if repaired {
			res.Repaired = append(res.Repaired, i)
		}

		reason := ReasonInvalidDate
		if ok {
			reason = ReasonOutOfRange
			if rng.Contains(key) {
				reason = ReasonVisible
			}
		}
		res.Plan.reasons[i] = reason
		res.Counts.add(reason)
	}

	return res, nil
}

// resolveKey returns the record's usable key, repairing and writing it back
// when the canonical slot is empty or malformed.
func (p *Planner) resolveKey(rec *record.Record) (key daterange.Key, repaired, ok bool) {
	if rec == nil {
		return "", false, false
	}
	if rec.DateKey.Valid() {
		return rec.DateKey, false, true
	}
	if p.Repairer == nil {
		return "", false, false
	}

	key, err := p.Repairer.RepairDateKey(rec)
	if err != nil || !key.Valid() {
		logging.Debug("Date key repair failed",
			"id", rec.ID,
			"key", string(rec.DateKey),
			"display", rec.DisplayDate(),
			"error", err)
		return "", false, false
	}

	rec.DateKey = key
	return key, true, true
}

// ShowAll returns the plan that makes every record visible, used when a
// filter is cleared.
func ShowAll(records []*record.Record) Result {
	res := Result{Plan: Plan{reasons: make([]Reason, len(records))}}
	for range records {
		res.Counts.add(ReasonVisible)
	}
	return res
}
