package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/abelbrown/rangefilter/internal/aggregate"
	"github.com/abelbrown/rangefilter/internal/daterange"
	"github.com/abelbrown/rangefilter/internal/logging"
	"github.com/abelbrown/rangefilter/internal/otel"
	"github.com/abelbrown/rangefilter/internal/record"
	"github.com/abelbrown/rangefilter/internal/scheduler"
	"github.com/abelbrown/rangefilter/internal/session"
	"github.com/abelbrown/rangefilter/internal/visibility"
)

// Result describes a finished (or, via Pass.Result, running) pass.
type Result struct {
	RunID    string             `json:"run_id" yaml:"run_id"`
	Label    string             `json:"label" yaml:"label"`
	Range    *daterange.Range   `json:"range" yaml:"range"`
	Planned  visibility.Counts  `json:"planned" yaml:"planned"`
	Report   scheduler.Report   `json:"report" yaml:"report"`
	Summary  *aggregate.Summary `json:"summary,omitempty" yaml:"summary,omitempty"`
	Repaired []int              `json:"repaired,omitempty" yaml:"repaired,omitempty"`
	Notice   string             `json:"notice" yaml:"notice"`
	SaveErr  error              `json:"-" yaml:"-"`
}

// Completed reports whether the pass applied every chunk.
func (r Result) Completed() bool { return r.Report.State == scheduler.StateCompleted }

// Pass is one filter pass. Step, Execute and Result must be called from a
// single goroutine; State and Cancel may be called from any.
//
// A pass is Idle until planning starts and stays Planning until its first
// chunk. From then on its state is the scheduler's.
type Pass struct {
	engine  *Engine
	id      string
	label   string
	rng     *daterange.Range
	persist bool
	records []*record.Record
	planned visibility.Result
	run     *scheduler.Run
	events  otel.Scope
	tracker tracker

	phase    atomic.Int32 // scheduler.State before the first Step
	finished bool
	result   Result
}

// ID returns the run identifier stamped on the pass's events.
func (p *Pass) ID() string { return p.id }

// Label returns the human-readable filter label.
func (p *Pass) Label() string { return p.label }

// Range returns the filter range, or nil when the pass shows everything.
func (p *Pass) Range() *daterange.Range { return p.rng }

// Planned returns the counts the plan will produce once fully applied.
func (p *Pass) Planned() visibility.Counts { return p.planned.Counts }

// Inline reports whether the pass applies in a single step.
func (p *Pass) Inline() bool { return p.run.Inline() }

// State returns the pass's lifecycle state.
func (p *Pass) State() scheduler.State {
	if st := scheduler.State(p.phase.Load()); st != scheduler.StateApplying {
		return st
	}
	if st := p.run.State(); st != scheduler.StateIdle {
		return st
	}
	return scheduler.StatePlanning
}

func (p *Pass) setPhase(st scheduler.State) { p.phase.Store(int32(st)) }

// Done reports whether the pass is Completed or Cancelled.
func (p *Pass) Done() bool { return p.run.Done() }

// Percent returns the last reported progress, or -1 before the first chunk.
func (p *Pass) Percent() int { return p.tracker.percent() }

// Cancel requests cancellation. It takes effect before the next chunk.
func (p *Pass) Cancel() { p.run.Cancel() }

// Step applies one chunk and returns true once the pass is finished. The
// completion work (aggregates, session, notice) runs inside the final Step.
func (p *Pass) Step(ctx context.Context) bool {
	p.setPhase(scheduler.StateApplying)
	done := p.run.Step(ctx)
	if done {
		p.finish(ctx)
	}
	return done
}

// Abort cancels the pass and finishes it immediately. Records already
// applied stay applied.
func (p *Pass) Abort(ctx context.Context) Result {
	p.Cancel()
	p.Step(ctx)
	return p.Result()
}

// Execute drives the pass to the end, yielding between chunks with the
// engine's Yielder.
func (p *Pass) Execute(ctx context.Context) Result {
	p.setPhase(scheduler.StateApplying)
	p.run.Execute(ctx)
	p.finish(ctx)
	return p.Result()
}

// Result returns the outcome so far.
func (p *Pass) Result() Result {
	if p.finished {
		return p.result
	}
	return Result{
		RunID:    p.id,
		Label:    p.label,
		Range:    p.rng,
		Planned:  p.planned.Counts,
		Report:   p.run.Report(),
		Repaired: p.planned.Repaired,
	}
}

func (p *Pass) finish(ctx context.Context) {
	if p.finished {
		return
	}
	res := p.Result()
	e := p.engine

	switch res.Report.State {
	case scheduler.StateCompleted:
		sum := aggregate.Recompute(record.Visible(p.records))
		res.Summary = &sum
		e.publish(sum)

		if p.persist && e.cfg.Sessions != nil {
			// The pass already completed; a late cancel must not lose the save.
			err := e.cfg.Sessions.Save(context.WithoutCancel(ctx), session.Session{Range: p.rng, Label: p.label})
			if err != nil {
				res.SaveErr = err
				logging.Warn("Failed to save filter session", "run", p.id, "error", err)
			}
		}
		res.Notice = fmt.Sprintf("Showing %d of %d entries (%s)", res.Planned.Visible, res.Planned.Total, p.label)
		if res.Report.ApplicationErrors > 0 {
			res.Notice += fmt.Sprintf(", %d could not be updated", res.Report.ApplicationErrors)
		}
	case scheduler.StateCancelled:
		res.Notice = fmt.Sprintf("Filter cancelled after %d of %d chunks", res.Report.ChunksApplied, res.Report.TotalChunks)
	}

	logging.Info("Filter pass finished",
		"run", p.id,
		"state", res.Report.State,
		"visible", res.Report.Counts.Visible,
		"total", len(p.records),
		"chunks", res.Report.ChunksApplied,
		"errors", res.Report.ApplicationErrors,
		"duration", res.Report.Duration.Round(time.Millisecond),
	)

	p.result = res
	p.finished = true
	e.notify(res.Notice)
	if res.SaveErr != nil {
		e.notify("Could not save filter: " + res.SaveErr.Error())
	}
}

// tracker is a progress sink remembering the last percentage.
type tracker struct {
	last atomic.Int64
	seen atomic.Bool
}

func (t *tracker) percent() int {
	if !t.seen.Load() {
		return -1
	}
	return int(t.last.Load())
}

func (t *tracker) OnProgress(percent int) {
	t.last.Store(int64(percent))
	t.seen.Store(true)
}

func (t *tracker) OnComplete(visibility.Counts)  {}
func (t *tracker) OnCancelled(visibility.Counts) {}
