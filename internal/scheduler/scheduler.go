// Package scheduler applies a precomputed visibility plan to a live surface
// in bounded chunks.
//
// A Run is a cooperative state machine:
//
//	Idle → Applying(chunk 0) → Applying(chunk 1) → … → Completed
//	                     ↘ Cancelled (observed only at a chunk boundary)
//
// Each Step applies one chunk synchronously, so the surface is never seen
// half-way through a chunk. Hosts with their own render loop call Step once
// per frame; headless callers use Execute, which yields between chunks via a
// Yielder. The engine sets Planning before a Run exists.
//
// Step and Execute must be called from one goroutine; State and Cancel are
// safe from any. Callers must not start a second Run against the same
// surface while one is applying.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/abelbrown/rangefilter/internal/logging"
	"github.com/abelbrown/rangefilter/internal/otel"
	"github.com/abelbrown/rangefilter/internal/progress"
	"github.com/abelbrown/rangefilter/internal/record"
	"github.com/abelbrown/rangefilter/internal/visibility"
)

const (
	// DefaultChunkSize is the number of records applied per chunk.
	DefaultChunkSize = 20

	// DefaultInlineThreshold is the record count at or below which the whole
	// plan is applied in one chunk with no yields.
	DefaultInlineThreshold = 50
)

// ErrPlanMismatch is returned when the plan was built for a different record set.
var ErrPlanMismatch = errors.New("plan length does not match records")

// State is the lifecycle state of a filter pass.
type State int

const (
	StateIdle State = iota
	StatePlanning
	StateApplying
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlanning:
		return "planning"
	case StateApplying:
		return "applying"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Options configures a Run.
type Options struct {
	// ChunkSize <= 0 means DefaultChunkSize.
	ChunkSize int

	// InlineThreshold 0 means DefaultInlineThreshold; negative disables inlining.
	InlineThreshold int

	// Yielder is used by Execute between chunks. Nil means a 16ms FrameYielder.
	Yielder Yielder

	// Sink receives progress. Nil means no reporting.
	Sink progress.Sink

	// Events and RunID tag structured events; both optional.
	Events *otel.Logger
	RunID  string
}

// Report summarizes a Run. For a cancelled run Counts covers only the
// records that were applied.
type Report struct {
	State             State             `json:"state" yaml:"state"`
	ChunksApplied     int               `json:"chunks_applied" yaml:"chunks_applied"`
	TotalChunks       int               `json:"total_chunks" yaml:"total_chunks"`
	RecordsApplied    int               `json:"records_applied" yaml:"records_applied"`
	ApplicationErrors int               `json:"application_errors" yaml:"application_errors"`
	Counts            visibility.Counts `json:"counts" yaml:"counts"`
	Duration          time.Duration     `json:"duration" yaml:"duration"`
}

// Partial reports whether the run stopped before applying every chunk.
func (r Report) Partial() bool {
	return r.ChunksApplied < r.TotalChunks
}

// Run is one application of a plan to a record set.
type Run struct {
	records []*record.Record
	plan    visibility.Plan
	size    int
	inline  bool
	yielder Yielder
	sink    progress.Sink
	events  otel.Scope

	state     atomic.Int32
	next      int // index of the next chunk's first record
	chunks    int
	appErrs   int
	cancelReq atomic.Bool
	started   time.Time
	finished  time.Time
}

// New prepares a Run. The plan must be index-aligned with records.
func New(records []*record.Record, plan visibility.Plan, opts Options) (*Run, error) {
	if plan.Len() != len(records) {
		return nil, fmt.Errorf("%w: plan %d, records %d", ErrPlanMismatch, plan.Len(), len(records))
	}

	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	threshold := opts.InlineThreshold
	if threshold == 0 {
		threshold = DefaultInlineThreshold
	}
	inline := threshold > 0 && len(records) <= threshold
	if inline && len(records) > 0 {
		size = len(records)
	}

	yielder := opts.Yielder
	if yielder == nil {
		yielder = FrameYielder{Interval: DefaultFrameInterval}
	}

	sink := opts.Sink
	if sink == nil {
		sink = progress.Nop
	}

	return &Run{
		records: records,
		plan:    plan,
		size:    size,
		inline:  inline,
		yielder: yielder,
		sink:    progress.Monotonic(sink),
		events:  opts.Events.Scope("scheduler", opts.RunID),
	}, nil
}

// State returns the current lifecycle state.
func (r *Run) State() State { return State(r.state.Load()) }

// Done reports whether the run reached a terminal state.
func (r *Run) Done() bool { return r.State().Terminal() }

// Inline reports whether the plan is applied in a single chunk.
func (r *Run) Inline() bool { return r.inline }

// TotalChunks returns the number of chunks a full run applies.
func (r *Run) TotalChunks() int {
	if len(r.records) == 0 {
		return 0
	}
	return (len(r.records) + r.size - 1) / r.size
}

// Cancel requests cancellation. It takes effect before the next chunk, never
// inside one. Cancelling a finished run does nothing.
func (r *Run) Cancel() {
	r.cancelReq.Store(true)
}

// Step applies the next chunk and reports progress. It returns true once the
// run is Completed or Cancelled. Cancellation (Cancel or ctx) is checked
// before the chunk starts.
func (r *Run) Step(ctx context.Context) bool {
	if r.Done() {
		return true
	}
	if r.State() == StateIdle {
		r.setState(StateApplying)
		r.started = time.Now()
	}
	if r.cancelReq.Load() || ctx.Err() != nil {
		r.cancel()
		return true
	}

	total := len(r.records)
	if r.next >= total {
		r.complete()
		return true
	}

	start := r.next
	end := start + r.size
	if end > total {
		end = total
	}
	for i := start; i < end; i++ {
		r.applyOne(i)
	}
	r.next = end
	r.chunks++

	pct := start * 100 / total
	r.sink.OnProgress(pct)
	r.events.Emit(otel.Event{
		Level:   otel.LevelDebug,
		Kind:    otel.KindFilterChunk,
		Chunk:   r.chunks,
		Count:   end - start,
		Total:   total,
		Percent: pct,
	})

	if r.next >= total {
		r.complete()
		return true
	}
	return false
}

// Execute drives the run to a terminal state, yielding between chunks.
// Cancellation via ctx is a normal outcome, reported in Report.State.
func (r *Run) Execute(ctx context.Context) Report {
	for !r.Step(ctx) {
		if r.inline {
			continue
		}
		if err := r.yielder.Yield(ctx); err != nil && ctx.Err() == nil {
			logging.Warn("Yield failed, continuing", "run", r.events.RunID(), "error", err)
		}
	}
	return r.Report()
}

// Report returns the current summary.
func (r *Run) Report() Report {
	rep := Report{
		State:             r.State(),
		ChunksApplied:     r.chunks,
		TotalChunks:       r.TotalChunks(),
		RecordsApplied:    r.next,
		ApplicationErrors: r.appErrs,
		Counts:            r.plan.CountsOf(r.next),
	}
	if !r.started.IsZero() {
		end := r.finished
		if end.IsZero() {
			end = time.Now()
		}
		rep.Duration = end.Sub(r.started)
	}
	return rep
}

// applyOne toggles record i. Failures, including panics from disposed
// handles, are contained to the record and counted.
func (r *Run) applyOne(i int) {
	rec := r.records[i]
	hidden := !r.plan.Visible(i)

	defer func() {
		if p := recover(); p != nil {
			r.applicationError(rec, fmt.Errorf("panic: %v", p))
		}
	}()

	if rec == nil || rec.Handle == nil {
		r.applicationError(rec, errors.New("record has no presentation handle"))
		return
	}
	if err := rec.Handle.SetHidden(hidden); err != nil {
		r.applicationError(rec, err)
	}
}

func (r *Run) applicationError(rec *record.Record, err error) {
	r.appErrs++
	id := ""
	if rec != nil {
		id = rec.ID
	}
	logging.Warn("Failed to apply visibility", "run", r.events.RunID(), "id", id, "error", err)
	r.events.Fail(otel.KindApplyError, err, id)
}

func (r *Run) setState(st State) { r.state.Store(int32(st)) }

func (r *Run) complete() {
	r.setState(StateCompleted)
	r.finished = time.Now()
	counts := r.plan.CountsOf(len(r.records))
	r.sink.OnProgress(100)
	r.sink.OnComplete(counts)
}

func (r *Run) cancel() {
	r.setState(StateCancelled)
	r.finished = time.Now()
	r.sink.OnCancelled(r.plan.CountsOf(r.next))
}
