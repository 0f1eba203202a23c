// Package engine orchestrates a filter pass: validate the range, plan
// visibility for every record, apply the plan in chunks, then recompute
// aggregates, persist the session and tell the user what happened.
//
// Two driving modes share one Pass type. Hosts with their own render loop
// (the TUI) call Prepare and then Pass.Step once per frame. Headless callers
// use Apply, which blocks until the pass is Completed or Cancelled.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/abelbrown/rangefilter/internal/aggregate"
	"github.com/abelbrown/rangefilter/internal/daterange"
	"github.com/abelbrown/rangefilter/internal/logging"
	"github.com/abelbrown/rangefilter/internal/otel"
	"github.com/abelbrown/rangefilter/internal/progress"
	"github.com/abelbrown/rangefilter/internal/record"
	"github.com/abelbrown/rangefilter/internal/scheduler"
	"github.com/abelbrown/rangefilter/internal/session"
	"github.com/abelbrown/rangefilter/internal/visibility"
)

// AllLabel is the session label used when no range is active.
const AllLabel = "All entries"

// Notifier shows a short message to the user.
type Notifier interface {
	Notify(msg string)
}

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(msg string)

// Notify implements Notifier.
func (f NotifyFunc) Notify(msg string) { f(msg) }

// RepairStore persists date keys the planner repaired. store.Store
// implements it.
type RepairStore interface {
	SaveRepairs(ctx context.Context, records []*record.Record, repaired []int) error
}

// Config wires an Engine to its collaborators. Everything is optional
// except that a nil Planner means planning without repair.
type Config struct {
	Planner    *visibility.Planner
	Sessions   *session.Store
	Repairs    RepairStore
	Notifier   Notifier
	Aggregates aggregate.Sink
	Sinks      []progress.Sink
	Events     *otel.Logger
	Clock      daterange.Clock

	ChunkSize       int
	InlineThreshold int
	Yielder         scheduler.Yielder
}

// Engine runs filter passes. Blocking entry points are serialized: starting
// one cancels the pass currently running, including one still planning, and
// waits for it to stop.
type Engine struct {
	cfg Config

	// runMu serializes blocking passes.
	runMu sync.Mutex

	mu      sync.Mutex
	pending *pendingRun
}

// pendingRun is a blocking pass from the moment it is requested. pass is
// set once planning begins.
type pendingRun struct {
	cancel context.CancelFunc
	pass   *Pass
}

// New returns an Engine.
func New(cfg Config) *Engine {
	if cfg.Planner == nil {
		cfg.Planner = &visibility.Planner{}
	}
	if cfg.Clock == nil {
		cfg.Clock = daterange.SystemClock{}
	}
	if cfg.Yielder == nil {
		cfg.Yielder = scheduler.FrameYielder{Interval: scheduler.DefaultFrameInterval}
	}
	return &Engine{cfg: cfg}
}

// Clock returns the clock presets are resolved against.
func (e *Engine) Clock() daterange.Clock { return e.cfg.Clock }

// Prepare validates rng and plans a pass over records without touching any
// handle. A malformed range fails with *daterange.ValidationError. The
// returned Pass is driven by Step or Execute. A ctx cancelled while planning
// yields a pass that finishes cancelled without applying anything.
//
// Prepare does not wait for other passes. A host driving passes itself must
// Abort the previous one first.
func (e *Engine) Prepare(ctx context.Context, records []*record.Record, rng daterange.Range, label string) (*Pass, error) {
	return e.prepare(ctx, records, &rng, label, true, nil)
}

// PrepareExpr resolves a preset name or "START..END" and prepares a pass.
func (e *Engine) PrepareExpr(ctx context.Context, records []*record.Record, expr string) (*Pass, error) {
	return e.prepareExpr(ctx, records, expr, nil)
}

// PrepareClear forgets the stored session and prepares a pass that shows
// every record.
func (e *Engine) PrepareClear(ctx context.Context, records []*record.Record) (*Pass, error) {
	return e.prepareClear(ctx, records, nil)
}

// PrepareRestore prepares a pass re-applying the stored session. It returns
// nil, nil when there is nothing to restore.
func (e *Engine) PrepareRestore(ctx context.Context, records []*record.Record) (*Pass, error) {
	return e.prepareRestore(ctx, records, nil)
}

// Apply runs a full pass and blocks until it completes or is cancelled.
func (e *Engine) Apply(ctx context.Context, records []*record.Record, rng daterange.Range, label string) (Result, error) {
	return e.execute(ctx, func(ctx context.Context, track func(*Pass)) (*Pass, error) {
		return e.prepare(ctx, records, &rng, label, true, track)
	})
}

// ApplyExpr is Apply for a preset name or "START..END" expression.
func (e *Engine) ApplyExpr(ctx context.Context, records []*record.Record, expr string) (Result, error) {
	return e.execute(ctx, func(ctx context.Context, track func(*Pass)) (*Pass, error) {
		return e.prepareExpr(ctx, records, expr, track)
	})
}

// Clear forgets the session and shows every record.
func (e *Engine) Clear(ctx context.Context, records []*record.Record) (Result, error) {
	return e.execute(ctx, func(ctx context.Context, track func(*Pass)) (*Pass, error) {
		return e.prepareClear(ctx, records, track)
	})
}

// Restore re-applies the stored session. ok is false when there was none.
func (e *Engine) Restore(ctx context.Context, records []*record.Record) (res Result, ok bool, err error) {
	restored := false
	res, err = e.execute(ctx, func(ctx context.Context, track func(*Pass)) (*Pass, error) {
		p, err := e.prepareRestore(ctx, records, track)
		restored = p != nil
		return p, err
	})
	return res, restored, err
}

// Active returns the pass a blocking entry point is running, or nil. The
// pass is visible from the moment planning starts.
func (e *Engine) Active() *Pass {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return nil
	}
	return e.pending.pass
}

// Cancel requests cancellation of the blocking pass in flight, if any. A pass
// still planning stops planning; one applying stops at the next chunk.
func (e *Engine) Cancel() {
	e.mu.Lock()
	run := e.pending
	e.mu.Unlock()
	if run != nil {
		run.cancel()
	}
}

// Recompute summarizes the records that are currently visible and
// publishes the result. Hosts call it explicitly, e.g. after a cancelled
// pass, which never recomputes on its own.
func (e *Engine) Recompute(records []*record.Record) aggregate.Summary {
	sum := aggregate.Recompute(record.Visible(records))
	e.publish(sum)
	e.cfg.Events.Emit(otel.Event{
		Kind:  otel.KindRecompute,
		Comp:  "aggregate",
		Count: sum.Records,
		Total: len(records),
	})
	return sum
}

func (e *Engine) execute(ctx context.Context, prepare func(context.Context, func(*Pass)) (*Pass, error)) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	run := &pendingRun{cancel: cancel}
	e.mu.Lock()
	prev := e.pending
	e.pending = run
	e.mu.Unlock()
	if prev != nil {
		prev.cancel()
	}
	defer func() {
		e.mu.Lock()
		if e.pending == run {
			e.pending = nil
		}
		e.mu.Unlock()
	}()

	e.runMu.Lock()
	defer e.runMu.Unlock()

	p, err := prepare(ctx, func(p *Pass) {
		e.mu.Lock()
		run.pass = p
		e.mu.Unlock()
	})
	if err != nil || p == nil {
		return Result{}, err
	}
	return p.Execute(ctx), nil
}

func (e *Engine) prepareExpr(ctx context.Context, records []*record.Record, expr string, track func(*Pass)) (*Pass, error) {
	rng, label, err := daterange.ParseExpr(expr, e.cfg.Clock)
	if err != nil {
		e.invalid(expr, err)
		return nil, err
	}
	return e.prepare(ctx, records, &rng, label, true, track)
}

func (e *Engine) prepareClear(ctx context.Context, records []*record.Record, track func(*Pass)) (*Pass, error) {
	if e.cfg.Sessions != nil {
		if err := e.cfg.Sessions.Clear(ctx); err != nil {
			logging.Warn("Failed to clear filter session", "error", err)
		}
	}
	return e.prepare(ctx, records, nil, AllLabel, false, track)
}

func (e *Engine) prepareRestore(ctx context.Context, records []*record.Record, track func(*Pass)) (*Pass, error) {
	if e.cfg.Sessions == nil {
		return nil, nil
	}
	sess := e.cfg.Sessions.Load(ctx)
	if sess == nil {
		return nil, nil
	}
	label := sess.Label
	if sess.Range == nil {
		if label == "" {
			label = AllLabel
		}
		return e.prepare(ctx, records, nil, label, false, track)
	}
	if label == "" {
		label = sess.Range.String()
	}
	return e.prepare(ctx, records, sess.Range, label, true, track)
}

// prepare plans a pass. rng nil means show everything.
// track, when set, receives the pass before planning starts.
func (e *Engine) prepare(ctx context.Context, records []*record.Record, rng *daterange.Range, label string, persist bool, track func(*Pass)) (*Pass, error) {
	runID := uuid.NewString()
	events := e.cfg.Events.Scope("engine", runID)

	var rangeText string
	if rng != nil {
		rangeText = rng.String()
		if err := rng.Validate(); err != nil {
			e.invalid(rangeText, err)
			return nil, err
		}
	}

	p := &Pass{
		engine:  e,
		id:      runID,
		label:   label,
		rng:     rng,
		persist: persist,
		records: records,
		events:  events,
	}

	if track != nil {
		track(p)
	}

	events.Emit(otel.Event{Kind: otel.KindFilterStart, Range: rangeText, Total: len(records), Msg: label})
	logging.Debug("Filter pass started", "run", runID, "range", rangeText, "records", len(records))

	p.setPhase(scheduler.StatePlanning)
	planned, err := e.plan(ctx, records, rng)
	interrupted := false
	if err != nil {
		if ctx.Err() == nil {
			return nil, err
		}
		// Nothing is applied; the all-visible plan only gives the run its length.
		logging.Info("Filter pass cancelled while planning", "run", runID)
		planned = visibility.Result{Plan: visibility.ShowAll(records).Plan}
		interrupted = true
	}
	p.planned = planned

	if !interrupted {
		events.Emit(otel.Event{
			Kind:  otel.KindFilterPlan,
			Count: planned.Counts.Visible,
			Total: planned.Counts.Total,
			Range: rangeText,
			Extra: map[string]any{
				"out_of_range": planned.Counts.OutOfRange,
				"invalid_date": planned.Counts.InvalidDate,
				"repaired":     len(planned.Repaired),
			},
		})
	}

	// Repaired keys are already written into the records, so they are
	// persisted even when the pass itself gets cancelled.
	if len(planned.Repaired) > 0 && e.cfg.Repairs != nil {
		if err := e.cfg.Repairs.SaveRepairs(context.WithoutCancel(ctx), records, planned.Repaired); err != nil {
			logging.Warn("Failed to persist repaired date keys", "run", runID, "error", err)
			events.Fail(otel.KindStoreError, err, "save repairs")
		}
	}

	sinks := progress.Multi(progress.NewEventSink(events), &p.tracker)
	for _, s := range e.cfg.Sinks {
		sinks.Add(s)
	}
	sinks.OnError = func(s progress.Sink, event string, err error) {
		events.Fail(otel.KindSinkError, err, fmt.Sprintf("%T %s", s, event))
	}

	run, err := scheduler.New(records, planned.Plan, scheduler.Options{
		ChunkSize:       e.cfg.ChunkSize,
		InlineThreshold: e.cfg.InlineThreshold,
		Yielder:         e.cfg.Yielder,
		Sink:            sinks,
		Events:          e.cfg.Events,
		RunID:           runID,
	})
	if err != nil {
		return nil, err
	}
	if interrupted {
		run.Cancel()
	}
	p.run = run
	return p, nil
}

func (e *Engine) plan(ctx context.Context, records []*record.Record, rng *daterange.Range) (visibility.Result, error) {
	if rng == nil {
		return visibility.ShowAll(records), nil
	}
	return e.cfg.Planner.Plan(ctx, records, *rng)
}

func (e *Engine) invalid(input string, err error) {
	logging.Warn("Rejected filter range", "input", input, "error", err)
	e.cfg.Events.Emit(otel.Event{
		Level: otel.LevelWarn,
		Kind:  otel.KindFilterInvalid,
		Comp:  "engine",
		Range: input,
		Err:   err.Error(),
	})
}

// notify delivers msg, containing any failure of the notifier.
func (e *Engine) notify(msg string) {
	if e.cfg.Notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("Notifier failed", "msg", msg, "error", r)
		}
	}()
	e.cfg.Notifier.Notify(msg)
}

// publish delivers a summary, containing any failure of the sink.
func (e *Engine) publish(sum aggregate.Summary) {
	if e.cfg.Aggregates == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("Aggregate sink failed", "error", r)
		}
	}()
	e.cfg.Aggregates.Publish(sum)
}
