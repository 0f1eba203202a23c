package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/rangefilter/internal/aggregate"
	"github.com/abelbrown/rangefilter/internal/daterange"
	"github.com/abelbrown/rangefilter/internal/otel"
	"github.com/abelbrown/rangefilter/internal/progress"
	"github.com/abelbrown/rangefilter/internal/record"
	"github.com/abelbrown/rangefilter/internal/scheduler"
	"github.com/abelbrown/rangefilter/internal/session"
	"github.com/abelbrown/rangefilter/internal/visibility"
)

type notices struct {
	mu  sync.Mutex
	got []string
}

func (n *notices) Notify(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, msg)
}

func (n *notices) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.got...)
}

type harness struct {
	engine   *Engine
	sessions *session.Store
	kv       *session.MemoryKV
	notices  *notices
	recorder *progress.Recorder
	ring     *otel.RingBuffer
	events   *otel.Logger
	summary  *aggregate.Summary
}

func newHarness(t *testing.T, opts ...func(*Config)) *harness {
	t.Helper()
	h := &harness{
		kv:       session.NewMemoryKV(),
		notices:  &notices{},
		recorder: &progress.Recorder{},
		ring:     otel.NewRingBuffer(512),
		events:   otel.NewNullLogger(),
	}
	h.events.SetRingBuffer(h.ring)
	t.Cleanup(h.events.Close)
	h.sessions = session.NewStore(h.kv, h.events)

	cfg := Config{
		Planner:    visibility.NewPlanner(visibility.DisplayDateRepairer{}),
		Sessions:   h.sessions,
		Notifier:   h.notices,
		Aggregates: aggregate.SinkFunc(func(s aggregate.Summary) { h.summary = &s }),
		Sinks:      []progress.Sink{h.recorder},
		Events:     h.events,
		Clock:      daterange.FixedClock(time.Date(2025, 5, 7, 12, 0, 0, 0, time.UTC)),
		Yielder:    scheduler.NoYield,
	}
	for _, o := range opts {
		o(&cfg)
	}
	h.engine = New(cfg)
	return h
}

// daily returns n records on consecutive days from start.
func daily(start string, n int) ([]*record.Record, []*record.MemHandle) {
	recs := make([]*record.Record, n)
	handles := make([]*record.MemHandle, n)
	for i := range recs {
		key := daterange.Key(start).AddDays(i)
		handles[i] = record.NewMemHandle(string(key))
		recs[i] = &record.Record{ID: fmt.Sprintf("e%03d", i), DateKey: key, Handle: handles[i]}
	}
	return recs, handles
}

func mustRange(t *testing.T, s, e string) daterange.Range {
	t.Helper()
	r, err := daterange.NewRange(s, e)
	require.NoError(t, err)
	return r
}

func TestApplyExampleScenario(t *testing.T) {
	h := newHarness(t)
	recs, handles := daily("2025-05-01", 10)
	ctx := context.Background()

	res, err := h.engine.Apply(ctx, recs, mustRange(t, "2025-05-03", "2025-05-07"), "early May")
	require.NoError(t, err)

	assert.True(t, res.Completed())
	assert.Equal(t, visibility.Counts{Visible: 5, OutOfRange: 5, Total: 10}, res.Planned)
	assert.Equal(t, "Showing 5 of 10 entries (early May)", res.Notice)
	assert.Equal(t, []string{res.Notice}, h.notices.all(), "exactly one end-of-run notice")
	assert.NotEmpty(t, res.RunID)

	for i, hd := range handles {
		assert.Equal(t, i < 2 || i > 6, hd.Hidden(), "record %d", i)
	}

	require.NotNil(t, h.summary)
	assert.Equal(t, 5, h.summary.Records)
	assert.Equal(t, daterange.Key("2025-05-03"), h.summary.First)
	assert.Equal(t, res.Summary, h.summary)

	sess := h.sessions.Load(ctx)
	require.NotNil(t, sess)
	assert.Equal(t, "early May", sess.Label)
	assert.Equal(t, "2025-05-03..2025-05-07", sess.Range.String())

	assert.Equal(t, []int{0, 100}, h.recorder.Percents, "inline pass is a single chunk")
}

func TestApplyChunkedProgress(t *testing.T) {
	h := newHarness(t)
	recs, _ := daily("2025-01-01", 120)

	res, err := h.engine.Apply(context.Background(), recs, mustRange(t, "2025-01-01", "2025-12-31"), "2025")
	require.NoError(t, err)

	assert.Equal(t, 6, res.Report.ChunksApplied)
	assert.Equal(t, 100, h.recorder.Last())
	require.NotNil(t, h.recorder.Completed)
	assert.Equal(t, 120, h.recorder.Completed.Visible)
}

func TestApplyRejectsMalformedRangeBeforeTouchingHandles(t *testing.T) {
	h := newHarness(t)
	recs, handles := daily("2025-05-01", 5)

	_, err := h.engine.Apply(context.Background(), recs, daterange.Range{Start: "2025-13-01", End: "2025-05-01"}, "bad")
	require.Error(t, err)

	var verr *daterange.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "start", verr.Field)

	for _, hd := range handles {
		assert.Zero(t, hd.Toggles())
	}
	assert.Empty(t, h.notices.all())
	assert.Nil(t, h.sessions.Load(context.Background()))

	h.events.Close()
	assert.Equal(t, 1, h.ring.Stats()[otel.KindFilterInvalid])
}

func TestApplyExprPreset(t *testing.T) {
	h := newHarness(t)
	recs, _ := daily("2025-04-20", 30)

	res, err := h.engine.ApplyExpr(context.Background(), recs, "last-7-days")
	require.NoError(t, err)
	assert.Equal(t, "2025-05-01..2025-05-07", res.Range.String())
	assert.Equal(t, 7, res.Planned.Visible)

	_, err = h.engine.ApplyExpr(context.Background(), recs, "next-week")
	assert.True(t, daterange.IsValidation(err))
}

func TestRepairIsWrittenBackAndPersisted(t *testing.T) {
	var saved []int
	h := newHarness(t, func(c *Config) {
		c.Repairs = repairFunc(func(_ context.Context, _ []*record.Record, idx []int) error {
			saved = append(saved, idx...)
			return nil
		})
	})
	recs, _ := daily("2025-05-01", 3)
	recs[1].DateKey = ""
	recs[1].Handle = record.NewMemHandle("May 2, 2025")

	res, err := h.engine.Apply(context.Background(), recs, mustRange(t, "2025-05-02", "2025-05-02"), "one day")
	require.NoError(t, err)

	assert.Equal(t, daterange.Key("2025-05-02"), recs[1].DateKey)
	assert.Equal(t, []int{1}, res.Repaired)
	assert.Equal(t, []int{1}, saved)
	assert.Equal(t, 1, res.Planned.Visible)
}

type repairFunc func(context.Context, []*record.Record, []int) error

func (f repairFunc) SaveRepairs(ctx context.Context, r []*record.Record, idx []int) error {
	return f(ctx, r, idx)
}

func TestStepDrivenPassAndCancel(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.ChunkSize = 10 })
	recs, handles := daily("2025-01-01", 100)
	ctx := context.Background()

	p, err := h.engine.Prepare(ctx, recs, mustRange(t, "2025-01-01", "2025-01-15"), "first half")
	require.NoError(t, err)
	assert.Equal(t, -1, p.Percent())
	assert.Equal(t, scheduler.StatePlanning, p.State())

	require.False(t, p.Step(ctx))
	require.False(t, p.Step(ctx))
	assert.Equal(t, 10, p.Percent())

	res := p.Abort(ctx)
	assert.Equal(t, scheduler.StateCancelled, res.Report.State)
	assert.Equal(t, "Filter cancelled after 2 of 10 chunks", res.Notice)
	assert.Nil(t, res.Summary, "cancelled passes do not recompute")
	assert.Nil(t, h.summary)
	assert.Nil(t, h.sessions.Load(ctx), "cancelled passes do not persist")

	for i, hd := range handles {
		if i < 20 {
			assert.Equal(t, 1, hd.Toggles(), "record %d", i)
		} else {
			assert.Zero(t, hd.Toggles(), "record %d", i)
		}
	}

	require.NotNil(t, h.recorder.Cancelled)
	assert.Equal(t, 20, h.recorder.Cancelled.Total)
	assert.Equal(t, 15, h.recorder.Cancelled.Visible)

	// Explicit recompute over the partially applied surface.
	sum := h.engine.Recompute(recs)
	assert.Equal(t, 95, sum.Records)
	require.NotNil(t, h.summary)
}

func TestNewApplyCancelsRunningOne(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once

	h := newHarness(t, func(c *Config) {
		c.ChunkSize = 10
		c.Yielder = scheduler.YieldFunc(func(ctx context.Context) error {
			once.Do(func() {
				close(started)
				<-ctx.Done()
			})
			return ctx.Err()
		})
	})
	recs, _ := daily("2025-01-01", 100)
	ctx := context.Background()
	jan := mustRange(t, "2025-01-01", "2025-01-31")
	feb := mustRange(t, "2025-02-01", "2025-02-28")

	first := make(chan Result, 1)
	go func() {
		res, _ := h.engine.Apply(ctx, recs, jan, "january")
		first <- res
	}()
	<-started

	r2, err := h.engine.Apply(ctx, recs, feb, "february")
	require.NoError(t, err)

	r1 := <-first
	assert.Equal(t, scheduler.StateCancelled, r1.Report.State)
	assert.Equal(t, 1, r1.Report.ChunksApplied)
	assert.True(t, r2.Completed())
	assert.Equal(t, 28, r2.Planned.Visible)

	sess := h.sessions.Load(ctx)
	require.NotNil(t, sess)
	assert.Equal(t, "february", sess.Label)
}

func TestNewApplyCancelsOneStillPlanning(t *testing.T) {
	planning := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	h := newHarness(t, func(c *Config) {
		c.ChunkSize = 5
		c.InlineThreshold = -1
		c.Planner = visibility.NewPlanner(visibility.RepairFunc(func(*record.Record) (daterange.Key, error) {
			once.Do(func() {
				close(planning)
				<-release
			})
			return "2025-01-01", nil
		}))
	})
	recs, handles := daily("2025-01-01", 10)
	recs[0].DateKey = ""
	ctx := context.Background()
	jan := mustRange(t, "2025-01-01", "2025-01-31")
	feb := mustRange(t, "2025-02-01", "2025-02-28")

	first := make(chan Result, 1)
	go func() {
		res, _ := h.engine.Apply(ctx, recs, jan, "january")
		first <- res
	}()
	<-planning
	firstPass := h.engine.Active()
	require.NotNil(t, firstPass)
	assert.Equal(t, scheduler.StatePlanning, firstPass.State())

	second := make(chan Result, 1)
	go func() {
		res, _ := h.engine.Apply(ctx, recs, feb, "february")
		second <- res
	}()

	// The second Apply replaces the first as the pending run before it can plan.
	require.Eventually(t, func() bool {
		return h.engine.Active() != firstPass
	}, time.Second, time.Millisecond)
	close(release)

	r1 := <-first
	r2 := <-second
	assert.Equal(t, scheduler.StateCancelled, r1.Report.State)
	assert.Zero(t, r1.Report.ChunksApplied)
	assert.Equal(t, "Filter cancelled after 0 of 2 chunks", r1.Notice)

	assert.True(t, r2.Completed())
	assert.Zero(t, r2.Planned.Visible)
	for _, hd := range handles {
		assert.Equal(t, 1, hd.Toggles(), "only the second pass touched handles")
		assert.True(t, hd.Hidden())
	}

	sess := h.sessions.Load(ctx)
	require.NotNil(t, sess)
	assert.Equal(t, "february", sess.Label)
}

func TestPassStateSequence(t *testing.T) {
	var h *harness
	var duringPlan []scheduler.State
	h = newHarness(t, func(c *Config) {
		c.ChunkSize = 10
		c.Planner = visibility.NewPlanner(visibility.RepairFunc(func(*record.Record) (daterange.Key, error) {
			if p := h.engine.Active(); p != nil {
				duringPlan = append(duringPlan, p.State())
			}
			return "2025-01-02", nil
		}))
	})
	recs, _ := daily("2025-01-01", 100)
	recs[1].DateKey = ""
	ctx := context.Background()
	rng := mustRange(t, "2025-01-01", "2025-01-31")

	res, err := h.engine.Apply(ctx, recs, rng, "january")
	require.NoError(t, err)
	assert.Equal(t, []scheduler.State{scheduler.StatePlanning}, duringPlan)
	assert.True(t, res.Completed())
	assert.Nil(t, h.engine.Active(), "finished passes are no longer active")

	p, err := h.engine.Prepare(ctx, recs, rng, "january")
	require.NoError(t, err)
	seen := []scheduler.State{p.State()}
	for !p.Step(ctx) {
		seen = append(seen, p.State())
	}
	seen = append(seen, p.State())

	assert.Equal(t, scheduler.StatePlanning, seen[0], "planned but not yet applying")
	assert.Equal(t, scheduler.StateApplying, seen[1])
	assert.Equal(t, scheduler.StateCompleted, seen[len(seen)-1])
	assert.Equal(t, scheduler.StateIdle, (&Pass{}).State(), "a pass starts idle")
}

func TestApplyWithCancelledContextAppliesNothing(t *testing.T) {
	h := newHarness(t)
	recs, handles := daily("2025-05-01", 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.engine.Apply(ctx, recs, mustRange(t, "2025-05-03", "2025-05-07"), "early May")
	require.NoError(t, err)
	assert.Equal(t, scheduler.StateCancelled, res.Report.State)
	assert.Zero(t, res.Report.RecordsApplied)
	for _, hd := range handles {
		assert.Zero(t, hd.Toggles())
	}
	assert.Nil(t, h.sessions.Load(context.Background()))
}

func TestEngineCancelStopsBlockingPass(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	h := newHarness(t, func(c *Config) {
		c.ChunkSize = 10
		c.Yielder = scheduler.YieldFunc(func(ctx context.Context) error {
			once.Do(func() {
				close(started)
				<-ctx.Done()
			})
			return ctx.Err()
		})
	})
	recs, _ := daily("2025-01-01", 100)

	done := make(chan Result, 1)
	go func() {
		res, _ := h.engine.Apply(context.Background(), recs, mustRange(t, "2025-01-01", "2025-01-31"), "january")
		done <- res
	}()
	<-started
	h.engine.Cancel()

	res := <-done
	assert.Equal(t, scheduler.StateCancelled, res.Report.State)
	assert.Equal(t, 1, res.Report.ChunksApplied)
}

func TestClearShowsEverythingAndForgetsSession(t *testing.T) {
	h := newHarness(t)
	recs, handles := daily("2025-05-01", 10)
	ctx := context.Background()

	_, err := h.engine.Apply(ctx, recs, mustRange(t, "2025-05-03", "2025-05-04"), "two days")
	require.NoError(t, err)
	require.NotNil(t, h.sessions.Load(ctx))

	res, err := h.engine.Clear(ctx, recs)
	require.NoError(t, err)
	assert.Nil(t, res.Range)
	assert.Equal(t, "Showing 10 of 10 entries (All entries)", res.Notice)
	assert.Nil(t, h.sessions.Load(ctx))
	for _, hd := range handles {
		assert.False(t, hd.Hidden())
	}
}

func TestRestore(t *testing.T) {
	h := newHarness(t)
	recs, handles := daily("2025-05-01", 10)
	ctx := context.Background()

	_, ok, err := h.engine.Restore(ctx, recs)
	require.NoError(t, err)
	assert.False(t, ok, "nothing stored")
	for _, hd := range handles {
		assert.Zero(t, hd.Toggles())
	}

	rng := mustRange(t, "2025-05-08", "2025-05-20")
	require.NoError(t, h.sessions.Save(ctx, session.Session{Range: &rng, Label: "later"}))

	res, ok, err := h.engine.Restore(ctx, recs)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, res.Planned.Visible)
	assert.Equal(t, "Showing 3 of 10 entries (later)", res.Notice)
}

func TestRestoreCorruptSessionIsIgnored(t *testing.T) {
	h := newHarness(t)
	recs, _ := daily("2025-05-01", 3)
	ctx := context.Background()
	require.NoError(t, h.kv.Put(ctx, session.Key, []byte(`{"range":{"start":"2025-02-31","end":"x"}}`)))

	_, ok, err := h.engine.Restore(ctx, recs)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRestoreNullRangeShowsAll(t *testing.T) {
	h := newHarness(t)
	recs, handles := daily("2025-05-01", 3)
	handles[0].SetHidden(true)
	ctx := context.Background()
	require.NoError(t, h.kv.Put(ctx, session.Key, []byte(`{"range":null,"label":""}`)))

	res, ok, err := h.engine.Restore(ctx, recs)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, AllLabel, res.Label)
	assert.False(t, handles[0].Hidden())
}

type brokenKV struct{ session.MemoryKV }

func (*brokenKV) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (*brokenKV) Put(context.Context, string, []byte) error         { return errors.New("quota exceeded") }
func (*brokenKV) Delete(context.Context, string) error              { return nil }

func TestSessionSaveFailureDoesNotFailPass(t *testing.T) {
	h := newHarness(t)
	h.engine.cfg.Sessions = session.NewStore(&brokenKV{}, nil)
	recs, _ := daily("2025-05-01", 4)

	res, err := h.engine.Apply(context.Background(), recs, mustRange(t, "2025-05-01", "2025-05-02"), "x")
	require.NoError(t, err)
	assert.True(t, res.Completed())
	require.Error(t, res.SaveErr)

	got := h.notices.all()
	require.Len(t, got, 2)
	assert.Equal(t, "Showing 2 of 4 entries (x)", got[0])
	assert.Contains(t, got[1], "quota exceeded")
}

func TestFailingCollaboratorsAreContained(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Notifier = NotifyFunc(func(string) { panic("toast layer gone") })
		c.Aggregates = aggregate.SinkFunc(func(aggregate.Summary) { panic("chart gone") })
		c.Sinks = append(c.Sinks, progress.Funcs{Progress: func(int) { panic("bar gone") }})
	})
	recs, handles := daily("2025-05-01", 60)
	handles[3].Dispose()

	res, err := h.engine.Apply(context.Background(), recs, mustRange(t, "2025-05-01", "2025-05-10"), "ten")
	require.NoError(t, err)
	assert.True(t, res.Completed())
	assert.Equal(t, 1, res.Report.ApplicationErrors)
	assert.Equal(t, "Showing 10 of 60 entries (ten), 1 could not be updated", res.Notice)
	assert.Equal(t, 100, h.recorder.Last())

	h.events.Close()
	stats := h.ring.Stats()
	assert.Equal(t, 1, stats[otel.KindApplyError])
	assert.Positive(t, stats[otel.KindSinkError])
	assert.Equal(t, 1, stats[otel.KindFilterComplete])
}

func TestPassEventsShareRunID(t *testing.T) {
	h := newHarness(t)
	recs, _ := daily("2025-05-01", 80)
	res, err := h.engine.Apply(context.Background(), recs, mustRange(t, "2025-05-01", "2025-05-31"), "may")
	require.NoError(t, err)
	h.events.Close()

	kinds := map[otel.EventKind]int{}
	for _, e := range h.ring.ForRun(res.RunID) {
		kinds[e.Kind]++
	}
	assert.Equal(t, 1, kinds[otel.KindFilterStart])
	assert.Equal(t, 1, kinds[otel.KindFilterPlan])
	assert.Equal(t, 4, kinds[otel.KindFilterChunk])
	assert.Equal(t, 1, kinds[otel.KindFilterComplete])
}
