package ui

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/rangefilter/internal/daterange"
	"github.com/abelbrown/rangefilter/internal/engine"
	"github.com/abelbrown/rangefilter/internal/record"
	"github.com/abelbrown/rangefilter/internal/session"
	"github.com/abelbrown/rangefilter/internal/visibility"
)

// testRows returns n rows dated on consecutive days from start.
func testRows(start string, n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		dk := daterange.Key(start).AddDays(i)
		rows[i] = Row{
			Record: &record.Record{ID: fmt.Sprintf("e%03d", i), DateKey: dk, Handle: record.NewMemHandle(string(dk))},
			Title:  fmt.Sprintf("Entry %d", i),
		}
	}
	return rows
}

type fixture struct {
	app      App
	board    *Board
	sessions *session.Store
}

func newFixture(t *testing.T, chunk int) *fixture {
	t.Helper()
	board := NewBoard()
	sessions := session.NewStore(session.NewMemoryKV(), nil)
	eng := engine.New(engine.Config{
		Planner:    visibility.NewPlanner(visibility.DisplayDateRepairer{}),
		Sessions:   sessions,
		Notifier:   board,
		Aggregates: board,
		Clock:      daterange.FixedClock(time.Date(2025, 5, 7, 9, 0, 0, 0, time.UTC)),
		ChunkSize:  chunk,
	})
	app := NewApp(AppConfig{Engine: eng, Board: board, Context: context.Background()})
	app.ready = true
	app.width = 100
	app.height = 30
	return &fixture{app: app, board: board, sessions: sessions}
}

func send(t *testing.T, a App, msg tea.Msg) (App, tea.Cmd) {
	t.Helper()
	model, cmd := a.Update(msg)
	return model.(App), cmd
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// typeFilter opens the filter bar, types expr and submits it.
func typeFilter(t *testing.T, a App, expr string) (App, tea.Cmd) {
	t.Helper()
	a, _ = send(t, a, keyMsg("/"))
	if !a.filtering {
		t.Fatal("/ should open the filter bar")
	}
	a, _ = send(t, a, keyMsg(expr))
	return send(t, a, keyMsg("enter"))
}

// drain steps the running pass until it finishes, returning the frame count.
func drain(t *testing.T, a App) (App, int) {
	t.Helper()
	frames := 0
	for a.Running() {
		a, _ = send(t, a, FrameTick{RunID: a.pass.ID()})
		frames++
		if frames > 1000 {
			t.Fatal("pass never finished")
		}
	}
	return a, frames
}

func TestAppInit(t *testing.T) {
	called := false
	app := NewApp(AppConfig{LoadEntries: func() tea.Cmd {
		called = true
		return func() tea.Msg { return EntriesLoaded{} }
	}})

	if cmd := app.Init(); cmd == nil {
		t.Fatal("Init should return a command")
	}
	if !called {
		t.Error("Init should call LoadEntries")
	}
}

func TestAppInitNilLoadEntries(t *testing.T) {
	app := NewApp(AppConfig{})
	if cmd := app.Init(); cmd != nil {
		t.Error("Init should return nil when LoadEntries is nil")
	}
}

func TestEntriesLoadedRestoresSession(t *testing.T) {
	f := newFixture(t, 20)
	rng, _ := daterange.NewRange("2025-05-03", "2025-05-07")
	if err := f.sessions.Save(context.Background(), session.Session{Range: &rng, Label: "early May"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	a, _ := send(t, f.app, EntriesLoaded{Rows: testRows("2025-05-01", 10)})

	if a.Running() {
		t.Fatal("10 rows should apply inline")
	}
	if a.Label() != "early May" {
		t.Errorf("label = %q, want %q", a.Label(), "early May")
	}
	if n := len(a.visibleRows()); n != 5 {
		t.Errorf("visible rows = %d, want 5", n)
	}
	if f.board.Notice() != "Showing 5 of 10 entries (early May)" {
		t.Errorf("notice = %q", f.board.Notice())
	}
}

func TestEntriesLoadedError(t *testing.T) {
	f := newFixture(t, 20)
	a, _ := send(t, f.app, EntriesLoaded{Err: fmt.Errorf("database locked")})
	if a.err == nil || !strings.Contains(a.View(), "database locked") {
		t.Errorf("load error should be shown, got:\n%s", a.View())
	}
}

func TestChunkedPassStepsOncePerFrame(t *testing.T) {
	f := newFixture(t, 20)
	a, _ := send(t, f.app, EntriesLoaded{Rows: testRows("2025-01-01", 120)})

	a, cmd := typeFilter(t, a, "2025-01-01..2025-01-31")
	if !a.Running() {
		t.Fatal("120 rows should be applied in chunks")
	}
	if cmd == nil {
		t.Fatal("starting a chunked pass should schedule a frame")
	}
	if !strings.Contains(a.View(), "Filtering") {
		t.Errorf("progress overlay missing:\n%s", a.View())
	}

	a, frames := drain(t, a)
	if frames != 6 {
		t.Errorf("frames = %d, want 6", frames)
	}
	if n := len(a.visibleRows()); n != 31 {
		t.Errorf("visible rows = %d, want 31", n)
	}
	if got := f.board.Notice(); got != "Showing 31 of 120 entries (2025-01-01..2025-01-31)" {
		t.Errorf("notice = %q", got)
	}
	if s := f.sessions.Load(context.Background()); s == nil || s.Label != "2025-01-01..2025-01-31" {
		t.Errorf("session not saved: %+v", s)
	}
}

func TestEscCancelsAtChunkBoundary(t *testing.T) {
	f := newFixture(t, 20)
	a, _ := send(t, f.app, EntriesLoaded{Rows: testRows("2025-01-01", 120)})
	a, _ = typeFilter(t, a, "2025-03-01..2025-03-31")

	a, _ = send(t, a, FrameTick{RunID: a.pass.ID()})
	a, _ = send(t, a, keyMsg("esc"))
	if !a.Running() {
		t.Fatal("esc only requests cancellation")
	}
	a, _ = send(t, a, FrameTick{RunID: a.pass.ID()})

	if a.Running() {
		t.Fatal("pass should stop at the next chunk boundary")
	}
	if got := f.board.Notice(); got != "Filter cancelled after 1 of 6 chunks" {
		t.Errorf("notice = %q", got)
	}
	// The first chunk (Jan 1-20) was hidden, the rest was never touched.
	if n := len(a.visibleRows()); n != 100 {
		t.Errorf("visible rows = %d, want 100", n)
	}
	if f.sessions.Load(context.Background()) != nil {
		t.Error("cancelled pass must not save the session")
	}
}

func TestNewFilterAbortsRunningPass(t *testing.T) {
	f := newFixture(t, 20)
	a, _ := send(t, f.app, EntriesLoaded{Rows: testRows("2025-01-01", 120)})
	a, _ = typeFilter(t, a, "2025-01-01..2025-01-10")
	first := a.pass.ID()
	a, _ = send(t, a, FrameTick{RunID: first})

	a, _ = typeFilter(t, a, "2025-04-01..2025-04-30")
	if a.pass == nil || a.pass.ID() == first {
		t.Fatal("second filter should start a new pass")
	}

	// A tick scheduled for the aborted pass is ignored.
	before := a.pass.Percent()
	a, cmd := send(t, a, FrameTick{RunID: first})
	if cmd != nil || a.pass.Percent() != before {
		t.Error("stale frame tick should be ignored")
	}

	a, _ = drain(t, a)
	if n := len(a.visibleRows()); n != 30 {
		t.Errorf("visible rows = %d, want 30", n)
	}
}

func TestInvalidRangeShowsError(t *testing.T) {
	f := newFixture(t, 20)
	a, _ := send(t, f.app, EntriesLoaded{Rows: testRows("2025-05-01", 10)})
	a, _ = typeFilter(t, a, "2025-13-01..2025-05-01")

	if a.err == nil {
		t.Fatal("malformed range should set an error")
	}
	if !daterange.IsValidation(a.err) {
		t.Errorf("expected validation error, got %v", a.err)
	}
	if n := len(a.visibleRows()); n != 10 {
		t.Errorf("rejected filter must not hide rows, visible = %d", n)
	}
	if !strings.Contains(a.View(), "Error:") {
		t.Error("error bar missing from view")
	}
}

func TestPresetCycleAndClear(t *testing.T) {
	f := newFixture(t, 20)
	a, _ := send(t, f.app, EntriesLoaded{Rows: testRows("2025-05-01", 10)})

	a, _ = send(t, a, keyMsg("p"))
	if a.Label() != string(daterange.PresetToday) {
		t.Errorf("first preset label = %q", a.Label())
	}
	if n := len(a.visibleRows()); n != 1 {
		t.Errorf("today should show 1 row, got %d", n)
	}

	a, _ = send(t, a, keyMsg("p"))
	if a.Label() != string(daterange.PresetYesterday) {
		t.Errorf("second preset label = %q", a.Label())
	}

	a, _ = send(t, a, keyMsg("c"))
	if a.Label() != engine.AllLabel {
		t.Errorf("label after clear = %q", a.Label())
	}
	if n := len(a.visibleRows()); n != 10 {
		t.Errorf("clear should show all rows, got %d", n)
	}
	if f.sessions.Load(context.Background()) != nil {
		t.Error("clear should forget the session")
	}
}

func TestSummaryKey(t *testing.T) {
	f := newFixture(t, 20)
	rows := testRows("2025-05-01", 4)
	rows[0].Record.Metrics = map[string]float64{"mood": 4}
	a, _ := send(t, f.app, EntriesLoaded{Rows: rows})

	a, _ = send(t, a, keyMsg("s"))
	if f.board.Summary() == nil || f.board.Summary().Records != 4 {
		t.Fatalf("summary = %+v", f.board.Summary())
	}
	view := a.View()
	if !strings.Contains(view, "Summary") || !strings.Contains(view, "mood") {
		t.Errorf("summary panel missing:\n%s", view)
	}

	a, _ = send(t, a, keyMsg("S"))
	if strings.Contains(a.View(), "Summary") {
		t.Error("S should hide the summary panel")
	}
}

func TestNavigationSkipsHiddenRows(t *testing.T) {
	f := newFixture(t, 20)
	a, _ := send(t, f.app, EntriesLoaded{Rows: testRows("2025-05-01", 10)})
	a, _ = typeFilter(t, a, "2025-05-04..2025-05-06")

	a, _ = send(t, a, keyMsg("G"))
	if a.Cursor() != 2 {
		t.Errorf("G should move to the last visible row, got %d", a.Cursor())
	}
	a, _ = send(t, a, keyMsg("j"))
	if a.Cursor() != 2 {
		t.Errorf("j at bottom should stay, got %d", a.Cursor())
	}
	a, _ = send(t, a, keyMsg("g"))
	if a.Cursor() != 0 {
		t.Errorf("g should move to top, got %d", a.Cursor())
	}
	if strings.Contains(a.View(), "Entry 0") {
		t.Error("hidden rows must not be rendered")
	}
}

func TestArrowKeysShareBindingsWithLetters(t *testing.T) {
	f := newFixture(t, 20)
	a, _ := send(t, f.app, EntriesLoaded{Rows: testRows("2025-05-01", 5)})

	a, _ = send(t, a, tea.KeyMsg{Type: tea.KeyDown})
	a, _ = send(t, a, tea.KeyMsg{Type: tea.KeyDown})
	if a.Cursor() != 2 {
		t.Errorf("down twice: cursor=%d, want 2", a.Cursor())
	}
	a, _ = send(t, a, tea.KeyMsg{Type: tea.KeyUp})
	if a.Cursor() != 1 {
		t.Errorf("up: cursor=%d, want 1", a.Cursor())
	}
	a, _ = send(t, a, tea.KeyMsg{Type: tea.KeyEnd})
	if a.Cursor() != 4 {
		t.Errorf("end: cursor=%d, want 4", a.Cursor())
	}
	a, _ = send(t, a, tea.KeyMsg{Type: tea.KeyHome})
	if a.Cursor() != 0 {
		t.Errorf("home: cursor=%d, want 0", a.Cursor())
	}
}

func TestFilterBarEscClosesWithoutApplying(t *testing.T) {
	f := newFixture(t, 20)
	a, _ := send(t, f.app, EntriesLoaded{Rows: testRows("2025-05-01", 10)})
	a, _ = send(t, a, keyMsg("/"))
	a, _ = send(t, a, keyMsg("today"))
	a, _ = send(t, a, keyMsg("esc"))

	if a.filtering {
		t.Error("esc should close the filter bar")
	}
	if n := len(a.visibleRows()); n != 10 {
		t.Errorf("nothing should be applied, visible = %d", n)
	}
}

func TestQuitAbortsRunningPass(t *testing.T) {
	f := newFixture(t, 20)
	a, _ := send(t, f.app, EntriesLoaded{Rows: testRows("2025-01-01", 120)})
	a, _ = typeFilter(t, a, "this-year")

	a, cmd := send(t, a, keyMsg("q"))
	if cmd == nil {
		t.Fatal("q should return tea.Quit")
	}
	if a.Running() {
		t.Error("running pass should be aborted on quit")
	}
}
