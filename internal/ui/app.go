package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/rangefilter/internal/daterange"
	"github.com/abelbrown/rangefilter/internal/engine"
	"github.com/abelbrown/rangefilter/internal/logging"
	"github.com/abelbrown/rangefilter/internal/otel"
	"github.com/abelbrown/rangefilter/internal/record"
)

// AppConfig wires the App to the engine and its observability.
type AppConfig struct {
	Engine      *engine.Engine
	Board       *Board
	LoadEntries func() tea.Cmd
	Frame       time.Duration // interval between chunks; 0 means 16ms
	Ring        *otel.RingBuffer
	Events      *otel.Logger
	Context     context.Context
	ShowSummary bool
	Preset      string // preset applied at start when no session is stored
}

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT hold *store.Store. It receives entries via messages.
//
// A running pass is stepped once per FrameTick inside Update, so the list is
// only ever rendered between chunks.
type App struct {
	cfg   AppConfig
	ctx   context.Context
	board *Board

	rows    []Row
	records []*record.Record
	cursor  int // index into visible rows
	err     error
	width   int
	height  int
	ready   bool
	loading bool

	pass   *engine.Pass
	label  string
	preset string

	filtering bool
	input     textinput.Model
	spinner   spinner.Model
	bar       progress.Model

	debugVisible   bool
	summaryVisible bool
}

// NewApp creates a new App.
func NewApp(cfg AppConfig) App {
	ti := textinput.New()
	ti.Placeholder = "last-7-days or 2025-05-01..2025-05-31"
	ti.Prompt = ""
	ti.CharLimit = 64

	s := spinner.New()
	s.Spinner = spinner.Dot

	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))

	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	board := cfg.Board
	if board == nil {
		board = NewBoard()
	}
	if cfg.Frame <= 0 {
		cfg.Frame = 16 * time.Millisecond
	}

	return App{
		cfg:            cfg,
		ctx:            ctx,
		board:          board,
		label:          engine.AllLabel,
		input:          ti,
		spinner:        s,
		bar:            bar,
		summaryVisible: cfg.ShowSummary,
	}
}

// Init loads entries.
func (a App) Init() tea.Cmd {
	if a.cfg.LoadEntries != nil {
		return a.cfg.LoadEntries()
	}
	return nil
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if otel.TraceEnabled() {
		a.cfg.Events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindMsgReceived, Comp: "ui", Msg: fmt.Sprintf("%T", msg)})
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.bar.Width = max(10, min(40, msg.Width-30))
		a.input.Width = max(10, msg.Width-20)
		return a, nil

	case EntriesLoaded:
		a.loading = false
		if msg.Err != nil {
			a.err = msg.Err
			return a, nil
		}
		a.setRows(msg.Rows)
		return a.restore()

	case FrameTick:
		return a.step(msg)

	case spinner.TickMsg:
		if a.pass == nil {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	if a.filtering {
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) setRows(rows []Row) {
	a.rows = rows
	a.records = make([]*record.Record, len(rows))
	for i, r := range rows {
		a.records[i] = r.Record
	}
	a.clampCursor()
}

// restore re-applies the stored session, or the configured preset.
func (a App) restore() (tea.Model, tea.Cmd) {
	if a.cfg.Engine == nil {
		return a, nil
	}
	p, err := a.cfg.Engine.PrepareRestore(a.ctx, a.records)
	if err == nil && p == nil && a.cfg.Preset != "" {
		a.preset = a.cfg.Preset
		p, err = a.cfg.Engine.PrepareExpr(a.ctx, a.records, a.cfg.Preset)
	}
	return a.begin(p, err)
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.cfg.Events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindKeyPress, Comp: "ui", Msg: msg.String()})

	if a.filtering {
		return a.handleFilterKey(msg)
	}

	if a.err != nil {
		a.err = nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		if a.pass != nil {
			a.pass.Abort(a.ctx)
			a.pass = nil
		}
		return a, tea.Quit

	case key.Matches(msg, keys.Down):
		if a.cursor < len(a.visibleRows())-1 {
			a.cursor++
		}
		return a, nil

	case key.Matches(msg, keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil

	case key.Matches(msg, keys.Top):
		a.cursor = 0
		return a, nil

	case key.Matches(msg, keys.Bottom):
		if n := len(a.visibleRows()); n > 0 {
			a.cursor = n - 1
		}
		return a, nil

	case key.Matches(msg, keys.Filter):
		a.filtering = true
		a.input.SetValue("")
		return a, a.input.Focus()

	case key.Matches(msg, keys.Preset):
		a.preset = string(daterange.NextPreset(a.preset))
		return a.applyExpr(a.preset)

	case key.Matches(msg, keys.Clear):
		if a.cfg.Engine == nil {
			return a, nil
		}
		a.abortRunning()
		a.preset = ""
		p, err := a.cfg.Engine.PrepareClear(a.ctx, a.records)
		return a.begin(p, err)

	case key.Matches(msg, keys.Cancel):
		if a.pass != nil {
			a.pass.Cancel()
		}
		return a, nil

	case key.Matches(msg, keys.Recompute):
		if a.cfg.Engine != nil {
			a.cfg.Engine.Recompute(a.records)
			a.summaryVisible = true
		}
		return a, nil

	case key.Matches(msg, keys.Summary):
		a.summaryVisible = !a.summaryVisible
		return a, nil

	case key.Matches(msg, keys.Debug):
		a.debugVisible = !a.debugVisible
		return a, nil
	}

	return a, nil
}

func (a App) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		a.filtering = false
		a.input.Blur()
		return a, nil
	case tea.KeyEnter:
		expr := a.input.Value()
		a.filtering = false
		a.input.Blur()
		if daterange.IsPreset(expr) {
			a.preset = expr
		}
		return a.applyExpr(expr)
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a App) applyExpr(expr string) (tea.Model, tea.Cmd) {
	if a.cfg.Engine == nil {
		return a, nil
	}
	a.abortRunning()
	p, err := a.cfg.Engine.PrepareExpr(a.ctx, a.records, expr)
	return a.begin(p, err)
}

// abortRunning finishes the running pass as cancelled before another starts.
func (a *App) abortRunning() {
	if a.pass == nil {
		return
	}
	a.pass.Abort(a.ctx)
	a.pass = nil
}

// begin starts stepping p. Inline passes finish before the next render.
func (a App) begin(p *engine.Pass, err error) (tea.Model, tea.Cmd) {
	if err != nil {
		a.err = err
		return a, nil
	}
	if p == nil {
		return a, nil
	}
	a.label = p.Label()
	if p.Inline() {
		p.Step(a.ctx)
		a.finish(p)
		return a, nil
	}
	a.pass = p
	logging.Debug("Stepping filter pass", "run", p.ID(), "label", p.Label())
	return a, tea.Batch(a.spinner.Tick, a.tick(p.ID()))
}

func (a App) tick(runID string) tea.Cmd {
	return tea.Tick(a.cfg.Frame, func(time.Time) tea.Msg {
		return FrameTick{RunID: runID}
	})
}

// step applies one chunk of the running pass.
func (a App) step(msg FrameTick) (tea.Model, tea.Cmd) {
	if a.pass == nil || a.pass.ID() != msg.RunID {
		return a, nil // stale tick from an aborted pass
	}
	if !a.pass.Step(a.ctx) {
		return a, a.tick(msg.RunID)
	}
	a.finish(a.pass)
	a.pass = nil
	return a, nil
}

func (a *App) finish(p *engine.Pass) {
	logging.Debug("Filter pass finished in UI", "run", p.ID(), "state", p.State())
	a.clampCursor()
}

// visibleRows returns the rows whose handle is not hidden.
func (a App) visibleRows() []Row {
	out := make([]Row, 0, len(a.rows))
	for _, r := range a.rows {
		if r.Record == nil || r.Record.Handle == nil || !r.Record.Handle.Hidden() {
			out = append(out, r)
		}
	}
	return out
}

func (a *App) clampCursor() {
	n := len(a.visibleRows())
	if a.cursor >= n {
		a.cursor = n - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.debugVisible {
		return debugOverlay(a.cfg.Ring, a.width, a.height-1) + "\n" + debugStatusBar(a.width)
	}

	visible := a.visibleRows()

	header := RenderFilterBar(a.label, len(visible), len(a.rows), a.width, a.filtering, a.input.View())

	var overlay string
	if a.pass != nil {
		overlay = a.progressView()
	}

	var summary string
	if a.summaryVisible {
		summary = RenderSummary(a.board.Summary(), a.width)
	}

	var errorBar string
	if a.err != nil {
		errorBar = ErrorStyle.Width(a.width).Render("Error: "+a.err.Error()+" (press any key to dismiss)") + "\n"
	}

	// Header, status bar and optional sections each take their rendered height.
	used := 2 + lineCount(overlay) + lineCount(summary) + lineCount(errorBar)
	list := RenderList(visible, a.cursor, a.width, a.height-used)

	status := RenderStatusBar(a.cursor, len(visible), a.width, a.loading, a.board.Notice())

	return header + "\n" + list + overlay + summary + errorBar + status
}

func (a App) progressView() string {
	pct := a.pass.Percent()
	if pct < 0 {
		pct = 0
	}
	line := fmt.Sprintf("%s Filtering %s  %s", a.spinner.View(), a.pass.Label(), a.bar.ViewAs(float64(pct)/100))
	return ProgressLine.Width(a.width).Render(line) + "\n"
}

// Cursor returns the current cursor position (for testing).
func (a App) Cursor() int {
	return a.cursor
}

// Label returns the active filter label (for testing).
func (a App) Label() string {
	return a.label
}

// Running reports whether a pass is being stepped (for testing).
func (a App) Running() bool {
	return a.pass != nil
}
