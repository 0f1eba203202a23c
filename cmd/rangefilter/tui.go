package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/rangefilter/internal/engine"
	"github.com/abelbrown/rangefilter/internal/logging"
	"github.com/abelbrown/rangefilter/internal/record"
	"github.com/abelbrown/rangefilter/internal/ui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive entry list with range filtering",
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	return withEnv(tuiMain)(cmd, args)
}

func tuiMain(ctx context.Context, _ *cobra.Command, _ []string, e *env) error {
	if theme := ui.ApplyTheme(e.cfg.UI.Theme); theme != e.cfg.UI.Theme {
		logging.Warn("Unknown theme, using default", "theme", e.cfg.UI.Theme, "using", theme)
	}
	board := ui.NewBoard()
	eng := e.newEngine(engine.Config{
		Notifier:   board,
		Aggregates: board,
	})

	app := ui.NewApp(ui.AppConfig{
		Engine:      eng,
		Board:       board,
		LoadEntries: loadRows(ctx, e),
		Frame:       e.cfg.FrameInterval(),
		Ring:        e.ring,
		Events:      e.events,
		Context:     ctx,
		ShowSummary: e.cfg.UI.ShowSummary,
		Preset:      e.cfg.Filter.DefaultPreset,
	})

	program := tea.NewProgram(app, tea.WithAltScreen())

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})

	// Quit the program on SIGINT/SIGTERM.
	g.Go(func() error {
		select {
		case <-gctx.Done():
			logging.Info("Shutting down TUI", "reason", context.Cause(gctx))
			program.Quit()
		case <-done:
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

// loadRows reads entries from the store. Each row gets an in-memory handle:
// in the TUI the list itself is the surface, so hidden state is not written
// back to the database.
func loadRows(ctx context.Context, e *env) func() tea.Cmd {
	return func() tea.Cmd {
		return func() tea.Msg {
			entries, err := e.store.Entries(ctx)
			if err != nil {
				return ui.EntriesLoaded{Err: err}
			}
			rows := make([]ui.Row, len(entries))
			for i, en := range entries {
				rows[i] = ui.Row{
					Record: &record.Record{
						ID:      en.ID,
						DateKey: en.DateKey,
						Metrics: en.Metrics,
						Handle:  record.NewMemHandle(en.DisplayDate),
					},
					Title: en.Title,
				}
			}
			logging.Debug("Loaded entries", "count", len(rows))
			return ui.EntriesLoaded{Rows: rows}
		}
	}
}
