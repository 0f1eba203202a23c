package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/spf13/cobra"

	"github.com/abelbrown/rangefilter/internal/engine"
	"github.com/abelbrown/rangefilter/internal/logging"
	rfprogress "github.com/abelbrown/rangefilter/internal/progress"
	"github.com/abelbrown/rangefilter/internal/scheduler"
	"github.com/abelbrown/rangefilter/internal/visibility"
)

var (
	applyFormat string
	applyQuiet  bool
	applyRate   float64
)

var applyCmd = &cobra.Command{
	Use:   "apply <preset|START..END>",
	Short: "Apply a date range filter to the stored entries",
	Long: `Apply a date range filter to the stored entries and save it as the session.

Presets: today, yesterday, last-7-days, this-week, last-30-days, this-month,
last-month, this-year.

Examples:
  rangefilter apply last-7-days
  rangefilter apply 2025-05-01..2025-05-31 --format json
  rangefilter apply 2025-05-03`,
	Args: cobra.ExactArgs(1),
	RunE: withEnv(runApply),
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Show every entry and forget the saved filter",
	Args:  cobra.NoArgs,
	RunE:  withEnv(runClear),
}

func init() {
	for _, c := range []*cobra.Command{applyCmd, clearCmd} {
		c.Flags().StringVar(&applyFormat, "format", "text", "output format: text, json, yaml")
		c.Flags().BoolVarP(&applyQuiet, "quiet", "q", false, "no progress bar")
		c.Flags().Float64Var(&applyRate, "rate", -1, "chunks per second (default from config, 0 = unpaced)")
	}
}

func runApply(ctx context.Context, _ *cobra.Command, args []string, e *env) error {
	eng, err := headlessEngine(e)
	if err != nil {
		return err
	}
	records, err := e.store.Records(ctx)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}
	res, err := eng.ApplyExpr(ctx, records, args[0])
	if err != nil {
		return err
	}
	return printResult(os.Stdout, res)
}

func runClear(ctx context.Context, _ *cobra.Command, _ []string, e *env) error {
	eng, err := headlessEngine(e)
	if err != nil {
		return err
	}
	records, err := e.store.Records(ctx)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}
	res, err := eng.Clear(ctx, records)
	if err != nil {
		return err
	}
	return printResult(os.Stdout, res)
}

// headlessEngine builds an engine that toggles the stored hidden flags,
// paced by a rate limiter, with a progress bar on stderr.
func headlessEngine(e *env) (*engine.Engine, error) {
	switch applyFormat {
	case "text", "json", "yaml":
	default:
		return nil, fmt.Errorf("unknown format %q", applyFormat)
	}

	rate := applyRate
	if rate < 0 {
		rate = float64(e.cfg.Filter.ChunksPerSecond)
	}

	sinks := []rfprogress.Sink{rfprogress.NewLogSink(logging.WithPrefix("apply"), "apply")}
	if !applyQuiet {
		sinks = append(sinks, newBarSink(os.Stderr))
	}

	return e.newEngine(engine.Config{
		Sinks:   sinks,
		Yielder: scheduler.NewRateYielder(rate),
	}), nil
}

// barSink draws a bubbles progress bar on a terminal line.
type barSink struct {
	w   io.Writer
	bar progress.Model
}

func newBarSink(w io.Writer) *barSink {
	return &barSink{w: w, bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))}
}

func (s *barSink) OnProgress(percent int) {
	fmt.Fprintf(s.w, "\r%s", s.bar.ViewAs(float64(percent)/100))
}

func (s *barSink) OnComplete(visibility.Counts) { fmt.Fprintln(s.w) }

func (s *barSink) OnCancelled(visibility.Counts) { fmt.Fprintln(s.w, " cancelled") }

// printResult writes res in the selected format.
func printResult(w io.Writer, res engine.Result) error {
	if applyFormat != "text" {
		return encode(w, res)
	}

	fmt.Fprintln(w, res.Notice)
	c := res.Report.Counts
	fmt.Fprintf(w, "  visible %d  out of range %d  undated %d\n", c.Visible, c.OutOfRange, c.InvalidDate)
	if len(res.Repaired) > 0 {
		fmt.Fprintf(w, "  repaired %d date keys\n", len(res.Repaired))
	}
	if res.Report.ApplicationErrors > 0 {
		fmt.Fprintf(w, "  %d entries could not be updated\n", res.Report.ApplicationErrors)
	}
	if res.Summary != nil {
		printSummary(w, *res.Summary)
	}
	fmt.Fprintf(w, "  %d chunks in %s\n", res.Report.ChunksApplied, res.Report.Duration.Round(1e6))
	if res.SaveErr != nil {
		fmt.Fprintf(w, "  warning: %s\n", strings.TrimSpace(res.SaveErr.Error()))
	}
	return nil
}
