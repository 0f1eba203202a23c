package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/abelbrown/rangefilter/internal/aggregate"
	"github.com/abelbrown/rangefilter/internal/engine"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the currently visible entries",
	Args:  cobra.NoArgs,
	RunE:  withEnv(runStats),
}

func init() {
	statsCmd.Flags().StringVar(&applyFormat, "format", "text", "output format: text, json, yaml")
}

func runStats(ctx context.Context, _ *cobra.Command, _ []string, e *env) error {
	records, err := e.store.Records(ctx)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}
	total, hidden, err := e.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count entries: %w", err)
	}

	sum := e.newEngine(engine.Config{}).Recompute(records)
	if applyFormat != "text" {
		return encode(os.Stdout, sum)
	}

	fmt.Printf("%d entries, %d hidden\n", total, hidden)
	if sess := e.sessionStore().Load(ctx); sess != nil {
		fmt.Printf("  filter: %s\n", sess.Label)
	}
	printSummary(os.Stdout, sum)
	return nil
}

// encode writes v as JSON or YAML per --format.
func encode(w io.Writer, v any) error {
	switch applyFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	return fmt.Errorf("unknown format %q", applyFormat)
}

func printSummary(w io.Writer, s aggregate.Summary) {
	fmt.Fprintf(w, "  %d visible, %d distinct days", s.Records, s.DistinctDays)
	if s.First != "" {
		fmt.Fprintf(w, " (%s..%s)", s.First, s.Last)
	}
	fmt.Fprintln(w)
	if s.DistinctDays > 0 {
		fmt.Fprintf(w, "  streak: longest %d, current %d\n", s.LongestStreak, s.CurrentStreak)
	}

	if len(s.ByMonth) > 0 {
		months := make([]string, len(s.ByMonth))
		for i, m := range s.ByMonth {
			months[i] = fmt.Sprintf("%s:%d", m.Month, m.Count)
		}
		fmt.Fprintf(w, "  months: %s\n", strings.Join(months, " "))
	}
	if s.DistinctDays > 0 {
		days := make([]string, 0, 7)
		for d, n := range s.Weekday {
			days = append(days, fmt.Sprintf("%s:%d", time.Weekday(d).String()[:3], n))
		}
		fmt.Fprintf(w, "  weekdays: %s\n", strings.Join(days, " "))
	}

	names := make([]string, 0, len(s.Metrics))
	for name := range s.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := s.Metrics[name]
		fmt.Fprintf(w, "  %-10s n=%d mean=%.2f median=%.2f sd=%.2f min=%.2f max=%.2f\n",
			name, m.Count, m.Mean, m.Median, m.StdDev, m.Min, m.Max)
	}
}
