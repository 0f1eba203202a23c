// Package aggregate computes summary statistics over the entries a filter
// left visible.
package aggregate

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/abelbrown/rangefilter/internal/daterange"
	"github.com/abelbrown/rangefilter/internal/record"
)

// Summary describes a visible record set.
type Summary struct {
	Records       int                      `json:"records" yaml:"records"`
	DistinctDays  int                      `json:"distinct_days" yaml:"distinct_days"`
	First         daterange.Key            `json:"first,omitempty" yaml:"first,omitempty"`
	Last          daterange.Key            `json:"last,omitempty" yaml:"last,omitempty"`
	LongestStreak int                      `json:"longest_streak" yaml:"longest_streak"`
	CurrentStreak int                      `json:"current_streak" yaml:"current_streak"`
	ByMonth       []MonthCount             `json:"by_month,omitempty" yaml:"by_month,omitempty"`
	Weekday       [7]int                   `json:"weekday" yaml:"weekday"` // indexed by time.Weekday
	Metrics       map[string]MetricSummary `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// MonthCount is the number of records in one calendar month ("YYYY-MM").
type MonthCount struct {
	Month string `json:"month" yaml:"month"`
	Count int    `json:"count" yaml:"count"`
}

// MetricSummary describes one numeric field across the records that carry it.
type MetricSummary struct {
	Count  int     `json:"count" yaml:"count"`
	Sum    float64 `json:"sum" yaml:"sum"`
	Mean   float64 `json:"mean" yaml:"mean"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	StdDev float64 `json:"stddev" yaml:"stddev"` // sample; 0 for a single value
	Median float64 `json:"median" yaml:"median"` // lower median for even counts
}

// Sink receives a freshly computed summary.
type Sink interface {
	Publish(s Summary)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Summary)

// Publish implements Sink.
func (f SinkFunc) Publish(s Summary) { f(s) }

// Recompute summarizes visible. Records whose date key is not valid count
// towards Records and Metrics but not towards any day statistic. Nil
// records are ignored.
func Recompute(visible []*record.Record) Summary {
	var s Summary
	days := make(map[daterange.Key]struct{})
	months := make(map[string]int)
	values := make(map[string][]float64)

	for _, r := range visible {
		if r == nil {
			continue
		}
		s.Records++
		for name, v := range r.Metrics {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			values[name] = append(values[name], v)
		}
		if !r.DateKey.Valid() {
			continue
		}
		days[r.DateKey] = struct{}{}
		months[r.DateKey.Month()]++
		s.Weekday[r.DateKey.Weekday()]++
	}

	if len(days) > 0 {
		sorted := make([]daterange.Key, 0, len(days))
		for k := range days {
			sorted = append(sorted, k)
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		s.DistinctDays = len(sorted)
		s.First = sorted[0]
		s.Last = sorted[len(sorted)-1]
		s.LongestStreak, s.CurrentStreak = streaks(sorted)
	}

	if len(months) > 0 {
		s.ByMonth = make([]MonthCount, 0, len(months))
		for m, n := range months {
			s.ByMonth = append(s.ByMonth, MonthCount{Month: m, Count: n})
		}
		sort.Slice(s.ByMonth, func(i, j int) bool { return s.ByMonth[i].Month < s.ByMonth[j].Month })
	}

	if len(values) > 0 {
		s.Metrics = make(map[string]MetricSummary, len(values))
		for name, xs := range values {
			s.Metrics[name] = summarize(xs)
		}
	}
	return s
}

// streaks returns the longest run of consecutive days and the run ending on
// the latest day. days must be sorted and distinct.
func streaks(days []daterange.Key) (longest, current int) {
	run := 1
	longest = 1
	for i := 1; i < len(days); i++ {
		if daterange.DaysBetween(days[i-1], days[i]) == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest, run
}

func summarize(xs []float64) MetricSummary {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	m := MetricSummary{
		Count:  len(sorted),
		Sum:    floats.Sum(sorted),
		Mean:   stat.Mean(sorted, nil),
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		m.StdDev = stat.StdDev(sorted, nil)
	}
	return m
}
