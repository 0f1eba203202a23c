package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/abelbrown/rangefilter/internal/daterange"
	"github.com/abelbrown/rangefilter/internal/logging"
	"github.com/abelbrown/rangefilter/internal/store"
)

var (
	seedCount int
	seedDays  int
	seedRand  int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert demo journal entries",
	Long: `Insert demo journal entries spread over the last --days days.

About one entry in ten is stored without a date key but with a parseable
display date, so the first filter pass repairs it. A few carry a display
date no parser understands and stay undated.`,
	Args: cobra.NoArgs,
	RunE: withEnv(runSeed),
}

func init() {
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 200, "number of entries")
	seedCmd.Flags().IntVar(&seedDays, "days", 90, "spread entries over this many past days")
	seedCmd.Flags().Int64Var(&seedRand, "seed", 0, "random seed (0 = time based)")
}

var seedTitles = []string{
	"Morning run", "Read before bed", "Long walk", "Team retro", "Cooked dinner",
	"Garden work", "Quiet day", "Visited family", "Deep work block", "Rainy afternoon",
}

var seedMoods = []string{"calm", "tired", "focused", "restless", "content"}

func runSeed(ctx context.Context, _ *cobra.Command, _ []string, e *env) error {
	if seedCount <= 0 {
		return fmt.Errorf("--count must be positive")
	}
	if seedDays <= 0 {
		seedDays = 1
	}
	src := seedRand
	if src == 0 {
		src = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(src))

	entries := make([]store.Entry, 0, seedCount)
	today := time.Now()
	for i := 0; i < seedCount; i++ {
		day := today.AddDate(0, 0, -rng.Intn(seedDays))
		en := store.Entry{
			ID:          uuid.NewString(),
			DateKey:     daterange.KeyFromTime(day),
			DisplayDate: day.Format("Jan 2, 2006"),
			Title:       fmt.Sprintf("%s (%s)", seedTitles[rng.Intn(len(seedTitles))], seedMoods[rng.Intn(len(seedMoods))]),
			Metrics: map[string]float64{
				"mood":  float64(1 + rng.Intn(5)),
				"words": float64(50 + rng.Intn(900)),
			},
			Created: day,
		}
		switch n := rng.Intn(40); {
		case n < 4:
			en.DateKey = ""
		case n == 4:
			en.DateKey = ""
			en.DisplayDate = "someday"
		}
		entries = append(entries, en)
	}

	inserted, err := e.store.SaveEntries(ctx, entries)
	if err != nil {
		return fmt.Errorf("save entries: %w", err)
	}
	logging.Info("Seeded entries", "inserted", inserted, "days", seedDays)
	fmt.Printf("Inserted %d entries over the last %d days.\n", inserted, seedDays)
	return nil
}
