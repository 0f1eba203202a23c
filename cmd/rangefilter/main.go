// Command rangefilter filters a journal by calendar date range.
//
// Usage:
//
//	rangefilter                  Interactive list (same as "rangefilter tui")
//	rangefilter apply <expr>     Apply a preset or START..END to the stored entries
//	rangefilter clear            Show every entry and forget the saved filter
//	rangefilter session          Print the saved filter
//	rangefilter stats            Summarize the visible entries
//	rangefilter seed             Insert demo entries
//	rangefilter events           JSONL event log viewer
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "rangefilter:", err)
		os.Exit(1)
	}
}
