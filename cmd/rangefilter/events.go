package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	eventsTail   int
	eventsFollow bool
	eventsKind   string
	eventsLevel  string
	eventsComp   string
	eventsRun    string
	eventsJSON   bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the JSONL event log",
	Args:  cobra.NoArgs,
	RunE:  runEvents,
}

func init() {
	f := eventsCmd.Flags()
	f.IntVarP(&eventsTail, "tail", "n", 50, "number of recent lines to show")
	f.BoolVarP(&eventsFollow, "follow", "f", false, "follow mode (like tail -f)")
	f.StringVar(&eventsKind, "kind", "", "filter by event kind prefix (e.g. 'filter')")
	f.StringVar(&eventsLevel, "level", "", "minimum level: debug, info, warn, error")
	f.StringVar(&eventsComp, "comp", "", "filter by component name")
	f.StringVar(&eventsRun, "run", "", "filter by filter pass run ID (prefix)")
	f.BoolVar(&eventsJSON, "json", false, "output raw JSON lines")
}

// eventRecord mirrors otel.Event for JSON decoding.
// Decoded from JSONL rather than importing otel so old logs stay readable
// when the event schema evolves.
type eventRecord struct {
	Time      time.Time      `json:"t"`
	Level     string         `json:"level"`
	Kind      string         `json:"kind"`
	Comp      string         `json:"comp"`
	SessionID string         `json:"session_id"`
	RunID     string         `json:"run"`
	DurMs     float64        `json:"dur_ms"`
	Count     int            `json:"count"`
	Total     int            `json:"total"`
	Percent   int            `json:"pct"`
	Chunk     int            `json:"chunk"`
	Range     string         `json:"range"`
	Err       string         `json:"err"`
	Msg       string         `json:"msg"`
	Extra     map[string]any `json:"extra"`
}

// levelRank returns a numeric rank for filtering (higher = more severe).
func levelRank(level string) int {
	switch level {
	case "debug":
		return 0
	case "info":
		return 1
	case "warn":
		return 2
	case "error":
		return 3
	default:
		return 0
	}
}

func runEvents(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logPath := cfg.EventLogPath()

	f, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("event log not found at %s (run rangefilter first to generate events): %w", logPath, err)
	}
	defer f.Close()

	out := cmd.OutOrStdout()
	for _, l := range readTailLines(f, eventsTail, matchEvent) {
		fmt.Fprintln(out, formatEvent(l.ev, l.raw))
	}
	if !eventsFollow {
		return nil
	}

	ctx := cmd.Context()
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		line = trimLine(line)
		if len(line) == 0 {
			continue
		}
		var ev eventRecord
		if json.Unmarshal(line, &ev) != nil {
			continue
		}
		if matchEvent(ev) {
			fmt.Fprintln(out, formatEvent(ev, line))
		}
	}
}

func matchEvent(ev eventRecord) bool {
	if eventsKind != "" && !strings.HasPrefix(ev.Kind, eventsKind) {
		return false
	}
	if eventsLevel != "" && levelRank(ev.Level) < levelRank(eventsLevel) {
		return false
	}
	if eventsComp != "" && ev.Comp != eventsComp {
		return false
	}
	if eventsRun != "" && !strings.HasPrefix(ev.RunID, eventsRun) {
		return false
	}
	return true
}

func formatEvent(ev eventRecord, raw []byte) string {
	if eventsJSON {
		return string(raw)
	}
	ts := ev.Time.Format("15:04:05.000")
	lvl := strings.ToUpper(ev.Level)
	if lvl == "" {
		lvl = "?"
	}

	parts := []string{fmt.Sprintf("%s %-5s [%-9s] %-20s", ts, lvl, ev.Comp, ev.Kind)}

	if ev.RunID != "" {
		parts = append(parts, "run="+shortID(ev.RunID))
	}
	if ev.Range != "" {
		parts = append(parts, "range="+ev.Range)
	}
	if ev.Msg != "" {
		parts = append(parts, "- "+ev.Msg)
	}
	if ev.Chunk > 0 {
		parts = append(parts, fmt.Sprintf("chunk=%d", ev.Chunk))
	}
	if ev.Total > 0 {
		parts = append(parts, fmt.Sprintf("n=%d/%d", ev.Count, ev.Total))
	} else if ev.Count > 0 {
		parts = append(parts, fmt.Sprintf("n=%d", ev.Count))
	}
	if ev.Percent > 0 {
		parts = append(parts, fmt.Sprintf("%d%%", ev.Percent))
	}
	if ev.DurMs > 0 {
		parts = append(parts, fmt.Sprintf("(%.*fms)", durPrecision(ev.DurMs), ev.DurMs))
	}
	if ev.Err != "" {
		parts = append(parts, "err="+ev.Err)
	}

	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type parsedLine struct {
	ev  eventRecord
	raw []byte
}

// readTailLines reads r and returns the last n lines matching the filter.
func readTailLines(r io.Reader, n int, match func(eventRecord) bool) []parsedLine {
	scanner := bufio.NewScanner(r)
	// Allow large lines (Extra maps can be big)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)

	if n <= 0 {
		return nil
	}
	ring := make([]parsedLine, 0, n)

	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev eventRecord
		if json.Unmarshal(raw, &ev) != nil {
			continue
		}
		if !match(ev) {
			continue
		}
		// scanner reuses the buffer
		rawCopy := make([]byte, len(raw))
		copy(rawCopy, raw)

		if len(ring) < n {
			ring = append(ring, parsedLine{ev: ev, raw: rawCopy})
		} else {
			copy(ring, ring[1:])
			ring[n-1] = parsedLine{ev: ev, raw: rawCopy}
		}
	}

	return ring
}

func trimLine(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func durPrecision(ms float64) int {
	if ms >= 100 {
		return 0
	}
	if ms >= 1 {
		return 1
	}
	return 2
}
