package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/abelbrown/rangefilter/internal/aggregate"
)

// dateColumn is the width of the date badge text.
const dateColumn = 10

// RenderList renders the visible entries, scrolled so the cursor stays in view.
func RenderList(rows []Row, cursor int, width, height int) string {
	if height < 1 {
		height = 1
	}
	if len(rows) == 0 {
		return HelpStyle.Render("No entries match. Press 'c' to clear the filter.") + "\n"
	}

	offset := 0
	if cursor >= height {
		offset = cursor - height + 1
	}

	var b strings.Builder
	for i := offset; i < len(rows) && i < offset+height; i++ {
		b.WriteString(renderRow(rows[i], i == cursor, width))
		b.WriteString("\n")
	}
	return b.String()
}

func renderRow(r Row, selected bool, width int) string {
	date := ""
	if r.Record != nil {
		date = string(r.Record.DateKey)
	}
	badge := DateBadge
	if date == "" || r.Record == nil || !r.Record.DateKey.Valid() {
		badge = UndatedBadge
		if date == "" && r.Record != nil {
			date = r.Record.DisplayDate()
		}
		if date == "" {
			date = "undated"
		}
	}
	dateStr := badge.Render(runewidth.FillRight(runewidth.Truncate(date, dateColumn, "…"), dateColumn))

	titleWidth := width - lipgloss.Width(dateStr) - 2
	if titleWidth < 4 {
		titleWidth = 4
	}
	title := runewidth.Truncate(r.Title, titleWidth, "…")

	style := NormalItem
	if selected {
		style = SelectedItem
	}
	return dateStr + style.Render(title)
}

// RenderFilterBar renders the top bar: the active filter, or the input
// while the user is typing one.
func RenderFilterBar(label string, visible, total int, width int, editing bool, input string) string {
	prompt := FilterBarPrompt.Render("/")
	text := FilterBarText.Render(" " + label)
	if editing {
		text = " " + input
	}
	count := FilterBarCount.Render(fmt.Sprintf(" %d/%d", visible, total))

	content := prompt + text + count
	padding := width - lipgloss.Width(content) - 2 // -2 for bar padding
	if padding < 0 {
		padding = 0
	}
	return FilterBar.Width(width).Render(content + strings.Repeat(" ", padding))
}

// RenderStatusBar renders the bottom status bar with the last notice and
// key hints.
func RenderStatusBar(cursor, total int, width int, loading bool, notice string) string {
	var left string
	switch {
	case loading:
		left = " Loading... "
	case notice != "":
		left = " " + NoticeText.Render(notice) + " "
	case total > 0:
		left = fmt.Sprintf(" %d/%d ", cursor+1, total)
	default:
		left = " 0/0 "
	}

	keys := []string{
		StatusBarKey.Render("/") + StatusBarText.Render(":range"),
		StatusBarKey.Render("p") + StatusBarText.Render(":preset"),
		StatusBarKey.Render("c") + StatusBarText.Render(":clear"),
		StatusBarKey.Render("Esc") + StatusBarText.Render(":cancel"),
		StatusBarKey.Render("s") + StatusBarText.Render(":stats"),
		StatusBarKey.Render("D") + StatusBarText.Render(":debug"),
		StatusBarKey.Render("q") + StatusBarText.Render(":quit"),
	}
	keyHints := strings.Join(keys, " ")

	padding := width - lipgloss.Width(left) - lipgloss.Width(keyHints)
	if padding < 0 {
		padding = 0
	}
	return StatusBar.Width(width).Render(left + strings.Repeat(" ", padding) + keyHints)
}

// RenderSummary renders the aggregate box. Returns "" for a nil summary.
func RenderSummary(s *aggregate.Summary, width int) string {
	if s == nil {
		return ""
	}
	var lines []string
	lines = append(lines, SummaryHeader.Render("Summary"))
	lines = append(lines, fmt.Sprintf("%d entries on %d days", s.Records, s.DistinctDays))
	if s.First != "" {
		lines = append(lines, fmt.Sprintf("%s → %s  streak %d (longest %d)", s.First, s.Last, s.CurrentStreak, s.LongestStreak))
	}

	names := make([]string, 0, len(s.Metrics))
	for name := range s.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := s.Metrics[name]
		lines = append(lines, fmt.Sprintf("%-10s mean %.2f  median %.2f  min %.2f  max %.2f",
			runewidth.Truncate(name, 10, "…"), m.Mean, m.Median, m.Min, m.Max))
	}

	panelWidth := width - 2
	if panelWidth < 20 {
		panelWidth = 20
	}
	return SummaryPanel.Width(panelWidth).Render(strings.Join(lines, "\n")) + "\n"
}

// lineCount returns the number of lines s occupies when printed.
func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(s, "\n"), "\n") + 1
}
