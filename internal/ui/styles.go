package ui

import "github.com/charmbracelet/lipgloss"

// palette is the set of colors a theme assigns.
type palette struct {
	primary, secondary, muted, highlight, success, warn, danger lipgloss.Color
	text, bar, barAlt                                           lipgloss.Color
}

var palettes = map[string]palette{
	"dark": {
		primary:   "62",  // Purple
		secondary: "241", // Gray
		muted:     "240", // Darker gray
		highlight: "212", // Pink
		success:   "78",  // Green
		warn:      "214", // Amber
		danger:    "196",
		text:      "255",
		bar:       "236",
		barAlt:    "240",
	},
	"light": {
		primary:   "57",
		secondary: "243",
		muted:     "246",
		highlight: "162",
		success:   "28",
		warn:      "166",
		danger:    "160",
		text:      "235",
		bar:       "254",
		barAlt:    "251",
	},
}

// Colors used in the application.
var (
	colorPrimary   lipgloss.Color
	colorSecondary lipgloss.Color
	colorMuted     lipgloss.Color
	colorHighlight lipgloss.Color
	colorSuccess   lipgloss.Color
	colorWarn      lipgloss.Color
	colorDanger    lipgloss.Color
	colorText      lipgloss.Color
	colorBar       lipgloss.Color
	colorBarAlt    lipgloss.Color
)

var (
	SelectedItem     lipgloss.Style
	NormalItem       lipgloss.Style
	DateBadge        lipgloss.Style
	UndatedBadge     lipgloss.Style
	StatusBar        lipgloss.Style
	StatusBarKey     lipgloss.Style
	StatusBarText    lipgloss.Style
	NoticeText       lipgloss.Style
	ErrorStyle       lipgloss.Style
	HelpStyle        lipgloss.Style
	FilterBar        lipgloss.Style
	FilterBarPrompt  lipgloss.Style
	FilterBarText    lipgloss.Style
	FilterBarCount   lipgloss.Style
	ProgressLine     lipgloss.Style
	SummaryPanel     lipgloss.Style
	SummaryHeader    lipgloss.Style
	DebugPanel       lipgloss.Style
	DebugHeaderStyle lipgloss.Style
)

func init() { ApplyTheme("dark") }

// ApplyTheme switches every style to the named palette ("dark" or "light").
// Unknown names use dark. It returns the theme applied.
func ApplyTheme(name string) string {
	p, ok := palettes[name]
	if !ok {
		name, p = "dark", palettes["dark"]
	}
	colorPrimary, colorSecondary, colorMuted = p.primary, p.secondary, p.muted
	colorHighlight, colorSuccess, colorWarn = p.highlight, p.success, p.warn
	colorDanger, colorText, colorBar, colorBarAlt = p.danger, p.text, p.bar, p.barAlt
	buildStyles()
	return name
}

func buildStyles() {
	// SelectedItem style for the currently highlighted entry.
	SelectedItem = lipgloss.NewStyle().
		Bold(true).
		Foreground(colorText).
		Background(colorPrimary).
		Padding(0, 1)

	// NormalItem style for unselected entries.
	NormalItem = lipgloss.NewStyle().
		Foreground(colorText).
		Padding(0, 1)

	// DateBadge style for the entry's date column.
	DateBadge = lipgloss.NewStyle().
		Foreground(colorPrimary).
		Background(colorBar).
		Padding(0, 1).
		MarginRight(1)

	// UndatedBadge marks entries whose date could not be determined.
	UndatedBadge = DateBadge.Foreground(colorWarn)

	// StatusBar style for the bottom status bar.
	StatusBar = lipgloss.NewStyle().
		Foreground(colorText).
		Background(colorBar).
		Padding(0, 1)

	// StatusBarKey style for key hints in status bar.
	StatusBarKey = lipgloss.NewStyle().
		Foreground(colorHighlight).
		Bold(true)

	// StatusBarText style for descriptive text in status bar.
	StatusBarText = lipgloss.NewStyle().
		Foreground(colorSecondary)

	// NoticeText style for the end-of-run notice.
	NoticeText = lipgloss.NewStyle().
		Foreground(colorSuccess)

	// ErrorStyle for displaying errors.
	ErrorStyle = lipgloss.NewStyle().
		Foreground(colorDanger).
		Bold(true).
		Padding(0, 1)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
		Foreground(colorMuted).
		Padding(1, 2)

	// FilterBar style for the filter bar.
	FilterBar = lipgloss.NewStyle().
		Foreground(colorText).
		Background(colorBarAlt).
		Padding(0, 1)

	// FilterBarPrompt style for the "/" prompt.
	FilterBarPrompt = lipgloss.NewStyle().
		Foreground(colorHighlight).
		Bold(true)

	// FilterBarText style for the active filter label.
	FilterBarText = lipgloss.NewStyle().
		Foreground(colorText)

	// FilterBarCount style for the visible count.
	FilterBarCount = lipgloss.NewStyle().
		Foreground(colorSecondary)

	// ProgressLine style for the overlay shown while a pass applies.
	ProgressLine = lipgloss.NewStyle().
		Foreground(colorText).
		Padding(0, 1)

	// SummaryPanel style for the aggregate summary box.
	SummaryPanel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorPrimary).
		Padding(0, 1)

	// SummaryHeader style for headings inside the summary box.
	SummaryHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(colorHighlight)

	// DebugPanel style for the debug overlay.
	DebugPanel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorMuted).
		Padding(1, 2)

	// DebugHeaderStyle style for debug overlay section headers.
	DebugHeaderStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(colorHighlight)
}
