package ui

import "github.com/charmbracelet/bubbles/key"

// Key bindings
var keys = struct {
	Quit      key.Binding
	Down      key.Binding
	Up        key.Binding
	Top       key.Binding
	Bottom    key.Binding
	Filter    key.Binding
	Preset    key.Binding
	Clear     key.Binding
	Cancel    key.Binding
	Recompute key.Binding
	Summary   key.Binding
	Debug     key.Binding
}{
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Down:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/k", "move")),
	Up:        key.NewBinding(key.WithKeys("k", "up")),
	Top:       key.NewBinding(key.WithKeys("g", "home")),
	Bottom:    key.NewBinding(key.WithKeys("G", "end")),
	Filter:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "range")),
	Preset:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "preset")),
	Clear:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
	Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	Recompute: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stats")),
	Summary:   key.NewBinding(key.WithKeys("S")),
	Debug:     key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "debug")),
}
