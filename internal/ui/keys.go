package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard shortcuts available in the TUI.
// It implements the help.KeyMap interface for automatic help text generation.
type KeyMap struct {
	// Send sends the current input message
	Send key.Binding

	// Cancel abandons the in-flight request
	Cancel key.Binding

	// Quit exits the application
	Quit key.Binding

	// PageUp scrolls up one page
	PageUp key.Binding

	// PageDown scrolls down one page
	PageDown key.Binding

	// Dashboard toggles the session metrics panel
	Dashboard key.Binding

	// Clear clears the screen and the stored conversation
	Clear key.Binding

	// Help toggles the full help
	Help key.Binding
}

// DefaultKeyMap returns the default keyboard shortcuts.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel request"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Dashboard: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "session stats"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear history"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("f1", "help"),
		),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Dashboard, k.Help, k.Quit}
}

// FullHelp returns every binding, grouped by column.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Cancel, k.Quit},
		{k.PageUp, k.PageDown},
		{k.Dashboard, k.Clear, k.Help},
	}
}
