package ui

import "github.com/charmbracelet/lipgloss"

// Styles contains pre-computed lipgloss styles for all UI components.
type Styles struct {
	Header    lipgloss.Style
	Logo      lipgloss.Style
	Status    lipgloss.Style
	InputArea lipgloss.Style
	Footer    lipgloss.Style

	UserLabel      lipgloss.Style
	UserMessage    lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemMessage  lipgloss.Style
	ErrorMessage   lipgloss.Style

	// Route badges
	LocalBadge    lipgloss.Style
	RemoteBadge   lipgloss.Style
	FallbackBadge lipgloss.Style
	ErrorBadge    lipgloss.Style

	Spinner   lipgloss.Style
	Timestamp lipgloss.Style
}

// DefaultStyles returns the default palette.
func DefaultStyles() Styles {
	badge := lipgloss.NewStyle().Padding(0, 1).Bold(true)
	return Styles{
		Header: lipgloss.NewStyle().
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240")),
		Logo:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Status: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		InputArea: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")),
		Footer: lipgloss.NewStyle().Padding(0, 1),

		UserLabel:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		UserMessage:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		AssistantLabel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		SystemMessage:  lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("244")),
		ErrorMessage:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),

		LocalBadge:    badge.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("82")),
		RemoteBadge:   badge.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("39")),
		FallbackBadge: badge.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214")),
		ErrorBadge:    badge.Foreground(lipgloss.Color("255")).Background(lipgloss.Color("196")),

		Spinner:   lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
		Timestamp: lipgloss.NewStyle().Faint(true),
	}
}

// RouteBadge picks the badge style for a route id.
func (s Styles) RouteBadge(route string) lipgloss.Style {
	switch route {
	case "local_simple", "local_rag":
		return s.LocalBadge
	case "local_fallback":
		return s.FallbackBadge
	case "error":
		return s.ErrorBadge
	default:
		return s.RemoteBadge
	}
}
