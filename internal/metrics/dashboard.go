package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Dashboard provides formatted session metrics for TUI display.
type Dashboard struct {
	collector *Collector
	styles    DashboardStyles
	width     int
}

// DashboardStyles defines the styling for the dashboard.
type DashboardStyles struct {
	Border    lipgloss.Style
	Header    lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Success   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
}

// NewDashboard creates a dashboard renderer.
func NewDashboard(collector *Collector) *Dashboard {
	return &Dashboard{
		collector: collector,
		width:     80,
		styles:    defaultDashboardStyles(),
	}
}

func defaultDashboardStyles() DashboardStyles {
	return DashboardStyles{
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")),
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
		Value: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")),
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("82")),
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")),
		Highlight: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")),
	}
}

// SetWidth sets the dashboard width.
func (d *Dashboard) SetWidth(w int) {
	d.width = w
}

// Render returns the bordered metrics panel.
func (d *Dashboard) Render() string {
	stats := d.collector.GetSessionStats()

	var content strings.Builder
	content.WriteString(d.styles.Header.Render("SESSION"))
	content.WriteString("\n")

	row1 := fmt.Sprintf("%s %s │ %s %s │ %s %s",
		d.styles.Label.Render("Messages:"),
		d.styles.Value.Render(fmt.Sprintf("%d", stats.RequestCount)),
		d.styles.Label.Render("Answered:"),
		d.formatSuccessRate(successRate(stats)),
		d.styles.Label.Render("Latency:"),
		d.styles.Value.Render(fmt.Sprintf("%.2fs avg", avgLatencySeconds(stats))),
	)
	content.WriteString(row1)
	content.WriteString("\n")

	row2 := fmt.Sprintf("%s %s │ %s %s │ %s",
		d.styles.Label.Render("Local:"),
		d.styles.Highlight.Render(fmt.Sprintf("%.0f%%", localRate(stats))),
		d.styles.Label.Render("Fallbacks:"),
		d.styles.Value.Render(fmt.Sprintf("%d", stats.FallbackCount)),
		d.renderRoutes(stats),
	)
	content.WriteString(row2)
	content.WriteString("\n")

	last := stats.LastRoute
	if last == "" {
		last = "none"
	} else {
		last = last + "/" + stats.LastReason
	}
	if len(last) > 36 {
		last = last[:33] + "..."
	}

	row3 := fmt.Sprintf("%s %s %s │ %s",
		d.styles.Label.Render("Last:"),
		d.styles.Value.Render(last),
		d.styles.Label.Render(sinceLabel(stats.LastEventTime)),
		d.renderEventActivity(),
	)
	content.WriteString(row3)

	return d.styles.Border.Width(d.width - 4).Render(content.String())
}

// RenderCompact returns a single-line summary.
func (d *Dashboard) RenderCompact() string {
	stats := d.collector.GetSessionStats()
	return fmt.Sprintf("[Session] %d msg │ %.0f%% local │ %d fallback │ %.2fs avg │ %s",
		stats.RequestCount,
		localRate(stats),
		stats.FallbackCount,
		avgLatencySeconds(stats),
		d.renderEventActivity(),
	)
}

func (d *Dashboard) formatSuccessRate(rate float64) string {
	formatted := fmt.Sprintf("%.0f%%", rate)
	if rate >= 90 {
		return d.styles.Success.Render(formatted)
	} else if rate >= 70 {
		return d.styles.Highlight.Render(formatted)
	}
	return d.styles.Error.Render(formatted)
}

// renderRoutes lists per-route counts, most used first.
func (d *Dashboard) renderRoutes(stats *SessionStats) string {
	if len(stats.ByRoute) == 0 {
		return d.styles.Label.Render("no routes yet")
	}

	routes := make([]string, 0, len(stats.ByRoute))
	for r := range stats.ByRoute {
		routes = append(routes, r)
	}
	sort.Slice(routes, func(i, j int) bool {
		if stats.ByRoute[routes[i]] != stats.ByRoute[routes[j]] {
			return stats.ByRoute[routes[i]] > stats.ByRoute[routes[j]]
		}
		return routes[i] < routes[j]
	})

	parts := make([]string, 0, len(routes))
	for _, r := range routes {
		parts = append(parts, fmt.Sprintf("%s:%d", r, stats.ByRoute[r]))
	}
	return d.styles.Value.Render(strings.Join(parts, " "))
}

// renderEventActivity renders the last five outcomes: ● local, ◆ remote, ✗ failed.
func (d *Dashboard) renderEventActivity() string {
	events := d.collector.GetRecentEvents(5)

	activity := make([]string, 5)
	for i := 0; i < 5; i++ {
		switch {
		case i >= len(events):
			activity[i] = "○"
		case events[i].Failed():
			activity[i] = "✗"
		case events[i].Local():
			activity[i] = "●"
		default:
			activity[i] = "◆"
		}
	}
	return strings.Join(activity, "")
}

func successRate(s *SessionStats) float64 {
	if s.RequestCount == 0 {
		return 100
	}
	return float64(s.SuccessCount) / float64(s.RequestCount) * 100
}

func localRate(s *SessionStats) float64 {
	if s.RequestCount == 0 {
		return 0
	}
	return float64(s.LocalRequests) / float64(s.RequestCount) * 100
}

func avgLatencySeconds(s *SessionStats) float64 {
	if s.RequestCount == 0 {
		return 0
	}
	return float64(s.TotalLatencyMs) / float64(s.RequestCount) / 1000.0
}

func sinceLabel(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	elapsed := time.Since(t)
	switch {
	case elapsed < time.Second:
		return "(now)"
	case elapsed < time.Minute:
		return fmt.Sprintf("(%.0fs)", elapsed.Seconds())
	default:
		return fmt.Sprintf("(%.0fm)", elapsed.Minutes())
	}
}
