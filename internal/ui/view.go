package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ═══════════════════════════════════════════════════════════════════════════════
// VIEW
// ═══════════════════════════════════════════════════════════════════════════════

// View renders the full screen.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	sections := []string{m.headerView()}
	if m.showDashboard && m.dashboard != nil {
		sections = append(sections, m.dashboardView())
	}
	sections = append(sections, m.viewport.View(), m.statusLine(), m.inputView(), m.footerView())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) headerView() string {
	user := m.cfg.UserID
	if user == "" {
		user = "anonymous"
	}
	left := m.styles.Logo.Render("switchboard")
	right := m.styles.Status.Render("user: " + user)
	if m.dashboard != nil {
		right = m.styles.Status.Render(m.dashboard.RenderCompact()) + "  " + right
	}
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return m.styles.Header.Width(max(m.width, 0)).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) dashboardView() string {
	m.dashboard.SetWidth(m.width)
	return m.dashboard.Render()
}

func (m Model) statusLine() string {
	if !m.pending {
		return ""
	}
	return m.spinner.View() + m.styles.Status.Render(" routing...")
}

func (m Model) inputView() string {
	return m.styles.InputArea.Render(m.input.View())
}

func (m Model) footerView() string {
	return m.styles.Footer.Render(m.help.View(m.keys))
}

// layout sizes the viewport and input to the window.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	m.input.SetWidth(max(m.width-2, 10))
	m.help.Width = m.width

	used := lipgloss.Height(m.headerView()) +
		1 + // status line
		lipgloss.Height(m.inputView()) +
		lipgloss.Height(m.footerView())
	if m.showDashboard && m.dashboard != nil {
		used += lipgloss.Height(m.dashboardView())
	}

	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-used, 3)
}

// refresh re-renders the transcript and scrolls to the newest entry.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}
