package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MESSAGE RENDERING
// ═══════════════════════════════════════════════════════════════════════════════

func newMarkdownRenderer(style string, width int) *glamour.TermRenderer {
	width = max(width, 20)
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil
	}
	return r
}

// renderMessages renders the whole transcript.
func (m Model) renderMessages() string {
	if len(m.messages) == 0 {
		return m.styles.SystemMessage.Render("No messages yet. Say hello.")
	}
	parts := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		parts = append(parts, m.renderMessage(msg))
	}
	return strings.Join(parts, "\n\n")
}

func (m Model) renderMessage(msg Message) string {
	ts := m.styles.Timestamp.Render(msg.Timestamp.Format("15:04"))

	switch msg.Role {
	case RoleUser:
		return fmt.Sprintf("%s %s\n%s", m.styles.UserLabel.Render("You"), ts, m.styles.UserMessage.Render(msg.Content))

	case RoleAssistant:
		header := m.styles.AssistantLabel.Render("Assistant") + " " + ts
		if msg.Route != "" {
			header += " " + m.styles.RouteBadge(msg.Route).Render(msg.Route)
			if msg.Reason != "" {
				header += " " + m.styles.Timestamp.Render(msg.Reason)
			}
		}
		if msg.Latency > 0 {
			header += " " + m.styles.Timestamp.Render(fmt.Sprintf("%.1fs", msg.Latency.Seconds()))
		}
		return header + "\n" + m.renderMarkdown(msg.Content)

	case RoleError:
		return m.styles.ErrorMessage.Render("✗ " + msg.Content)

	default:
		return m.styles.SystemMessage.Render(msg.Content)
	}
}

// renderMarkdown falls back to plain text when glamour is unavailable.
func (m Model) renderMarkdown(content string) string {
	if m.markdown == nil {
		return content
	}
	out, err := m.markdown.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}
