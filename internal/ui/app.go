package ui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/normanking/switchboard/internal/metrics"
)

// Config configures the chat client.
type Config struct {
	// Backend answers messages. Required.
	Backend Backend

	// History is optional. When set, previous turns are shown at startup and
	// ctrl+l clears them.
	History History

	// Collector feeds the session dashboard. It should be the collector the
	// router records into.
	Collector *metrics.Collector

	// UserID scopes conversation memory. Empty means anonymous.
	UserID string

	// Timeout bounds one request (0 = none).
	Timeout time.Duration

	// MarkdownStyle is a glamour style name; "auto" detects the terminal.
	MarkdownStyle string
}

// Run starts the chat client and blocks until the user quits or ctx ends.
func Run(ctx context.Context, cfg Config) error {
	m, err := NewModel(cfg)
	if err != nil {
		return err
	}

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
