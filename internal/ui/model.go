package ui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/normanking/switchboard/internal/metrics"
)

// ErrNoBackend is returned by NewModel when Config.Backend is nil.
var ErrNoBackend = errors.New("ui: backend is required")

// Model is the Bubble Tea model of the chat client.
type Model struct {
	cfg    Config
	keys   KeyMap
	styles Styles

	// ═══════════════════════════════════════════════════════════════════════════
	// COMPONENTS
	// ═══════════════════════════════════════════════════════════════════════════

	viewport  viewport.Model
	input     textarea.Model
	spinner   spinner.Model
	help      help.Model
	dashboard *metrics.Dashboard
	markdown  *glamour.TermRenderer

	// ═══════════════════════════════════════════════════════════════════════════
	// STATE
	// ═══════════════════════════════════════════════════════════════════════════

	messages      []Message
	pending       bool
	requestID     int
	cancel        context.CancelFunc
	showDashboard bool
	width         int
	height        int
	ready         bool
}

// NewModel creates the chat model.
func NewModel(cfg Config) (Model, error) {
	if cfg.Backend == nil {
		return Model{}, ErrNoBackend
	}
	if cfg.MarkdownStyle == "" {
		cfg.MarkdownStyle = "auto"
	}

	vp := viewport.New(0, 0) // sized on the first WindowSizeMsg

	ti := textarea.New()
	ti.Placeholder = "Type a message... (Enter to send, /clear, /quit)"
	ti.Focus()
	ti.CharLimit = 8000
	ti.SetHeight(3)
	ti.ShowLineNumbers = false
	ti.KeyMap.InsertNewline.SetEnabled(false)

	styles := DefaultStyles()
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	m := Model{
		cfg:      cfg,
		keys:     DefaultKeyMap(),
		styles:   styles,
		viewport: vp,
		input:    ti,
		spinner:  sp,
		help:     help.New(),
	}
	if cfg.Collector != nil {
		m.dashboard = metrics.NewDashboard(cfg.Collector)
	}
	return m, nil
}

// Init loads the stored conversation and starts the cursor blinking.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.loadHistory())
}

// Messages returns the transcript.
func (m Model) Messages() []Message {
	return m.messages
}

// Pending reports whether a request is in flight.
func (m Model) Pending() bool {
	return m.pending
}
