package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/normanking/switchboard/internal/logging"
	"github.com/normanking/switchboard/internal/memory"
)

// ═══════════════════════════════════════════════════════════════════════════════
// UPDATE
// ═══════════════════════════════════════════════════════════════════════════════

// Update handles incoming messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.markdown = newMarkdownRenderer(m.cfg.MarkdownStyle, msg.Width-4)
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}

	case responseMsg:
		return m.handleResponse(msg), nil

	case historyLoadedMsg:
		m.handleHistory(msg)
		return m, nil

	case historyClearedMsg:
		if msg.err != nil {
			m.appendMessage(Message{Role: RoleError, Content: "could not clear history: " + msg.err.Error()})
		} else {
			m.messages = nil
			m.appendMessage(Message{Role: RoleSystem, Content: "Conversation history cleared."})
		}
		return m, nil

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKey processes the global shortcuts. Anything unhandled goes to the
// input.
func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancelRequest()
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Cancel):
		if m.pending {
			m.cancelRequest()
			m.appendMessage(Message{Role: RoleSystem, Content: "Request cancelled."})
		}
		return m, nil, true

	case key.Matches(msg, m.keys.Send):
		next, cmd := m.submit()
		return next, cmd, true

	case key.Matches(msg, m.keys.Clear):
		return m, m.clearHistory(), true

	case key.Matches(msg, m.keys.Dashboard):
		if m.dashboard != nil {
			m.showDashboard = !m.showDashboard
			m.layout()
		}
		return m, nil, true

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		return m, nil, true

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil, true

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil, true
	}
	return m, nil, false
}

// submit sends the input to the backend or runs a slash command.
func (m Model) submit() (Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	switch strings.ToLower(text) {
	case "/quit", "/exit":
		m.cancelRequest()
		return m, tea.Quit
	case "/clear":
		m.input.Reset()
		return m, m.clearHistory()
	}

	if m.pending {
		return m, nil
	}
	m.input.Reset()
	m.appendMessage(Message{Role: RoleUser, Content: text})

	m.requestID++
	m.pending = true

	ctx := context.Background()
	var cancel context.CancelFunc
	if m.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	m.cancel = cancel

	return m, tea.Batch(m.spinner.Tick, m.send(ctx, cancel, m.requestID, text))
}

func (m Model) send(ctx context.Context, cancel context.CancelFunc, id int, text string) tea.Cmd {
	backend, user := m.cfg.Backend, m.cfg.UserID
	return func() tea.Msg {
		defer cancel()
		start := time.Now()
		res, err := backend.Respond(ctx, text, user)
		return responseMsg{id: id, result: res, err: err, latency: time.Since(start)}
	}
}

func (m Model) handleResponse(msg responseMsg) Model {
	if msg.id != m.requestID || !m.pending {
		return m
	}
	m.pending = false
	m.cancel = nil

	if msg.err != nil {
		m.appendMessage(Message{Role: RoleError, Content: msg.err.Error()})
		return m
	}
	m.appendMessage(Message{
		Role:    RoleAssistant,
		Content: msg.result.Response,
		Route:   string(msg.result.Route),
		Reason:  msg.result.Reason,
		Latency: msg.latency,
	})
	return m
}

func (m *Model) handleHistory(msg historyLoadedMsg) {
	if msg.err != nil {
		logging.Global().WithComponent("UI").Warn("load history: %v", msg.err)
		m.appendMessage(Message{Role: RoleSystem, Content: "Conversation memory unavailable; continuing without history."})
		return
	}
	if len(msg.turns) == 0 {
		return
	}

	restored := make([]Message, 0, len(msg.turns)+1)
	for _, t := range msg.turns {
		role := RoleUser
		if t.Role == memory.RoleAssistant {
			role = RoleAssistant
		}
		restored = append(restored, Message{Role: role, Content: t.Content, Timestamp: t.CreatedAt})
	}
	restored = append(restored, Message{
		Role:    RoleSystem,
		Content: fmt.Sprintf("Restored %d previous turns.", len(msg.turns)),
	})
	m.messages = append(restored, m.messages...)
	m.refresh()
}

func (m *Model) cancelRequest() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.pending {
		m.pending = false
		m.requestID++
	}
}

func (m Model) loadHistory() tea.Cmd {
	if m.cfg.History == nil || m.cfg.UserID == "" {
		return nil
	}
	h, user := m.cfg.History, m.cfg.UserID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		turns, err := h.GetHistory(ctx, user)
		return historyLoadedMsg{turns: turns, err: err}
	}
}

func (m Model) clearHistory() tea.Cmd {
	if m.cfg.History == nil || m.cfg.UserID == "" {
		return func() tea.Msg { return historyClearedMsg{} }
	}
	h, user := m.cfg.History, m.cfg.UserID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return historyClearedMsg{err: h.Clear(ctx, user)}
	}
}

func (m *Model) appendMessage(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	m.messages = append(m.messages, msg)
	m.refresh()
}
