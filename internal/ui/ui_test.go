package ui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/switchboard/internal/memory"
	"github.com/normanking/switchboard/internal/metrics"
	"github.com/normanking/switchboard/internal/router"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TEST DOUBLES
// ═══════════════════════════════════════════════════════════════════════════════

type fakeBackend struct {
	mu       sync.Mutex
	result   router.Result
	err      error
	block    bool
	messages []string
	users    []string
}

func (f *fakeBackend) Respond(ctx context.Context, message, userID string) (router.Result, error) {
	f.mu.Lock()
	f.messages = append(f.messages, message)
	f.users = append(f.users, userID)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return router.Result{}, ctx.Err()
	}
	return f.result, f.err
}

type fakeHistory struct {
	turns    []memory.Turn
	getErr   error
	clearErr error
	cleared  []string
}

func (f *fakeHistory) GetHistory(ctx context.Context, userID string) ([]memory.Turn, error) {
	return f.turns, f.getErr
}

func (f *fakeHistory) Clear(ctx context.Context, userID string) error {
	f.cleared = append(f.cleared, userID)
	return f.clearErr
}

// ═══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

func newTestModel(t *testing.T, cfg Config) Model {
	t.Helper()
	cfg.MarkdownStyle = "notty"
	m, err := NewModel(cfg)
	require.NoError(t, err)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func typeAndSend(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

// collect runs cmd, expanding batches, and returns every message produced.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		out = append(out, collect(c)...)
	}
	return out
}

func find[T tea.Msg](msgs []tea.Msg) (T, bool) {
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// runSend sends text and feeds the backend's answer back into the model.
func runSend(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, cmd := typeAndSend(t, m, text)
	require.True(t, m.Pending())
	resp, ok := find[responseMsg](collect(cmd))
	require.True(t, ok, "no response produced")
	next, _ := m.Update(resp)
	return next.(Model)
}

// ═══════════════════════════════════════════════════════════════════════════════
// TESTS
// ═══════════════════════════════════════════════════════════════════════════════

func TestNewModelRequiresBackend(t *testing.T) {
	_, err := NewModel(Config{})
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestViewBeforeResize(t *testing.T) {
	m, err := NewModel(Config{Backend: &fakeBackend{}})
	require.NoError(t, err)
	assert.Equal(t, "Initializing...", m.View())
}

func TestSendShowsRouteAndAnswer(t *testing.T) {
	backend := &fakeBackend{result: router.Result{Route: router.RouteGroq, Reason: "kw_reasoning", Response: "because"}}
	m := newTestModel(t, Config{Backend: backend, UserID: "alice"})

	m = runSend(t, m, "  why is the sky blue?  ")

	assert.False(t, m.Pending())
	require.Len(t, m.Messages(), 2)
	assert.Equal(t, RoleUser, m.Messages()[0].Role)
	assert.Equal(t, "why is the sky blue?", m.Messages()[0].Content)

	reply := m.Messages()[1]
	assert.Equal(t, RoleAssistant, reply.Role)
	assert.Equal(t, "because", reply.Content)
	assert.Equal(t, "groq", reply.Route)
	assert.Equal(t, "kw_reasoning", reply.Reason)

	assert.Equal(t, []string{"why is the sky blue?"}, backend.messages)
	assert.Equal(t, []string{"alice"}, backend.users)
	assert.Contains(t, m.View(), "groq")
	assert.Empty(t, m.input.Value())
}

func TestEmptyInputIsIgnored(t *testing.T) {
	backend := &fakeBackend{}
	m := newTestModel(t, Config{Backend: backend})

	m, cmd := typeAndSend(t, m, "   ")
	assert.Nil(t, cmd)
	assert.False(t, m.Pending())
	assert.Empty(t, m.Messages())
}

func TestBackendErrorIsShown(t *testing.T) {
	backend := &fakeBackend{err: errors.New("boom")}
	m := newTestModel(t, Config{Backend: backend})

	m = runSend(t, m, "hello")

	require.Len(t, m.Messages(), 2)
	assert.Equal(t, RoleError, m.Messages()[1].Role)
	assert.Equal(t, "boom", m.Messages()[1].Content)
}

func TestSecondSendWhilePendingIsIgnored(t *testing.T) {
	backend := &fakeBackend{block: true}
	m := newTestModel(t, Config{Backend: backend})

	m, cmd := typeAndSend(t, m, "first")
	require.NotNil(t, cmd)
	m, cmd = typeAndSend(t, m, "second")

	assert.Nil(t, cmd)
	assert.Len(t, m.Messages(), 1)
	assert.Equal(t, "second", m.input.Value())
}

func TestCancelDiscardsLateResponse(t *testing.T) {
	backend := &fakeBackend{block: true}
	m := newTestModel(t, Config{Backend: backend})

	m, cmd := typeAndSend(t, m, "slow question")
	require.True(t, m.Pending())

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	assert.False(t, m.Pending())

	// The cancelled request unblocks and its answer arrives late.
	resp, ok := find[responseMsg](collect(cmd))
	require.True(t, ok)
	assert.ErrorIs(t, resp.err, context.Canceled)

	next, _ = m.Update(resp)
	m = next.(Model)
	require.Len(t, m.Messages(), 2)
	assert.Equal(t, RoleSystem, m.Messages()[1].Role)
	assert.Equal(t, "Request cancelled.", m.Messages()[1].Content)
}

func TestRequestTimeout(t *testing.T) {
	backend := &fakeBackend{block: true}
	m := newTestModel(t, Config{Backend: backend, Timeout: 20 * time.Millisecond})

	m = runSend(t, m, "hello")

	require.Len(t, m.Messages(), 2)
	assert.Equal(t, RoleError, m.Messages()[1].Role)
	assert.Contains(t, m.Messages()[1].Content, "deadline exceeded")
}

func TestQuitKeys(t *testing.T) {
	tests := []struct {
		name string
		send func(Model) tea.Cmd
	}{
		{"ctrl+c", func(m Model) tea.Cmd {
			_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
			return cmd
		}},
		{"/quit", func(m Model) tea.Cmd {
			_, cmd := typeAndSend(t, m, "/quit")
			return cmd
		}},
		{"/exit", func(m Model) tea.Cmd {
			_, cmd := typeAndSend(t, m, "/EXIT")
			return cmd
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t, Config{Backend: &fakeBackend{}})
			cmd := tt.send(m)
			require.NotNil(t, cmd)
			assert.IsType(t, tea.QuitMsg{}, cmd())
		})
	}
}

func TestClearHistory(t *testing.T) {
	hist := &fakeHistory{}
	backend := &fakeBackend{result: router.Result{Route: router.RouteLocalSimple, Reason: "short_message", Response: "hi"}}
	m := newTestModel(t, Config{Backend: backend, History: hist, UserID: "bob"})
	m = runSend(t, m, "hello")
	require.Len(t, m.Messages(), 2)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	m = next.(Model)
	require.NotNil(t, cmd)
	next, _ = m.Update(cmd())
	m = next.(Model)

	assert.Equal(t, []string{"bob"}, hist.cleared)
	require.Len(t, m.Messages(), 1)
	assert.Equal(t, "Conversation history cleared.", m.Messages()[0].Content)
}

func TestClearCommandFailure(t *testing.T) {
	hist := &fakeHistory{clearErr: memory.ErrUnavailable}
	m := newTestModel(t, Config{Backend: &fakeBackend{}, History: hist, UserID: "bob"})

	m, cmd := typeAndSend(t, m, "/clear")
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	m = next.(Model)

	require.Len(t, m.Messages(), 1)
	assert.Equal(t, RoleError, m.Messages()[0].Role)
	assert.Contains(t, m.Messages()[0].Content, "could not clear history")
}

func TestInitRestoresHistory(t *testing.T) {
	now := time.Now()
	hist := &fakeHistory{turns: []memory.Turn{
		{Role: memory.RoleUser, Content: "earlier question", CreatedAt: now},
		{Role: memory.RoleAssistant, Content: "earlier answer", CreatedAt: now},
	}}
	m := newTestModel(t, Config{Backend: &fakeBackend{}, History: hist, UserID: "carol"})

	loaded, ok := find[historyLoadedMsg](collect(m.loadHistory()))
	require.True(t, ok)
	next, _ := m.Update(loaded)
	m = next.(Model)

	require.Len(t, m.Messages(), 3)
	assert.Equal(t, RoleUser, m.Messages()[0].Role)
	assert.Equal(t, RoleAssistant, m.Messages()[1].Role)
	assert.Equal(t, "Restored 2 previous turns.", m.Messages()[2].Content)
}

func TestInitSkipsHistoryForAnonymous(t *testing.T) {
	hist := &fakeHistory{turns: []memory.Turn{{Role: memory.RoleUser, Content: "x"}}}
	m := newTestModel(t, Config{Backend: &fakeBackend{}, History: hist})
	assert.Nil(t, m.loadHistory())
}

func TestHistoryUnavailableDegrades(t *testing.T) {
	hist := &fakeHistory{getErr: memory.ErrUnavailable}
	m := newTestModel(t, Config{Backend: &fakeBackend{}, History: hist, UserID: "dave"})

	next, _ := m.Update(historyLoadedMsg{err: hist.getErr})
	m = next.(Model)

	require.Len(t, m.Messages(), 1)
	assert.Equal(t, RoleSystem, m.Messages()[0].Role)
}

func TestDashboardToggle(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Record(metrics.RouteEvent{Route: "local_simple", Reason: "short_message", Latency: 100 * time.Millisecond})
	m := newTestModel(t, Config{Backend: &fakeBackend{}, Collector: collector})
	before := m.viewport.Height

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	m = next.(Model)
	assert.True(t, m.showDashboard)
	assert.Contains(t, m.View(), "SESSION")
	assert.Less(t, m.viewport.Height, before)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	m = next.(Model)
	assert.False(t, m.showDashboard)
	assert.Equal(t, before, m.viewport.Height)
}

func TestDashboardToggleWithoutCollector(t *testing.T) {
	m := newTestModel(t, Config{Backend: &fakeBackend{}})
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.False(t, next.(Model).showDashboard)
}

func TestRouteBadgeStyles(t *testing.T) {
	s := DefaultStyles()
	tests := []struct {
		route string
		want  string
	}{
		{"local_simple", s.LocalBadge.Render("x")},
		{"local_rag", s.LocalBadge.Render("x")},
		{"local_fallback", s.FallbackBadge.Render("x")},
		{"error", s.ErrorBadge.Render("x")},
		{"gemini", s.RemoteBadge.Render("x")},
	}
	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			assert.Equal(t, tt.want, s.RouteBadge(tt.route).Render("x"))
		})
	}
}
