package ui

import (
	"time"

	"github.com/normanking/switchboard/internal/memory"
	"github.com/normanking/switchboard/internal/router"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CHAT ENTRIES
// ═══════════════════════════════════════════════════════════════════════════════

// Role identifies who produced a chat entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleError     Role = "error"
)

// Message is one entry in the chat transcript.
type Message struct {
	Role      Role
	Content   string
	Route     string
	Reason    string
	Latency   time.Duration
	Timestamp time.Time
}

// ═══════════════════════════════════════════════════════════════════════════════
// TEA MESSAGES
// ═══════════════════════════════════════════════════════════════════════════════

// responseMsg carries a router answer back into Update. id matches the
// request that produced it so cancelled requests can be discarded.
type responseMsg struct {
	id      int
	result  router.Result
	err     error
	latency time.Duration
}

// historyLoadedMsg carries the stored conversation at startup.
type historyLoadedMsg struct {
	turns []memory.Turn
	err   error
}

// historyClearedMsg reports the outcome of a clear request.
type historyClearedMsg struct {
	err error
}
