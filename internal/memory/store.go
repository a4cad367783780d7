// Package memory keeps a bounded per-user conversation history.
//
// Two backends share the Store interface: SQLiteStore (the default, one row
// per turn) and RedisStore (one list per user). Both prune to 2×max_turns
// entries after every write, in the same transaction or pipeline as the write.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/normanking/switchboard/internal/config"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one message in a user's history.
type Turn struct {
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultMaxTurns is used when a store is built with max_turns <= 0.
const DefaultMaxTurns = 6

// Store is per-user bounded conversation memory.
type Store interface {
	// AddTurn durably appends one turn, then prunes the user's history.
	AddTurn(ctx context.Context, userID string, role Role, content string) error

	// GetHistory returns at most 2×max_turns turns, oldest first.
	GetHistory(ctx context.Context, userID string) ([]Turn, error)

	// FormatForPrompt renders the history as a transcript block, or "" when empty.
	FormatForPrompt(ctx context.Context, userID string) (string, error)

	// Clear removes every turn for userID. Clearing an empty history is not an error.
	Clear(ctx context.Context, userID string) error

	// Close releases the backend connection.
	Close() error
}

// ═══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ═══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidRole is returned for roles other than user and assistant.
	ErrInvalidRole = errors.New("invalid role")

	// ErrUnavailable marks every persistence failure.
	ErrUnavailable = errors.New("conversation memory unavailable")
)

// UnavailableError wraps a backend failure for one memory operation.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("memory %s: %v", e.Op, e.Err)
}

// Unwrap exposes both ErrUnavailable and the underlying cause.
func (e *UnavailableError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UnavailableError{Op: op, Err: err}
}

func validateTurn(role Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w %q (want %q or %q)", ErrInvalidRole, role, RoleUser, RoleAssistant)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// FORMATTING
// ═══════════════════════════════════════════════════════════════════════════════

const (
	transcriptHeader = "--- Previous conversation ---"
	transcriptFooter = "--- End ---"
)

// FormatTurns renders turns as a delimited transcript. No turns yields "".
func FormatTurns(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(transcriptHeader)
	for _, t := range turns {
		speaker := "Assistant"
		if t.Role == RoleUser {
			speaker = "User"
		}
		sb.WriteString("\n")
		sb.WriteString(speaker)
		sb.WriteString(": ")
		sb.WriteString(t.Content)
	}
	sb.WriteString("\n")
	sb.WriteString(transcriptFooter)
	return sb.String()
}

func formatFor(ctx context.Context, s Store, userID string) (string, error) {
	turns, err := s.GetHistory(ctx, userID)
	if err != nil {
		return "", err
	}
	return FormatTurns(turns), nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// FACTORY
// ═══════════════════════════════════════════════════════════════════════════════

// New builds the store selected by cfg.Backend.
func New(cfg config.MemoryConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "sqlite":
		return NewSQLiteStore(cfg.DBPath, cfg.MaxTurns)
	case "redis":
		return NewRedisStore(RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			MaxTurns: cfg.MaxTurns,
		})
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Backend)
	}
}
