package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/normanking/switchboard/internal/data"
	"github.com/normanking/switchboard/internal/logging"
	"github.com/normanking/switchboard/internal/metrics"
)

// SQLiteStore keeps history in the history table of its own database file.
// Every operation borrows a pooled connection; writes run in a transaction.
type SQLiteStore struct {
	db       *data.Store
	maxTurns int
	log      *logging.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the memory database at dbPath.
func NewSQLiteStore(dbPath string, maxTurns int) (*SQLiteStore, error) {
	db, err := data.OpenMemory(dbPath)
	if err != nil {
		return nil, unavailable("open", err)
	}
	return newSQLiteStore(db, maxTurns), nil
}

func newSQLiteStore(db *data.Store, maxTurns int) *SQLiteStore {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &SQLiteStore{
		db:       db,
		maxTurns: maxTurns,
		log:      logging.Global().WithComponent("Memory"),
	}
}

func (s *SQLiteStore) keep() int {
	return 2 * s.maxTurns
}

// AddTurn inserts the turn and prunes the user's history in one transaction.
func (s *SQLiteStore) AddTurn(ctx context.Context, userID string, role Role, content string) (err error) {
	defer func() { metrics.ObserveMemory("add_turn", err) }()

	if err := validateTurn(role); err != nil {
		return err
	}

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		ts := float64(time.Now().UnixNano()) / 1e9
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO history (user_id, role, content, ts) VALUES (?, ?, ?, ?)`,
			userID, string(role), content, ts,
		); err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM history WHERE user_id = ? AND id NOT IN (
				SELECT id FROM history WHERE user_id = ? ORDER BY id DESC LIMIT ?
			)`, userID, userID, s.keep(),
		); err != nil {
			return fmt.Errorf("prune history: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.Warn("add turn for %s failed: %v", userID, err)
	}
	return unavailable("add_turn", err)
}

// GetHistory returns the most recent turns, oldest first.
func (s *SQLiteStore) GetHistory(ctx context.Context, userID string) (turns []Turn, err error) {
	defer func() { metrics.ObserveMemory("get_history", err) }()

	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT id, role, content, ts FROM history
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?`, userID, s.keep())
	if err != nil {
		return nil, unavailable("get_history", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t    Turn
			role string
			ts   float64
		)
		if err := rows.Scan(&t.Seq, &role, &t.Content, &ts); err != nil {
			return nil, unavailable("get_history", err)
		}
		t.UserID = userID
		t.Role = Role(role)
		t.CreatedAt = time.Unix(0, int64(ts*1e9))
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("get_history", err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// FormatForPrompt implements Store.
func (s *SQLiteStore) FormatForPrompt(ctx context.Context, userID string) (string, error) {
	return formatFor(ctx, s, userID)
}

// Clear deletes all turns for userID.
func (s *SQLiteStore) Clear(ctx context.Context, userID string) (err error) {
	defer func() { metrics.ObserveMemory("clear", err) }()

	if _, err := s.db.DB().ExecContext(ctx, `DELETE FROM history WHERE user_id = ?`, userID); err != nil {
		return unavailable("clear", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
