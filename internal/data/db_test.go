package data

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, s *Store, name string) bool {
	t.Helper()
	var count int
	err := s.DB().QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name,
	).Scan(&count)
	require.NoError(t, err)
	return count == 1
}

func TestOpen(t *testing.T) {
	t.Run("creates database in nested directory", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "deep", "nested", "memory.sqlite3")

		store, err := OpenMemory(dbPath)
		require.NoError(t, err)
		defer store.Close()

		_, statErr := os.Stat(dbPath)
		assert.NoError(t, statErr, "database file not created")
		assert.Equal(t, dbPath, store.Path())
		assert.NoError(t, store.Health())
	})

	t.Run("idempotent migrations", func(t *testing.T) {
		dir := t.TempDir()

		first, err := OpenKnowledge(dir)
		require.NoError(t, err)
		require.NoError(t, first.Close())

		second, err := OpenKnowledge(dir)
		require.NoError(t, err)
		defer second.Close()

		assert.True(t, tableExists(t, second, "chunks"))
		assert.True(t, tableExists(t, second, "ingested_files"))
	})

	t.Run("memory schema only creates history", func(t *testing.T) {
		store, err := OpenMemory(filepath.Join(t.TempDir(), "m.sqlite3"))
		require.NoError(t, err)
		defer store.Close()

		assert.True(t, tableExists(t, store, "history"))
		assert.False(t, tableExists(t, store, "chunks"))
	})
}

func TestPragmas(t *testing.T) {
	store, err := OpenMemory(filepath.Join(t.TempDir(), "m.sqlite3"))
	require.NoError(t, err)
	defer store.Close()

	var mode string
	require.NoError(t, store.DB().QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, store.DB().QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)
}

func TestHealthAfterClose(t *testing.T) {
	store, err := OpenMemory(filepath.Join(t.TempDir(), "m.sqlite3"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.Error(t, store.Health())
}

func TestWithTx(t *testing.T) {
	store, err := OpenMemory(filepath.Join(t.TempDir(), "m.sqlite3"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	insert := func(tx *sql.Tx, content string) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO history (user_id, role, content, ts) VALUES ('u1', 'user', ?, 1.0)`, content)
		return err
	}
	count := func() int {
		var n int
		require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM history`).Scan(&n))
		return n
	}

	t.Run("commits on success", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx *sql.Tx) error { return insert(tx, "kept") })
		require.NoError(t, err)
		assert.Equal(t, 1, count())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.WithTx(ctx, func(tx *sql.Tx) error {
			if err := insert(tx, "discarded"); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, count())
	})

	t.Run("role check constraint", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO history (user_id, role, content, ts) VALUES ('u1', 'system', 'x', 1.0)`)
			return err
		})
		assert.Error(t, err)
	})
}

func TestSplitSQL(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   int
	}{
		{"empty", "", 0},
		{"comments only", "-- one\n-- two\n", 0},
		{"single statement", "CREATE TABLE a (x INT);", 1},
		{"multi line statement", "CREATE TABLE a (\n  x INT\n);\nCREATE INDEX i ON a(x);", 2},
		{"trailing without semicolon", "SELECT 1;\nSELECT 2", 2},
		{"embedded schema", knowledgeChunksSchema, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, splitSQL(tt.script), tt.want)
		})
	}
}
