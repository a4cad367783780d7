// Package data provides the SQLite access layer shared by conversation
// memory, the knowledge store's chunk metadata and the ingestion ledger.
// It uses modernc.org/sqlite for pure-Go, CGO-free database access.
package data

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed migrations/001_conversation_memory.sql
var conversationMemorySchema string

//go:embed migrations/002_knowledge_chunks.sql
var knowledgeChunksSchema string

//go:embed migrations/003_ingested_files.sql
var ingestedFilesSchema string

// Migration is a named, idempotent schema script.
type Migration struct {
	Name   string
	Schema string
}

// MemoryMigrations creates the conversation history table.
var MemoryMigrations = []Migration{
	{"conversation_memory", conversationMemorySchema},
}

// KnowledgeMigrations creates the chunk metadata and ingestion ledger tables.
var KnowledgeMigrations = []Migration{
	{"knowledge_chunks", knowledgeChunksSchema},
	{"ingested_files", ingestedFilesSchema},
}

// Store provides access to a SQLite database file.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at dbPath and runs the given
// migrations. The parent directory must be on a LOCAL filesystem; network
// paths are rejected to prevent SQLite corruption.
func Open(dbPath string, migrations []Migration) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	if err := validateLocalPath(dir); err != nil {
		return nil, fmt.Errorf("validate data directory: %w", err)
	}

	// busy_timeout is per connection, so it goes in the DSN rather than
	// relying on a one-off PRAGMA.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db, path: dbPath}

	if err := store.initPragmas(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize pragmas: %w", err)
	}

	if err := store.Migrate(migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// OpenMemory opens the conversation memory database.
func OpenMemory(dbPath string) (*Store, error) {
	return Open(dbPath, MemoryMigrations)
}

// OpenKnowledge opens the chunk metadata database inside dataDir.
func OpenKnowledge(dataDir string) (*Store, error) {
	return Open(filepath.Join(dataDir, "chunks.sqlite3"), KnowledgeMigrations)
}

// initPragmas configures SQLite for concurrent readers and a single writer.
func (s *Store) initPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",   // Write-Ahead Logging for concurrent reads
		"PRAGMA synchronous = NORMAL", // Durable at commit under WAL
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -16000", // 16MB cache (negative = KB)
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Migrate runs the given schema migrations in order.
// Every script is idempotent, so this is safe to call on each start.
func (s *Store) Migrate(migrations []Migration) error {
	for _, m := range migrations {
		if err := s.runMigration(m.Schema); err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
	}
	return nil
}

// runMigration executes a single migration script in one transaction.
func (s *Store) runMigration(schema string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for i, stmt := range splitSQL(schema) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("execute statement %d: %w\nSQL: %s", i+1, err, stmt)
			}
		}
		return nil
	})
}

// Health checks if the database connection is alive and responsive.
func (s *Store) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("health check returned unexpected value: %d", result)
	}
	return nil
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		// Still close below
		fmt.Fprintf(os.Stderr, "Warning: WAL checkpoint failed: %v\n", err)
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// BeginTx starts a new transaction with the given context and options.
func (s *Store) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}

// WithTx executes fn within a transaction.
// If fn returns an error the transaction is rolled back, otherwise committed.
func (s *Store) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// validateLocalPath ensures the path is on a local, writable filesystem.
// Network paths (SMB, NFS, etc.) can cause SQLite corruption.
func validateLocalPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}

	networkPrefixes := []string{
		"//",   // UNC paths (Windows)
		"\\\\", // UNC paths (Windows alternative)
		"/net/",
	}
	for _, prefix := range networkPrefixes {
		if strings.HasPrefix(absPath, prefix) {
			return fmt.Errorf("network path detected: %s (SQLite requires local filesystem)", absPath)
		}
	}

	testFile := filepath.Join(path, ".switchboard-write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		return fmt.Errorf("directory not writable: %w", err)
	}
	os.Remove(testFile)

	return nil
}

// splitSQL splits a multi-statement script on semicolons that end a line,
// skipping blank and comment lines.
func splitSQL(script string) []string {
	var statements []string
	var current strings.Builder

	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}

		current.WriteString(line)
		current.WriteByte('\n')

		if strings.HasSuffix(trimmed, ";") {
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
		}
	}

	if final := strings.TrimSpace(current.String()); final != "" {
		statements = append(statements, final)
	}
	return statements
}
