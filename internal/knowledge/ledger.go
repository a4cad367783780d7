package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// IngestedFile is one row of the ingestion ledger.
type IngestedFile struct {
	Path       string    `json:"path"`
	SHA256     string    `json:"sha256"`
	Source     string    `json:"source"`
	Chunks     int       `json:"chunks"`
	IngestedAt time.Time `json:"ingested_at"`
}

// IngestedDigest returns the recorded digest for path. ok is false when the
// file was never ingested.
func (s *Store) IngestedDigest(ctx context.Context, path string) (digest string, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return "", false, ErrStoreNotInitialized
	}

	err = s.rows.DB().QueryRowContext(ctx,
		`SELECT sha256 FROM ingested_files WHERE path = ?`, path).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read ledger: %w", err)
	}
	return digest, true, nil
}

// RecordIngested upserts a ledger row.
func (s *Store) RecordIngested(ctx context.Context, f IngestedFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return ErrStoreNotInitialized
	}

	if f.IngestedAt.IsZero() {
		f.IngestedAt = time.Now().UTC()
	}
	_, err := s.rows.DB().ExecContext(ctx, `
		INSERT INTO ingested_files (path, sha256, source, chunks, ingested_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			sha256 = excluded.sha256,
			source = excluded.source,
			chunks = excluded.chunks,
			ingested_at = excluded.ingested_at`,
		f.Path, f.SHA256, f.Source, f.Chunks, f.IngestedAt.Format(time.RFC3339Nano))
	if err != nil {
		return &PersistenceError{Op: "record ingested file", Err: err}
	}
	return nil
}

// IngestedFiles lists the ledger ordered by path.
func (s *Store) IngestedFiles(ctx context.Context) ([]IngestedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, ErrStoreNotInitialized
	}

	rows, err := s.rows.DB().QueryContext(ctx,
		`SELECT path, sha256, source, chunks, ingested_at FROM ingested_files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var out []IngestedFile
	for rows.Next() {
		var f IngestedFile
		var at string
		if err := rows.Scan(&f.Path, &f.SHA256, &f.Source, &f.Chunks, &at); err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		f.IngestedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, f)
	}
	return out, rows.Err()
}
