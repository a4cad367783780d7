// Package ingestion loads documents into the knowledge store. It extracts
// text from supported files, splits it into fixed-size word windows and
// appends the windows under a "{source}:{filename}" label. A ledger of file
// digests lets repeated scans skip unchanged files.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/normanking/switchboard/internal/config"
	"github.com/normanking/switchboard/internal/knowledge"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CORE TYPES
// ═══════════════════════════════════════════════════════════════════════════════

// Outcome classifies what happened to one file.
type Outcome string

const (
	OutcomeIngested    Outcome = "ingested"
	OutcomeUnchanged   Outcome = "unchanged"
	OutcomeEmpty       Outcome = "empty"
	OutcomeUnsupported Outcome = "unsupported"
	OutcomeFailed      Outcome = "failed"
)

// FileResult is the per-file outcome of a run.
type FileResult struct {
	Path    string  `json:"path"`
	Source  string  `json:"source,omitempty"`
	Outcome Outcome `json:"outcome"`
	Chunks  int     `json:"chunks"`
	Error   string  `json:"error,omitempty"`

	err error
}

// Report summarizes one ingestion run.
type Report struct {
	Files    []FileResult  `json:"files"`
	Chunks   int           `json:"chunks"`
	Duration time.Duration `json:"duration"`
}

// Count returns the number of files with outcome o.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, f := range r.Files {
		if f.Outcome == o {
			n++
		}
	}
	return n
}

// Err joins the errors of every failed file, each prefixed with its path.
// It is nil when no file failed.
func (r *Report) Err() error {
	var errs []error
	for _, f := range r.Files {
		if f.Outcome != OutcomeFailed {
			continue
		}
		err := f.err
		if err == nil {
			err = errors.New(f.Error)
		}
		errs = append(errs, fmt.Errorf("%s: %w", f.Path, err))
	}
	return errors.Join(errs...)
}

// Sink is the part of the knowledge store ingestion writes to.
type Sink interface {
	AddChunks(ctx context.Context, source string, chunks []string) (int, error)
	IngestedDigest(ctx context.Context, path string) (string, bool, error)
	RecordIngested(ctx context.Context, f knowledge.IngestedFile) error
}

var _ Sink = (*knowledge.Store)(nil)

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ═══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultChunkSizeWords is the window size used when none is configured.
	DefaultChunkSizeWords = 500

	// DefaultSource is the source label prefix used when none is configured.
	DefaultSource = "local_docs"
)

// Config configures a Pipeline.
type Config struct {
	// Source prefixes every chunk's source label.
	Source string

	// ChunkSizeWords is the number of words per chunk.
	ChunkSizeWords int

	// Workers bounds parallel file extraction.
	Workers int

	// Force re-ingests files whose digest is already in the ledger.
	Force bool
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Source:         DefaultSource,
		ChunkSizeWords: DefaultChunkSizeWords,
		Workers:        runtime.NumCPU(),
	}
}

// ConfigFrom converts the application's ingestion section.
func ConfigFrom(c config.IngestionConfig) Config {
	cfg := DefaultConfig()
	if c.Source != "" {
		cfg.Source = c.Source
	}
	if c.ChunkSizeWords > 0 {
		cfg.ChunkSizeWords = c.ChunkSizeWords
	}
	if c.Workers > 0 {
		cfg.Workers = c.Workers
	}
	return cfg
}
