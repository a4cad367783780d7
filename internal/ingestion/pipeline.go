package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/normanking/switchboard/internal/ingestion/parsers"
	"github.com/normanking/switchboard/internal/knowledge"
	"github.com/normanking/switchboard/internal/logging"
	"github.com/normanking/switchboard/internal/metrics"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PIPELINE
// ═══════════════════════════════════════════════════════════════════════════════

// Pipeline ingests files and directories into a Sink. Extraction runs in
// parallel; writes to the sink happen one file at a time in path order so
// label assignment is deterministic.
type Pipeline struct {
	sink Sink
	cfg  Config
	log  *logging.Logger

	// runMu serializes runs so a scheduled scan never overlaps a manual one.
	runMu sync.Mutex
}

// Option is a functional option for configuring Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline's logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// NewPipeline creates a pipeline writing to sink.
func NewPipeline(sink Sink, cfg Config, opts ...Option) *Pipeline {
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	if cfg.ChunkSizeWords <= 0 {
		cfg.ChunkSizeWords = DefaultChunkSizeWords
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	p := &Pipeline{
		sink: sink,
		cfg:  cfg,
		log:  logging.Global().WithComponent("Ingestion"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// prepared is a file after extraction, ready to be written.
type prepared struct {
	result FileResult
	digest string
	chunks []string
}

// Ingest loads path, a file or a directory walked recursively. Per-file
// failures are reported in the Report; the error is reserved for an
// unreadable path or a cancelled context.
func (p *Pipeline) Ingest(ctx context.Context, path string) (*Report, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	start := time.Now()
	files, err := collectFiles(path)
	if err != nil {
		return nil, err
	}

	items := make([]prepared, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			items[i] = p.prepare(gctx, file)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingest %s: %w", path, err)
	}

	report := &Report{Files: make([]FileResult, 0, len(items))}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("ingest %s: %w", path, err)
		}
		res := p.commit(ctx, item)
		report.Chunks += res.Chunks
		report.Files = append(report.Files, res)
		metrics.IngestedFiles.WithLabelValues(string(res.Outcome)).Inc()
	}
	report.Duration = time.Since(start)

	p.log.Info("ingested %s: %d chunks, %d new, %d unchanged, %d failed in %s",
		path, report.Chunks, report.Count(OutcomeIngested), report.Count(OutcomeUnchanged),
		report.Count(OutcomeFailed), report.Duration.Round(time.Millisecond))
	return report, nil
}

// prepare reads, fingerprints and chunks one file. Nothing is written.
func (p *Pipeline) prepare(ctx context.Context, path string) prepared {
	item := prepared{result: FileResult{
		Path:   path,
		Source: p.cfg.Source + ":" + filepath.Base(path),
	}}

	parser, err := parsers.ForPath(path)
	if err != nil {
		item.result.Outcome = OutcomeUnsupported
		return item
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return item.fail(fmt.Errorf("read: %w", err))
	}

	sum := sha256.Sum256(raw)
	item.digest = hex.EncodeToString(sum[:])

	if !p.cfg.Force {
		known, ok, err := p.sink.IngestedDigest(ctx, path)
		if err != nil {
			return item.fail(err)
		}
		if ok && known == item.digest {
			item.result.Outcome = OutcomeUnchanged
			return item
		}
	}

	text, err := parser.Parse(raw)
	if err != nil {
		return item.fail(fmt.Errorf("parse %s: %w", parser.Format(), err))
	}
	item.chunks = ChunkWords(text, p.cfg.ChunkSizeWords)
	if len(item.chunks) == 0 {
		item.result.Outcome = OutcomeEmpty
	}
	return item
}

func (item prepared) fail(err error) prepared {
	item.result.Outcome = OutcomeFailed
	item.result.Error = err.Error()
	item.result.err = err
	return item
}

// commit appends the chunks and updates the ledger.
func (p *Pipeline) commit(ctx context.Context, item prepared) FileResult {
	res := item.result
	if res.Outcome != "" && res.Outcome != OutcomeEmpty {
		if res.Outcome == OutcomeFailed {
			p.log.Warn("skipping %s: %s", res.Path, res.Error)
		}
		return res
	}

	if len(item.chunks) > 0 {
		added, err := p.sink.AddChunks(ctx, res.Source, item.chunks)
		if err != nil {
			return item.fail(fmt.Errorf("add chunks: %w", err)).result
		}
		res.Chunks = added
		res.Outcome = OutcomeIngested
	}

	// Empty files are recorded too so they are not re-parsed every scan.
	err := p.sink.RecordIngested(ctx, knowledge.IngestedFile{
		Path:   res.Path,
		SHA256: item.digest,
		Source: res.Source,
		Chunks: res.Chunks,
	})
	if err != nil {
		p.log.Warn("ledger update failed for %s: %v", res.Path, err)
	}

	p.log.Debug("%s: %s (%d chunks)", res.Path, res.Outcome, res.Chunks)
	return res
}

// collectFiles returns the absolute paths of the regular files under root,
// sorted. Hidden files and directories are skipped during a walk.
func collectFiles(root string) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{abs}, nil
	}

	var files []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return nil
			}
			return err
		}
		if path != abs && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && parsers.Supported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}
