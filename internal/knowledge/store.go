// Package knowledge is the retrieval store: chunk vectors live in a chromem-go
// collection keyed by label, chunk metadata lives in SQLite under the same
// label, and a small JSON descriptor tracks capacity, count and dimension.
package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"github.com/normanking/switchboard/internal/data"
	"github.com/normanking/switchboard/internal/logging"
	"github.com/normanking/switchboard/internal/metrics"
)

const collectionName = "chunks"

// Chunk is one unit of ingested knowledge.
type Chunk struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Label      int       `json:"label"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChunkResult is a retrieved chunk and its cosine distance to the query.
type ChunkResult struct {
	Chunk
	Distance float64 `json:"distance"`
}

// Store is the knowledge store. AddChunks writes are serialized; queries run
// concurrently under a read lock.
type Store struct {
	mu sync.RWMutex

	dir       string
	inMemory  bool
	dimension int
	embedder  Embedder
	log       *logging.Logger

	meta  indexMeta
	rows  *data.Store
	db    *chromem.DB
	coll  *chromem.Collection
	ready bool
}

// Option configures Open.
type Option func(*Store)

// WithDimension fixes the embedding dimension. Zero asks the embedder. A
// non-empty index asks regardless and rejects an embedder that disagrees.
func WithDimension(d int) Option {
	return func(s *Store) { s.dimension = d }
}

// WithLogger sets the store's logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

// InMemoryIndex keeps vectors in memory only. Metadata still goes to SQLite.
func InMemoryIndex() Option {
	return func(s *Store) { s.inMemory = true }
}

// Open loads or creates the store in dir.
func Open(ctx context.Context, dir string, embedder Embedder, opts ...Option) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("knowledge store requires an embedder")
	}

	s := &Store{
		dir:      dir,
		embedder: embedder,
		log:      logging.Global().WithComponent("Knowledge"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &PersistenceError{Op: "create data dir", Err: err}
	}

	persisted, err := loadMeta(dir)
	if err != nil {
		return nil, &PersistenceError{Op: "load meta", Err: err}
	}

	// The embedder is asked for its dimension unless one was fixed for a
	// fresh index; a non-empty index is always checked against it.
	nonEmpty := persisted != nil && persisted.CurrentCount > 0
	if s.dimension == 0 || nonEmpty {
		sample, err := embedder.EmbedQuery(ctx, "dimension check")
		if err != nil {
			return nil, &EmbeddingError{Err: fmt.Errorf("detect dimension: %w", err)}
		}
		if s.dimension != 0 && s.dimension != len(sample) {
			return nil, fmt.Errorf("configured dimension %d, embedder has %d: %w",
				s.dimension, len(sample), ErrDimensionMismatch)
		}
		s.dimension = len(sample)
	}
	if s.dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", s.dimension)
	}
	if persisted != nil && persisted.Dimension != 0 && persisted.Dimension != s.dimension {
		return nil, fmt.Errorf("index has dimension %d, embedder has %d: %w",
			persisted.Dimension, s.dimension, ErrDimensionMismatch)
	}

	s.rows, err = data.OpenKnowledge(dir)
	if err != nil {
		return nil, &PersistenceError{Op: "open metadata", Err: err}
	}

	if s.inMemory {
		s.db = chromem.NewDB()
	} else {
		s.db, err = chromem.NewPersistentDB(filepath.Join(dir, "vectors"), false)
		if err != nil {
			s.rows.Close()
			return nil, &PersistenceError{Op: "open index", Err: err}
		}
	}

	// The collection's own embedding func is only a fallback; every document
	// and query is embedded before it reaches chromem.
	s.coll, err = s.db.GetOrCreateCollection(collectionName, nil, s.embedQuery)
	if err != nil {
		s.rows.Close()
		return nil, &PersistenceError{Op: "open collection", Err: err}
	}

	s.meta = indexMeta{MaxElements: MinCapacity, Dimension: s.dimension}
	if persisted != nil {
		s.meta.MaxElements = persisted.MaxElements
		s.meta.CurrentCount = persisted.CurrentCount
	}

	// Rows committed after the last descriptor write still own their labels.
	next, err := s.nextLabel(ctx)
	if err != nil {
		s.rows.Close()
		return nil, &PersistenceError{Op: "reconcile labels", Err: err}
	}
	if next > s.meta.CurrentCount {
		s.log.Warn("descriptor count %d behind metadata rows; advancing to %d", s.meta.CurrentCount, next)
		s.meta.CurrentCount = next
		s.meta.MaxElements = growCapacity(s.meta.MaxElements, next)
	}

	if err := saveMeta(dir, s.meta); err != nil {
		s.rows.Close()
		return nil, &PersistenceError{Op: "save meta", Err: err}
	}

	s.ready = true
	metrics.KnowledgeChunks.Set(float64(s.meta.CurrentCount))
	s.log.Info("opened %s: %d chunks, dimension %d, capacity %d",
		dir, s.meta.CurrentCount, s.dimension, s.meta.MaxElements)
	return s, nil
}

func (s *Store) embedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.embedder.EmbedQuery(ctx, text)
}

func (s *Store) nextLabel(ctx context.Context) (int, error) {
	var next int
	err := s.rows.DB().QueryRowContext(ctx, `SELECT COALESCE(MAX(label) + 1, 0) FROM chunks`).Scan(&next)
	return next, err
}

func labelID(label int) string {
	return strconv.Itoa(label)
}

// AddChunks embeds and stores chunks under source, returning how many were
// stored. Empty chunks (after trimming) are dropped and not counted.
//
// Embedding runs without holding the store lock, so queries proceed while a
// batch is being embedded. Label assignment and both writes are serialized.
func (s *Store) AddChunks(ctx context.Context, source string, chunks []string) (int, error) {
	if !s.isReady() {
		return 0, ErrStoreNotInitialized
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if t := strings.TrimSpace(c); t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return 0, nil
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, &EmbeddingError{Err: err}
	}
	if err := checkVectors(vectors, len(texts), s.dimension); err != nil {
		return 0, &EmbeddingError{Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Close may have run while the batch was embedding.
	if !s.ready {
		return 0, ErrStoreNotInitialized
	}

	start := s.meta.CurrentCount
	required := start + len(texts)
	capacity := growCapacity(s.meta.MaxElements, required)
	if capacity != s.meta.MaxElements {
		s.log.Info("growing capacity %d -> %d", s.meta.MaxElements, capacity)
	}

	var firstIndex int
	err = s.rows.DB().QueryRowContext(ctx,
		`SELECT COALESCE(MAX(chunk_index) + 1, 0) FROM chunks WHERE source = ?`, source,
	).Scan(&firstIndex)
	if err != nil {
		return 0, &PersistenceError{Op: "next chunk index", Err: err}
	}

	docs := make([]chromem.Document, len(texts))
	for i, text := range texts {
		docs[i] = chromem.Document{
			ID:        labelID(start + i),
			Content:   text,
			Embedding: vectors[i],
			Metadata:  map[string]string{"source": source},
		}
	}
	if err := s.coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return 0, &PersistenceError{Op: "add vectors", Err: err}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	err = s.rows.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO chunks (label, id, source, chunk_index, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, text := range texts {
			if _, err := stmt.ExecContext(ctx, start+i, uuid.NewString(), source, firstIndex+i, text, now); err != nil {
				return fmt.Errorf("insert label %d: %w", start+i, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, &PersistenceError{Op: "insert metadata", Err: err}
	}

	s.meta = indexMeta{MaxElements: capacity, CurrentCount: required, Dimension: s.dimension}
	if err := saveMeta(s.dir, s.meta); err != nil {
		return 0, &PersistenceError{Op: "save meta", Err: err}
	}

	metrics.KnowledgeChunks.Set(float64(required))
	s.log.Debug("added %d chunks from %s (labels %d..%d)", len(texts), source, start, required-1)
	return len(texts), nil
}

func (s *Store) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Query returns up to topK chunks nearest to text, closest first.
// An empty store or non-positive topK yields an empty result, never an error.
func (s *Store) Query(ctx context.Context, text string, topK int) ([]ChunkResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ready {
		return nil, ErrStoreNotInitialized
	}

	n := min(topK, s.meta.CurrentCount, s.coll.Count())
	if n <= 0 {
		return []ChunkResult{}, nil
	}

	began := time.Now()
	defer func() { metrics.RetrievalLatency.Observe(time.Since(began).Seconds()) }()

	vec, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}
	if len(vec) != s.dimension {
		return nil, &RetrievalError{Err: fmt.Errorf("query vector has dimension %d, want %d: %w",
			len(vec), s.dimension, ErrDimensionMismatch)}
	}

	hits, err := s.coll.QueryEmbedding(ctx, vec, n, nil, nil)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}

	distances := make(map[int]float64, len(hits))
	labels := make([]any, 0, len(hits))
	for _, h := range hits {
		label, err := strconv.Atoi(h.ID)
		if err != nil {
			continue
		}
		distances[label] = 1 - float64(h.Similarity)
		labels = append(labels, label)
	}
	if len(labels) == 0 {
		return []ChunkResult{}, nil
	}

	chunks, err := s.chunksByLabel(ctx, labels)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}

	results := make([]ChunkResult, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, ChunkResult{Chunk: c, Distance: distances[c.Label]})
	}
	if len(results) < len(labels) {
		s.log.Warn("%d vector labels have no metadata row", len(labels)-len(results))
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Label < results[j].Label
	})
	return results, nil
}

func (s *Store) chunksByLabel(ctx context.Context, labels []any) ([]Chunk, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(labels)), ",")
	rows, err := s.rows.DB().QueryContext(ctx,
		`SELECT label, id, source, chunk_index, content, created_at FROM chunks WHERE label IN (`+placeholders+`)`,
		labels...)
	if err != nil {
		return nil, fmt.Errorf("select chunks: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		var created string
		if err := rows.Scan(&c.Label, &c.ID, &c.Source, &c.ChunkIndex, &c.Content, &created); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Count returns the number of stored chunks.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta.CurrentCount
}

// Dimension returns the fixed embedding dimension.
func (s *Store) Dimension() int {
	return s.dimension
}

// Capacity returns the current index capacity.
func (s *Store) Capacity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta.MaxElements
}

// Close releases the metadata database. The store is unusable afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil
	}
	s.ready = false
	return s.rows.Close()
}

// FormatContext renders results as prompt-ready blocks separated by blank lines.
func FormatContext(results []ChunkResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("[%s chunk#%d]\n%s", r.Source, r.ChunkIndex, r.Content))
	}
	return strings.Join(blocks, "\n\n")
}
