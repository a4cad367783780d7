package knowledge

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreNotInitialized is returned before Open succeeds or after Close.
	ErrStoreNotInitialized = errors.New("knowledge store not initialized")

	// ErrEmbedding marks every failure to compute vectors for new chunks.
	ErrEmbedding = errors.New("embedding failed")

	// ErrDimensionMismatch means vectors do not match the store's dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// EmbeddingError wraps an embedder failure during AddChunks.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding error: %v", e.Err)
}

// Unwrap exposes both ErrEmbedding and the underlying cause.
func (e *EmbeddingError) Unwrap() []error {
	return []error{ErrEmbedding, e.Err}
}

// RetrievalError wraps a failure to embed or search for a query.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval error: %v", e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps an I/O failure on the index, metadata rows or
// meta descriptor.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("knowledge persistence (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
