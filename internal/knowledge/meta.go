package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// MinCapacity is the floor for the index capacity.
const MinCapacity = 10000

const metaFileName = "index_meta.json"

// indexMeta is the descriptor persisted next to the index after every batch.
type indexMeta struct {
	MaxElements  int `json:"max_elements"`
	CurrentCount int `json:"current_count"`
	Dimension    int `json:"dimension"`
}

// growCapacity returns the capacity needed to hold required vectors.
func growCapacity(current, required int) int {
	if required <= current {
		return current
	}
	return max(required*2, MinCapacity)
}

func loadMeta(dir string) (*indexMeta, error) {
	raw, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", metaFileName, err)
	}

	var m indexMeta
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", metaFileName, err)
	}
	if m.MaxElements < MinCapacity {
		m.MaxElements = MinCapacity
	}
	return &m, nil
}

// saveMeta writes the descriptor atomically via a temp file and rename.
func saveMeta(dir string, m indexMeta) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	tmp := filepath.Join(dir, metaFileName+".tmp")
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, metaFileName))
}
