// Package parsers turns source files into plain text for chunking.
package parsers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned for file types no parser handles.
var ErrUnsupported = errors.New("unsupported file type")

// Parser extracts plain text from raw file content.
type Parser interface {
	Parse(src []byte) (string, error)

	// Format returns the format identifier.
	Format() string
}

var byExtension = map[string]func() Parser{
	".txt":      func() Parser { return NewTextParser() },
	".log":      func() Parser { return NewTextParser() },
	".md":       func() Parser { return NewMarkdownParser() },
	".markdown": func() Parser { return NewMarkdownParser() },
	".pdf":      func() Parser { return NewPDFParser() },
}

// ForPath returns the parser for path's extension.
func ForPath(path string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	newParser, ok := byExtension[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	return newParser(), nil
}

// Supported reports whether path has a parseable extension.
func Supported(path string) bool {
	_, ok := byExtension[strings.ToLower(filepath.Ext(path))]
	return ok
}
