package parsers

import "strings"

// TextParser parses plain text and log files.
type TextParser struct{}

// NewTextParser creates a new text parser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Parse returns src as text. Invalid UTF-8 sequences are dropped.
func (p *TextParser) Parse(src []byte) (string, error) {
	return strings.TrimSpace(strings.ToValidUTF8(string(src), "")), nil
}

// Format returns the format identifier.
func (p *TextParser) Format() string {
	return "text"
}
