package parsers

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser strips Markdown syntax and keeps the readable text:
// headings, paragraphs, list items, table cells and code block bodies.
// Raw HTML is dropped.
type MarkdownParser struct {
	md goldmark.Markdown
}

// NewMarkdownParser creates a new Markdown parser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Parse walks the document tree and collects its text, one block per line.
func (p *MarkdownParser) Parse(src []byte) (string, error) {
	doc := p.md.Parser().Parse(text.NewReader(src))

	var sb strings.Builder
	newline := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
	}

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				newline()
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.String:
			sb.Write(node.Value)
		case *ast.AutoLink:
			sb.Write(node.Label(src))
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(sb.String()), nil
}

// Format returns the format identifier.
func (p *MarkdownParser) Format() string {
	return "markdown"
}
