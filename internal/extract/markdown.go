package extract

import (
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownExtractor renders markdown to plain text by walking the goldmark AST.
// Markup is dropped; headings, paragraphs, list items and code blocks are
// kept as separate blocks.
type MarkdownExtractor struct {
	md goldmark.Markdown
}

func NewMarkdownExtractor() *MarkdownExtractor {
	return &MarkdownExtractor{md: goldmark.New()}
}

func (e *MarkdownExtractor) Name() string { return "markdown" }

func (e *MarkdownExtractor) Extensions() []string { return []string{".md", ".markdown"} }

func (e *MarkdownExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	content := []byte(strings.ToValidUTF8(string(data), "�"))
	doc := e.md.Parser().Parse(text.NewReader(content))

	var buf strings.Builder
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			switch node := n.(type) {
			case *ast.Text:
				buf.Write(node.Segment.Value(content))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte('\n')
				}
			case *ast.String:
				buf.Write(node.Value)
			case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock:
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(content))
				}
				buf.WriteString("\n")
				return ast.WalkSkipChildren, nil
			}
			return ast.WalkContinue, nil
		}

		switch n.(type) {
		case *ast.Heading, *ast.Paragraph, *ast.ThematicBreak:
			buf.WriteString("\n\n")
		case *ast.TextBlock:
			buf.WriteString("\n")
		case *ast.List:
			buf.WriteString("\n")
		}
		return ast.WalkContinue, nil
	})

	return checkText(strings.TrimSpace(collapseBlankLines(buf.String())))
}

// Headings returns the text of all headings at or above maxLevel, in order.
func (e *MarkdownExtractor) Headings(data []byte, maxLevel int) []string {
	doc := e.md.Parser().Parse(text.NewReader(data))

	var headings []string
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if heading, ok := n.(*ast.Heading); ok && heading.Level <= maxLevel {
			headings = append(headings, nodeText(heading, data))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return headings
}

// nodeText concatenates the text leaves under node.
func nodeText(node ast.Node, source []byte) string {
	var buf strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
