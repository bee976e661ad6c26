package extract

import (
	"context"
	"strings"
)

// TextExtractor reads UTF-8 plain text.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) Name() string { return "text" }

func (e *TextExtractor) Extensions() []string { return []string{".txt", ".text"} }

// Extract replaces invalid UTF-8 sequences with U+FFFD.
func (e *TextExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return checkText(strings.ToValidUTF8(string(data), "�"))
}
