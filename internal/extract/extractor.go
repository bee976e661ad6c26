// Package extract turns uploaded document bytes into plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrUnsupportedType is returned for files no extractor handles.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrNoText is returned when a document holds no extractable text.
	ErrNoText = errors.New("document contains no extractable text")
	// ErrMalformed is returned when a document cannot be parsed.
	ErrMalformed = errors.New("malformed document")
)

// Extractor pulls plain text out of one document format.
type Extractor interface {
	// Extract returns the document text. Empty documents yield ErrNoText.
	Extract(ctx context.Context, data []byte) (string, error)

	// Name is used in logs and document metadata.
	Name() string

	// Extensions lists handled file extensions, lower case with the dot.
	Extensions() []string
}

// Registry picks an extractor by file extension.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry returns a registry with the PDF, markdown, JSON and text
// extractors.
func NewRegistry() *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}

	r.Register(NewPDFExtractor())
	r.Register(NewMarkdownExtractor())
	r.Register(NewJSONExtractor())
	r.Register(NewTextExtractor())

	return r
}

// Register adds e for each of its extensions, replacing earlier entries.
func (r *Registry) Register(e Extractor) {
	for _, ext := range e.Extensions() {
		r.extractors[strings.ToLower(ext)] = e
	}
}

// ForFile returns the extractor for fileName's extension.
func (r *Registry) ForFile(fileName string) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	e, ok := r.extractors[ext]
	if !ok {
		if ext == "" {
			ext = "(none)"
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
	return e, nil
}

// Supports reports whether fileName has a registered extension.
func (r *Registry) Supports(fileName string) bool {
	_, err := r.ForFile(fileName)
	return err == nil
}

// Extensions returns all registered extensions, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract is a shortcut for ForFile followed by Extract.
func (r *Registry) Extract(ctx context.Context, fileName string, data []byte) (string, error) {
	e, err := r.ForFile(fileName)
	if err != nil {
		return "", err
	}
	return e.Extract(ctx, data)
}

func checkText(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}
