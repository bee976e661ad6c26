package chunker

import (
	"strconv"
)

var _ Chunker = (*TextChunker)(nil)

// TextChunker splits plain text into fixed-size windows with overlap.
type TextChunker struct {
	config Config
}

// NewTextChunker returns a chunker for the given window parameters.
// Parameters are checked on every Chunk call.
func NewTextChunker(config Config) *TextChunker {
	return &TextChunker{config: config}
}

func (s *TextChunker) Name() string {
	return "size"
}

// Config returns the window parameters.
func (s *TextChunker) Config() Config {
	return s.config
}

func (s *TextChunker) Chunk(content, docID, source string) ([]Chunk, error) {
	windows, err := Windows(content, s.config.MaxChunkSize, s.config.Overlap)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, len(windows))
	for _, w := range windows {
		chunks = append(chunks, CreateChunk(w.Text, docID, source, w.Index, map[string]string{
			"chunk_num":   strconv.Itoa(w.Index + 1),
			"start":       strconv.Itoa(w.Start),
			"end":         strconv.Itoa(w.End),
			"method":      s.Name(),
			"document_id": docID,
			"source":      source,
		}))
	}

	return chunks, nil
}
