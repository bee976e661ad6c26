package chunker

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for empty text.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidParameter is returned when chunk size and overlap cannot
	// produce an advancing scan.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Window is one chunk together with its rune offsets in the source text.
type Window struct {
	Index int
	Start int // inclusive, in runes
	End   int // exclusive, in runes
	Text  string
}

// Validate checks chunk size and overlap without looking at any text.
func Validate(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidParameter, chunkSize)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap cannot be negative, got %d", ErrInvalidParameter, overlap)
	}
	if overlap >= chunkSize {
		return fmt.Errorf("%w: overlap %d must be less than chunk size %d", ErrInvalidParameter, overlap, chunkSize)
	}
	return nil
}

// Count returns how many chunks Split produces for a text of n runes.
// Parameters are assumed valid.
func Count(n, chunkSize, overlap int) int {
	if n <= 0 {
		return 0
	}
	if n <= overlap || n <= chunkSize {
		return 1
	}
	step := chunkSize - overlap
	return (n - overlap + step - 1) / step
}

// Split partitions text into overlapping windows of at most chunkSize runes.
// Consecutive chunks share exactly overlap runes; the last chunk may be
// shorter than chunkSize and is never padded.
func Split(text string, chunkSize, overlap int) ([]string, error) {
	windows, err := Windows(text, chunkSize, overlap)
	if err != nil {
		return nil, err
	}

	chunks := make([]string, len(windows))
	for i, w := range windows {
		chunks[i] = w.Text
	}
	return chunks, nil
}

// Windows is Split with rune offsets.
func Windows(text string, chunkSize, overlap int) ([]Window, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text is empty", ErrInvalidInput)
	}
	if err := Validate(chunkSize, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	step := chunkSize - overlap
	windows := make([]Window, 0, Count(len(runes), chunkSize, overlap))

	for start := 0; start < len(runes); start += step {
		end := min(start+chunkSize, len(runes))

		windows = append(windows, Window{
			Index: len(windows),
			Start: start,
			End:   end,
			Text:  string(runes[start:end]),
		})

		if end >= len(runes) {
			break
		}
	}

	return windows, nil
}
