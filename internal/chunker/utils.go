package chunker

import (
	"crypto/sha256"
	"fmt"
	"strconv"
)

// CreateChunk builds a chunk with an id derived from docID and index.
func CreateChunk(text, docID, source string, index int, metadata map[string]string) Chunk {
	hash := sha256.Sum256([]byte(docID + ":" + strconv.Itoa(index)))

	if metadata == nil {
		metadata = make(map[string]string)
	}

	return Chunk{
		ID:       fmt.Sprintf("%x", hash[:8]),
		Index:    index,
		Text:     text,
		Source:   source,
		Section:  fmt.Sprintf("Chunk %d", index+1),
		Metadata: metadata,
	}
}

// Reassemble joins chunks produced with the given overlap back into the
// original text.
func Reassemble(chunks []string, overlap int) string {
	if len(chunks) == 0 {
		return ""
	}
	out := []rune(chunks[0])
	for _, c := range chunks[1:] {
		r := []rune(c)
		if len(r) <= overlap {
			continue
		}
		out = append(out, r[overlap:]...)
	}
	return string(out)
}
