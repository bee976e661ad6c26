package chunker

// Chunk is a unit of text ready for embedding and storage.
type Chunk struct {
	ID       string            `json:"id"`       // hash of document id and position
	Index    int               `json:"index"`    // position in the document, from 0
	Text     string            `json:"text"`     // chunk text, exactly as it appears in the source
	Source   string            `json:"source"`   // source file name
	Section  string            `json:"section"`  // human readable label
	Metadata map[string]string `json:"metadata"` // start/end offsets and other attributes
}

// Chunker splits extracted document text into chunks.
type Chunker interface {
	// Chunk splits content of the document identified by docID.
	Chunk(content, docID, source string) ([]Chunk, error)

	// Name is used in logs and chunk metadata.
	Name() string
}

// Config holds the window parameters shared by chunkers.
type Config struct {
	MaxChunkSize int // maximum chunk length in runes
	Overlap      int // runes shared by consecutive chunks
}

// Validate reports whether the config can drive a scan.
func (c Config) Validate() error {
	return Validate(c.MaxChunkSize, c.Overlap)
}
