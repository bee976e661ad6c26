package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// DocumentRecord describes one ingested document.
type DocumentRecord struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	Path        string    `json:"path,omitempty"` // source path for directory indexing
	Namespace   string    `json:"namespace"`
	ContentType string    `json:"content_type,omitempty"`
	Extractor   string    `json:"extractor"`
	Size        int64     `json:"size"`
	Chunks      int       `json:"chunks"`
	ChunkSize   int       `json:"chunk_size"`
	Overlap     int       `json:"overlap"`
	StoredAt    string    `json:"stored_at,omitempty"` // upload store location
	ModTime     time.Time `json:"mod_time,omitempty"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// IndexedFile is one file seen by directory indexing. Files with identical
// bytes share a document.
type IndexedFile struct {
	ID        string    `json:"id"`
	Namespace string    `json:"namespace"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
}

type registryFile struct {
	DataPath  string                     `json:"data_path"`
	Documents map[string]*DocumentRecord `json:"documents"`
	Files     map[string]*IndexedFile    `json:"files,omitempty"`
}

// Registry is the persisted list of ingested documents, keyed by document id,
// plus the indexed files keyed by path.
type Registry struct {
	mu   sync.RWMutex
	path string
	data registryFile
}

// OpenRegistry loads path if it exists. An empty path keeps the registry in
// memory only.
func OpenRegistry(path string) (*Registry, error) {
	r := &Registry{
		path: path,
		data: registryFile{
			Documents: make(map[string]*DocumentRecord),
			Files:     make(map[string]*IndexedFile),
		},
	}
	if path == "" {
		return r, nil
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return r, nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&r.data); err != nil {
		return nil, fmt.Errorf("failed to read registry %s: %w", path, err)
	}
	if r.data.Documents == nil {
		r.data.Documents = make(map[string]*DocumentRecord)
	}
	if r.data.Files == nil {
		r.data.Files = make(map[string]*IndexedFile)
	}
	return r, nil
}

// DataPath is the data directory the registry was written for.
func (r *Registry) DataPath() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.DataPath
}

// Reset drops every record and remembers dataPath.
func (r *Registry) Reset(dataPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = registryFile{
		DataPath:  dataPath,
		Documents: make(map[string]*DocumentRecord),
		Files:     make(map[string]*IndexedFile),
	}
	return r.saveLocked()
}

func (r *Registry) Put(rec *DocumentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.data.Documents[rec.ID] = &cp
	return r.saveLocked()
}

func (r *Registry) Get(id string) (*DocumentRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.data.Documents[id]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

// File returns what was indexed from path, if anything.
func (r *Registry) File(path string) (IndexedFile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.data.Files[path]
	if !ok {
		return IndexedFile{}, false
	}
	return *f, true
}

func (r *Registry) PutFile(path string, f IndexedFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.Files[path] = &f
	return r.saveLocked()
}

func (r *Registry) RemoveFile(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data.Files[path]; !ok {
		return nil
	}
	delete(r.data.Files, path)
	return r.saveLocked()
}

// Files returns a snapshot of the indexed files.
func (r *Registry) Files() map[string]IndexedFile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]IndexedFile, len(r.data.Files))
	for path, f := range r.data.Files {
		out[path] = *f
	}
	return out
}

// FileCount reports how many indexed files point at document id.
func (r *Registry) FileCount(id string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, f := range r.data.Files {
		if f.ID == id {
			n++
		}
	}
	return n
}

// Delete drops the document and every indexed file pointing at it.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data.Documents[id]; !ok {
		return nil
	}
	delete(r.data.Documents, id)
	for path, f := range r.data.Files {
		if f.ID == id {
			delete(r.data.Files, path)
		}
	}
	return r.saveLocked()
}

// List returns records, newest first.
func (r *Registry) List() []DocumentRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]DocumentRecord, 0, len(r.data.Documents))
	for _, rec := range r.data.Documents {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IngestedAt.Equal(out[j].IngestedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].IngestedAt.After(out[j].IngestedAt)
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data.Documents)
}

// saveLocked writes through a temp file so a crash never leaves half a registry.
func (r *Registry) saveLocked() error {
	if r.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".documents-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), r.path)
}
