package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"compliance_checker/internal/chunker"
	"compliance_checker/internal/metrics"
	"compliance_checker/internal/upload"
	"compliance_checker/internal/vectorstore"

	"go.uber.org/zap"
)

// IngestRequest is one document to push through the pipeline.
type IngestRequest struct {
	FileName    string
	ContentType string
	Data        []byte
	Namespace   string // empty means the default namespace
	ChunkSize   int    // 0 means the configured default
	Overlap     int    // 0 means the configured default unless ChunkSize is set
	PDFOnly     bool

	// Set by directory indexing: the file is already on disk, so it is not
	// copied to the upload store.
	Path    string
	ModTime time.Time
}

type IngestResult struct {
	Document DocumentRecord  `json:"document"`
	Chunks   []chunker.Chunk `json:"chunks,omitempty"`
}

// DocumentID is the hex sha256 of the raw bytes.
func DocumentID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// chunkParams resolves per-request overrides against the config.
func (a *App) chunkParams(size, overlap int) (int, int) {
	if size == 0 {
		return a.cfg.ChunkSize, a.cfg.ChunkOverlap
	}
	return size, overlap
}

// IngestDocument validates, stores, extracts, chunks, embeds and upserts one
// document. Re-ingesting the same bytes into the same namespace replaces
// the previous chunks.
func (a *App) IngestDocument(ctx context.Context, req IngestRequest) (res *IngestResult, err error) {
	start := time.Now()
	extractorName := "unknown"
	defer func() {
		n := 0
		if res != nil {
			n = len(res.Chunks)
		}
		metrics.ObserveIngest(extractorName, n, time.Since(start), err)
	}()

	name := upload.BaseName(req.FileName)
	if req.PDFOnly {
		err = upload.ValidatePDF(name, req.ContentType, req.Data, a.cfg.MaxUploadBytes())
	} else {
		err = upload.Validate(name, req.Data, a.cfg.MaxUploadBytes())
	}
	if err != nil {
		return nil, err
	}

	extractor, err := a.extractors.ForFile(name)
	if err != nil {
		return nil, err
	}
	extractorName = extractor.Name()

	size, overlap := a.chunkParams(req.ChunkSize, req.Overlap)
	if err := chunker.Validate(size, overlap); err != nil {
		return nil, err
	}

	namespace := a.namespace(req.Namespace)
	docID := DocumentID(req.Data)
	log := a.logger.WithContext(ctx).With(
		zap.String("file", name),
		zap.String("document_id", docID[:12]),
		zap.String("namespace", namespace))

	var location string
	if req.Path == "" {
		location, err = a.uploads.Save(ctx, name, req.Data, req.ContentType)
		if err != nil {
			return nil, fmt.Errorf("failed to store upload: %w", err)
		}
		defer func() {
			if err != nil {
				if rmErr := a.uploads.Remove(context.WithoutCancel(ctx), location); rmErr != nil {
					log.Warn("failed to remove upload", zap.Error(rmErr))
				}
			}
		}()
	}

	text, err := extractor.Extract(ctx, req.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from %s: %w", name, err)
	}
	log.Debug("text extracted", zap.Int("runes", len([]rune(text))))

	chunks, err := chunker.NewTextChunker(chunker.Config{MaxChunkSize: size, Overlap: overlap}).Chunk(text, docID, name)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := a.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %d chunks: %w", len(chunks), err)
	}

	records := make([]vectorstore.Record, len(chunks))
	for i, c := range chunks {
		meta := make(map[string]string, len(c.Metadata)+2)
		for k, v := range c.Metadata {
			meta[k] = v
		}
		meta["section"] = c.Section
		meta["extractor"] = extractor.Name()
		records[i] = vectorstore.Record{
			ID:       c.ID,
			Vector:   vectors[i],
			Content:  c.Text,
			Metadata: meta,
		}
	}

	// a re-ingest with other chunk parameters must not leave old chunks behind
	prev, reingest := a.registry.Get(docID)
	if reingest && prev.Namespace == namespace {
		if err := a.store.DeleteWhere(ctx, namespace, map[string]string{"document_id": docID}); err != nil {
			return nil, err
		}
	}

	if err := a.store.Upsert(ctx, namespace, records); err != nil {
		return nil, err
	}

	rec := DocumentRecord{
		ID:          docID,
		FileName:    name,
		Path:        req.Path,
		Namespace:   namespace,
		ContentType: req.ContentType,
		Extractor:   extractor.Name(),
		Size:        int64(len(req.Data)),
		Chunks:      len(chunks),
		ChunkSize:   size,
		Overlap:     overlap,
		StoredAt:    location,
		ModTime:     req.ModTime,
		IngestedAt:  time.Now().UTC(),
	}
	if err := a.registry.Put(&rec); err != nil {
		return nil, fmt.Errorf("failed to update registry: %w", err)
	}

	if reingest && prev.StoredAt != "" && prev.StoredAt != location {
		if err := a.uploads.Remove(ctx, prev.StoredAt); err != nil {
			log.Warn("failed to remove previous upload", zap.String("location", prev.StoredAt), zap.Error(err))
		}
	}

	log.Info("document ingested",
		zap.Int("chunks", len(chunks)),
		zap.Duration("took", time.Since(start)))

	return &IngestResult{Document: rec, Chunks: chunks}, nil
}

// SavePDF validates a PDF upload and stores it without ingesting it.
// Returns the upload store location.
func (a *App) SavePDF(ctx context.Context, fileName, contentType string, data []byte) (string, error) {
	name := upload.BaseName(fileName)
	if err := upload.ValidatePDF(name, contentType, data, a.cfg.MaxUploadBytes()); err != nil {
		return "", err
	}

	location, err := a.uploads.Save(ctx, name, data, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}

	a.logger.WithContext(ctx).Info("upload stored",
		zap.String("file", name),
		zap.String("location", location),
		zap.String("store", a.uploads.Name()))
	return location, nil
}

// ExtractText validates an upload and returns its text without storing
// anything.
func (a *App) ExtractText(ctx context.Context, fileName string, data []byte) (string, error) {
	name := upload.BaseName(fileName)
	if err := upload.Validate(name, data, a.cfg.MaxUploadBytes()); err != nil {
		return "", err
	}
	return a.extractors.Extract(ctx, name, data)
}

// ChunkText splits text with explicit parameters.
func (a *App) ChunkText(text string, chunkSize, overlap int) ([]string, error) {
	return chunker.Split(text, chunkSize, overlap)
}

// EmbedTexts returns one vector per text.
func (a *App) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return a.embedder.Embed(ctx, texts)
}

// Documents lists the registry, newest first.
func (a *App) Documents() []DocumentRecord {
	return a.registry.List()
}

func (a *App) Document(id string) (*DocumentRecord, error) {
	rec, ok := a.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return rec, nil
}

// DeleteDocument removes the document's vectors, its stored upload and its
// registry record.
func (a *App) DeleteDocument(ctx context.Context, id string) error {
	rec, err := a.Document(id)
	if err != nil {
		return err
	}

	if err := a.store.DeleteWhere(ctx, rec.Namespace, map[string]string{"document_id": rec.ID}); err != nil {
		return err
	}

	if rec.StoredAt != "" {
		if err := a.uploads.Remove(ctx, rec.StoredAt); err != nil {
			a.logger.Warn("failed to remove upload", zap.String("location", rec.StoredAt), zap.Error(err))
		}
	}

	if err := a.registry.Delete(rec.ID); err != nil {
		return fmt.Errorf("failed to update registry: %w", err)
	}

	a.logger.Info("document deleted", zap.String("document_id", rec.ID), zap.String("file", rec.FileName))
	return nil
}
