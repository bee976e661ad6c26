package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"compliance_checker/internal/app"
	"compliance_checker/internal/apperr"
	"compliance_checker/internal/upload"
	"compliance_checker/internal/vectorstore"

	"github.com/gin-gonic/gin"
)

type chunkRequest struct {
	ExtractedText string `json:"extracted_text"`
	ChunkSize     int    `json:"chunk_size"`
	Overlap       int    `json:"overlap"`
}

type embedRequest struct {
	Texts []string `json:"texts"`
}

type storeEmbeddingsRequest struct {
	Embeddings [][]float32 `json:"embeddings"`
	IDs        []string    `json:"ids,omitempty"`
	Namespace  string      `json:"namespace"`
}

type searchEmbeddingsRequest struct {
	QueryEmbedding []float32 `json:"query_embedding"`
	Namespace      string    `json:"namespace"`
	K              *int      `json:"k"`
}

type searchRequest struct {
	Query     string `json:"query"`
	Namespace string `json:"namespace"`
	K         *int   `json:"k"`
}

type reportRequest struct {
	Question  string `json:"question"`
	Namespace string `json:"namespace"`
	K         *int   `json:"k"`
	Format    string `json:"format"`
}

// reportResponse carries the rendered report next to the structured one.
type reportResponse struct {
	Report   *app.SuitabilityReport `json:"report"`
	Document *app.DocumentRecord    `json:"document,omitempty"`
	Rendered string                 `json:"rendered,omitempty"`
	Format   string                 `json:"format,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"time":       time.Now().Format(time.RFC3339),
		"documents":  len(s.app.Documents()),
		"namespaces": s.app.Namespaces(),
	})
}

// readFile reads the multipart "file" field, at most maxUpload bytes of it.
func (s *Server) readFile(c *gin.Context) (*multipart.FileHeader, []byte, error) {
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || c.Request.ContentLength > s.maxUpload+multipartOverhead {
			return nil, nil, s.errTooLarge()
		}
		return nil, nil, apperr.Wrap(errNoFile, apperr.ErrInvalidParams, errNoFile.Error())
	}
	if header.Size > s.maxUpload {
		return nil, nil, s.errTooLarge()
	}

	f, err := header.Open()
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxUpload+1))
	if err != nil {
		return nil, nil, err
	}
	if int64(len(data)) > s.maxUpload {
		return nil, nil, s.errTooLarge()
	}
	return header, data, nil
}

func (s *Server) errTooLarge() error {
	return fmt.Errorf("%w: limit is %d bytes", upload.ErrTooLarge, s.maxUpload)
}

func formInt(c *gin.Context, key string) (int, error) {
	v := c.PostForm(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.New(apperr.ErrInvalidParams, key+" must be an integer")
	}
	return n, nil
}

// topK returns the request k or the configured default when k is absent.
func (s *Server) topK(k *int) int {
	if k == nil {
		return s.app.Config().TopK
	}
	return *k
}

func (s *Server) uploadPDF(c *gin.Context) {
	header, data, err := s.readFile(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	contentType := header.Header.Get("Content-Type")

	if ingest, _ := strconv.ParseBool(c.PostForm("ingest")); ingest {
		res, err := s.app.IngestDocument(c.Request.Context(), app.IngestRequest{
			FileName:    header.Filename,
			ContentType: contentType,
			Data:        data,
			Namespace:   c.PostForm("namespace"),
			PDFOnly:     true,
		})
		if err != nil {
			HandleError(c, err)
			return
		}
		Created(c, gin.H{
			"message":   "PDF successfully uploaded",
			"file_path": res.Document.StoredAt,
			"document":  res.Document,
		})
		return
	}

	location, err := s.app.SavePDF(c.Request.Context(), header.Filename, contentType, data)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, gin.H{"message": "PDF successfully uploaded", "file_path": location})
}

func (s *Server) extractText(c *gin.Context) {
	header, data, err := s.readFile(c)
	if err != nil {
		HandleError(c, err)
		return
	}

	text, err := s.app.ExtractText(c.Request.Context(), header.Filename, data)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"message": "Text successfully extracted", "extracted_text": text})
}

func (s *Server) chunk(c *gin.Context) {
	var req chunkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleError(c, bindError(err))
		return
	}

	chunks, err := s.app.ChunkText(req.ExtractedText, req.ChunkSize, req.Overlap)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"chunks": chunks, "count": len(chunks)})
}

func (s *Server) embed(c *gin.Context) {
	var req embedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleError(c, bindError(err))
		return
	}

	vectors, err := s.app.EmbedTexts(c.Request.Context(), req.Texts)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"embeddings": vectors})
}

func (s *Server) ingestDocument(c *gin.Context) {
	header, data, err := s.readFile(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	size, err := formInt(c, "chunk_size")
	if err != nil {
		HandleError(c, err)
		return
	}
	overlap, err := formInt(c, "overlap")
	if err != nil {
		HandleError(c, err)
		return
	}

	res, err := s.app.IngestDocument(c.Request.Context(), app.IngestRequest{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Namespace:   c.PostForm("namespace"),
		ChunkSize:   size,
		Overlap:     overlap,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	if withChunks, _ := strconv.ParseBool(c.Query("chunks")); !withChunks {
		res.Chunks = nil
	}
	Created(c, res)
}

func (s *Server) listDocuments(c *gin.Context) {
	docs := s.app.Documents()
	Success(c, gin.H{"documents": docs, "total": len(docs)})
}

func (s *Server) getDocument(c *gin.Context) {
	doc, err := s.app.Document(c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, doc)
}

func (s *Server) deleteDocument(c *gin.Context) {
	if err := s.app.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"message": "Document deleted", "id": c.Param("id")})
}

func (s *Server) storeEmbeddings(c *gin.Context) {
	var req storeEmbeddingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleError(c, bindError(err))
		return
	}

	n, err := s.app.StoreEmbeddings(c.Request.Context(), req.Namespace, req.IDs, req.Embeddings)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{
		"message":   "Embeddings stored successfully",
		"namespace": s.namespace(req.Namespace),
		"count":     n,
	})
}

func (s *Server) searchEmbeddings(c *gin.Context) {
	var req searchEmbeddingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleError(c, bindError(err))
		return
	}

	results, err := s.app.SearchEmbeddings(c.Request.Context(), req.Namespace, req.QueryEmbedding, s.topK(req.K))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"results": nonNil(results)})
}

func (s *Server) search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleError(c, bindError(err))
		return
	}

	results, err := s.app.Search(c.Request.Context(), req.Query, req.Namespace, s.topK(req.K))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"results": nonNil(results)})
}

func (s *Server) report(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleError(c, bindError(err))
		return
	}

	report, err := s.app.Report(c.Request.Context(), req.Question, req.Namespace, s.topK(req.K))
	if err != nil {
		HandleError(c, err)
		return
	}

	resp, err := render(report, req.Format)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, resp)
}

func (s *Server) resumeReport(c *gin.Context) {
	header, data, err := s.readFile(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	k, err := formInt(c, "k")
	if err != nil {
		HandleError(c, err)
		return
	}

	res, err := s.app.EvaluateResume(c.Request.Context(), app.ResumeRequest{
		FileName:       header.Filename,
		ContentType:    header.Header.Get("Content-Type"),
		Data:           data,
		JobDescription: c.PostForm("job_description"),
		K:              k,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	resp, err := render(res.Report, c.PostForm("format"))
	if err != nil {
		HandleError(c, err)
		return
	}
	resp.Document = &res.Document
	Success(c, resp)
}

// render adds a markdown or HTML rendering when format asks for one.
func render(report *app.SuitabilityReport, format string) (*reportResponse, error) {
	resp := &reportResponse{Report: report, Format: format}
	switch format {
	case "", "json":
		resp.Format = ""
	case "markdown", "md":
		resp.Format = "markdown"
		resp.Rendered = app.RenderMarkdown(report)
	case "html":
		html, err := app.RenderHTML(report)
		if err != nil {
			return nil, err
		}
		resp.Rendered = html
	default:
		return nil, apperr.New(apperr.ErrInvalidParams, "format must be json, markdown or html")
	}
	return resp, nil
}

func (s *Server) namespace(ns string) string {
	if ns == "" {
		return s.app.Config().DefaultNamespace
	}
	return ns
}

func nonNil(m []vectorstore.Match) []vectorstore.Match {
	if m == nil {
		return []vectorstore.Match{}
	}
	return m
}
