package server

import (
	"context"
	"errors"

	"compliance_checker/internal/app"
	"compliance_checker/internal/apperr"
	"compliance_checker/internal/chunker"
	"compliance_checker/internal/embedding"
	"compliance_checker/internal/extract"
	"compliance_checker/internal/upload"
	"compliance_checker/internal/vectorstore"
)

// rules maps pipeline sentinels to API codes. Order matters: the first
// target found in the chain wins.
var rules = []apperr.Rule{
	{Target: chunker.ErrInvalidInput, Code: apperr.ErrEmptyText},
	{Target: chunker.ErrInvalidParameter, Code: apperr.ErrInvalidChunkParams},

	{Target: upload.ErrNotPDF, Code: apperr.ErrInvalidFileType},
	{Target: upload.ErrEmptyFile, Code: apperr.ErrEmptyFile},
	{Target: upload.ErrTooLarge, Code: apperr.ErrFileTooLarge},
	{Target: upload.ErrNoName, Code: apperr.ErrInvalidParams},

	{Target: extract.ErrUnsupportedType, Code: apperr.ErrInvalidFileType},
	{Target: extract.ErrNoText, Code: apperr.ErrNoExtractableText},
	{Target: extract.ErrMalformed, Code: apperr.ErrBadRequest},

	{Target: embedding.ErrNoInput, Code: apperr.ErrInvalidParams},
	{Target: embedding.ErrProvider, Code: apperr.ErrEmbeddingFailed},

	{Target: vectorstore.ErrInvalidK, Code: apperr.ErrInvalidSearchParams},
	{Target: vectorstore.ErrNoNamespace, Code: apperr.ErrInvalidSearchParams},
	{Target: vectorstore.ErrInvalidRecord, Code: apperr.ErrInvalidParams},
	{Target: vectorstore.ErrDimensionMismatch, Code: apperr.ErrInvalidSearchParams},

	{Target: app.ErrNotFound, Code: apperr.ErrDocumentNotFound},
	{Target: app.ErrInvalidRequest, Code: apperr.ErrInvalidParams},
	{Target: app.ErrLLM, Code: apperr.ErrLLMFailed},

	{Target: context.DeadlineExceeded, Code: apperr.ErrServiceUnavail},
}

func classify(err error) *apperr.AppError {
	return apperr.Classify(err, apperr.ErrInternalServer, rules...)
}

// bindError turns a gin binding failure into a client error.
func bindError(err error) error {
	return apperr.Wrap(err, apperr.ErrInvalidParams, err.Error())
}

var errNoFile = errors.New("multipart field 'file' is required")
