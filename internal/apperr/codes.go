package apperr

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

const (
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer = 1000
	ErrInvalidParams  = 1001
	ErrNotFound       = 1002
	ErrBadRequest     = 1007
	ErrServiceUnavail = 1008

	// Pipeline errors (4000-4999)
	ErrDocumentNotFound    = 4003
	ErrProcessingFailed    = 4004
	ErrStorageFailed       = 4005
	ErrVectorDBFailed      = 4006
	ErrEmbeddingFailed     = 4007
	ErrInvalidFileType     = 4008
	ErrFileTooLarge        = 4009
	ErrEmptyFile           = 4011
	ErrNoExtractableText   = 4012
	ErrLLMFailed           = 4013
	ErrInvalidChunkParams  = 4014
	ErrEmptyText           = 4015
	ErrInvalidSearchParams = 4016
)

var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	ErrInternalServer: {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:  {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:       {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrBadRequest:     {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail: {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},

	ErrDocumentNotFound:    {ErrDocumentNotFound, http.StatusNotFound, "Document not found"},
	ErrProcessingFailed:    {ErrProcessingFailed, http.StatusInternalServerError, "Document processing failed"},
	ErrStorageFailed:       {ErrStorageFailed, http.StatusInternalServerError, "Storage operation failed"},
	ErrVectorDBFailed:      {ErrVectorDBFailed, http.StatusInternalServerError, "Vector database operation failed"},
	ErrEmbeddingFailed:     {ErrEmbeddingFailed, http.StatusBadGateway, "Embedding generation failed"},
	ErrInvalidFileType:     {ErrInvalidFileType, http.StatusBadRequest, "Unsupported file type"},
	ErrFileTooLarge:        {ErrFileTooLarge, http.StatusBadRequest, "File size exceeds limit"},
	ErrEmptyFile:           {ErrEmptyFile, http.StatusBadRequest, "File is empty"},
	ErrNoExtractableText:   {ErrNoExtractableText, http.StatusBadRequest, "The file contains no extractable text"},
	ErrLLMFailed:           {ErrLLMFailed, http.StatusBadGateway, "Report generation failed"},
	ErrInvalidChunkParams:  {ErrInvalidChunkParams, http.StatusBadRequest, "Invalid chunk size or overlap"},
	ErrEmptyText:           {ErrEmptyText, http.StatusBadRequest, "Text is empty"},
	ErrInvalidSearchParams: {ErrInvalidSearchParams, http.StatusBadRequest, "Invalid search parameters"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// IsClientError checks if the code represents a client error (4xx)
func IsClientError(code int) bool {
	status := GetHTTPStatus(code)
	return status >= 400 && status < 500
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
