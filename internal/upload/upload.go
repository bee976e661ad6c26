// Package upload validates uploaded files and keeps a copy of the raw bytes.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotPDF    = errors.New("invalid file type, only PDF files are allowed")
	ErrEmptyFile = errors.New("uploaded file is empty")
	ErrTooLarge  = errors.New("uploaded file is too large")
	ErrNoName    = errors.New("uploaded file has no name")
)

const PDFContentType = "application/pdf"

var pdfMagic = []byte("%PDF-")

// Store keeps raw uploads.
type Store interface {
	// Save writes data under name and returns where it landed.
	Save(ctx context.Context, name string, data []byte, contentType string) (string, error)
	// Remove deletes an upload by the location Save returned.
	Remove(ctx context.Context, location string) error
	// Name is used in logs.
	Name() string
}

// BaseName strips any directory parts a client put into the file name.
func BaseName(fileName string) string {
	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(fileName, "\\", "/")))
	if name == "/" || name == "." {
		return ""
	}
	return name
}

// Validate checks an upload. maxBytes <= 0 disables the size check.
func Validate(fileName string, data []byte, maxBytes int64) error {
	if BaseName(fileName) == "" {
		return ErrNoName
	}
	if len(data) == 0 {
		return ErrEmptyFile
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), maxBytes)
	}
	return nil
}

// ValidatePDF is Validate plus a PDF check. The declared content type is
// accepted when it says PDF; otherwise the bytes must start with the PDF magic.
func ValidatePDF(fileName, contentType string, data []byte, maxBytes int64) error {
	if err := Validate(fileName, data, maxBytes); err != nil {
		return err
	}
	if IsPDF(contentType, data) {
		return nil
	}
	return fmt.Errorf("%w: got %q", ErrNotPDF, contentType)
}

// IsPDF reports whether the content type or the leading bytes say PDF.
func IsPDF(contentType string, data []byte) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	if strings.EqualFold(strings.TrimSpace(mediaType), PDFContentType) {
		return true
	}
	return bytes.HasPrefix(data, pdfMagic)
}

// ObjectName returns the name an upload is stored under.
func ObjectName(fileName string) string {
	return uuid.New().String() + "_" + BaseName(fileName)
}
