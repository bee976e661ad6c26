package extract

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF writes a one-page PDF showing line with Helvetica.
func buildPDF(line string) []byte {
	stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", line)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestRegistry_ForFile(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		file string
		want string
	}{
		{"resume.pdf", "pdf"},
		{"RESUME.PDF", "pdf"},
		{"notes.md", "markdown"},
		{"notes.markdown", "markdown"},
		{"plain.txt", "text"},
		{"profile.json", "json"},
	}
	for _, tt := range tests {
		e, err := r.ForFile(tt.file)
		require.NoError(t, err, tt.file)
		assert.Equal(t, tt.want, e.Name(), tt.file)
	}

	_, err := r.ForFile("image.png")
	assert.ErrorIs(t, err, ErrUnsupportedType)
	_, err = r.ForFile("Makefile")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	assert.True(t, r.Supports("a.pdf"))
	assert.False(t, r.Supports("a.docx"))
	assert.Equal(t, []string{".json", ".markdown", ".md", ".pdf", ".text", ".txt"}, r.Extensions())
}

func TestTextExtractor(t *testing.T) {
	e := NewTextExtractor()

	got, err := e.Extract(context.Background(), []byte("  hello\nworld  "))
	require.NoError(t, err)
	assert.Equal(t, "  hello\nworld  ", got)

	got, err = e.Extract(context.Background(), []byte{'a', 0xff, 'b'})
	require.NoError(t, err)
	assert.Equal(t, "a�b", got)

	_, err = e.Extract(context.Background(), []byte(" \n\t "))
	assert.ErrorIs(t, err, ErrNoText)
}

func TestTextExtractor_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTextExtractor().Extract(ctx, []byte("text"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMarkdownExtractor(t *testing.T) {
	src := "# Title\n\nSome *emphasis* and `code`.\n\n## Skills\n\n- Go\n- SQL\n\n```\nfmt.Println(1)\n```\n"

	got, err := NewMarkdownExtractor().Extract(context.Background(), []byte(src))
	require.NoError(t, err)

	assert.Contains(t, got, "Title")
	assert.Contains(t, got, "Some emphasis and code.")
	assert.Contains(t, got, "Go\nSQL")
	assert.Contains(t, got, "fmt.Println(1)")
	assert.NotContains(t, got, "#")
	assert.NotContains(t, got, "*")
	assert.NotContains(t, got, "\n\n\n")
}

func TestMarkdownExtractor_Empty(t *testing.T) {
	_, err := NewMarkdownExtractor().Extract(context.Background(), []byte("\n\n---\n"))
	assert.ErrorIs(t, err, ErrNoText)
}

func TestMarkdownExtractor_Headings(t *testing.T) {
	src := []byte("# CV\n\n## Experience\n\ntext\n\n### Acme\n\n## Education\n")
	e := NewMarkdownExtractor()
	assert.Equal(t, []string{"CV", "Experience", "Education"}, e.Headings(src, 2))
	assert.Equal(t, []string{"CV"}, e.Headings(src, 1))
}

func TestPDFExtractor(t *testing.T) {
	got, err := NewPDFExtractor().Extract(context.Background(), buildPDF("Hello PDF"))
	require.NoError(t, err)
	assert.Contains(t, got, "Hello PDF")
}

func TestPDFExtractor_Invalid(t *testing.T) {
	_, err := NewPDFExtractor().Extract(context.Background(), []byte("this is not a pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.NotErrorIs(t, err, ErrNoText)
}

func TestPDFExtractor_NoText(t *testing.T) {
	_, err := NewPDFExtractor().Extract(context.Background(), buildPDF(""))
	assert.ErrorIs(t, err, ErrNoText)
}

func TestJSONExtractor(t *testing.T) {
	data := []byte(`{
		"name": "Ada",
		"skills": ["Go", "SQL"],
		"experience": {"years": 7, "remote": true},
		"empty": null
	}`)

	got, err := NewJSONExtractor().Extract(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "name: Ada\nskills:\n  - Go\n  - SQL\nexperience:\n  years: 7\n  remote: true\n", got)
}

func TestJSONExtractor_TopLevelArray(t *testing.T) {
	got, err := NewJSONExtractor().Extract(context.Background(), []byte(`[{"title":"a"},"b"]`))
	require.NoError(t, err)
	assert.Equal(t, "item 1:\n  title: a\nitem 2: b\n", got)
}

func TestJSONExtractor_Errors(t *testing.T) {
	_, err := NewJSONExtractor().Extract(context.Background(), []byte(`{"a":`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = NewJSONExtractor().Extract(context.Background(), []byte(`{"a": "", "b": []}`))
	assert.ErrorIs(t, err, ErrNoText)
}
