package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Run is the interactive shell. Every input line is one of:
//
//	<path>        ingest the file into the default namespace
//	? <question>  generate a report from the default namespace
//	<text>        search the default namespace
//
// It returns on EOF or when ctx is done.
func (a *App) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Enter a file path to ingest, text to search, or '? question' for a report. Ctrl+D to exit.")

	scanner := bufio.NewScanner(in)

	const maxLineSize = 1024 * 1024
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, maxLineSize)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("shell stopped")
			return nil
		default:
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("stdin error: %w", err)
				}
				return nil
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			a.handleLine(ctx, line, out)
		}
	}
}

func (a *App) handleLine(ctx context.Context, line string, out io.Writer) {
	if question, ok := strings.CutPrefix(line, "?"); ok {
		report, err := a.Report(ctx, question, "", a.cfg.TopK)
		if err != nil {
			fmt.Fprintf(out, "report failed: %v\n", err)
			return
		}
		md := RenderMarkdown(report)
		if a.renderMarkdown != nil {
			if styled, err := a.renderMarkdown(md); err == nil {
				md = styled
			}
		}
		fmt.Fprintln(out, md)
		return
	}

	if info, err := os.Stat(line); err == nil && !info.IsDir() {
		if !a.extractors.Supports(line) {
			fmt.Fprintf(out, "unsupported format: %s\n", filepath.Ext(line))
			return
		}

		data, err := os.ReadFile(line)
		if err != nil {
			fmt.Fprintf(out, "read failed: %v\n", err)
			return
		}

		res, err := a.IngestDocument(ctx, IngestRequest{FileName: filepath.Base(line), Data: data})
		if err != nil {
			fmt.Fprintf(out, "ingest failed: %v\n", err)
			return
		}
		fmt.Fprintf(out, "ingested %s: %d chunks into %q (id %s)\n",
			res.Document.FileName, res.Document.Chunks, res.Document.Namespace, res.Document.ID[:12])
		return
	}

	matches, err := a.Search(ctx, line, "", a.cfg.TopK)
	if err != nil {
		fmt.Fprintf(out, "search failed: %v\n", err)
		return
	}

	fmt.Fprintf(out, "found %d relevant chunks:\n", len(matches))
	for i, m := range matches {
		fmt.Fprintf(out, "%d. [%s, %s] (similarity: %.2f)\n   %s\n",
			i+1, m.Metadata["source"], m.Metadata["section"], m.Score, preview(m.Content, 160))
	}
}

// preview returns at most n runes of s on one line.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
