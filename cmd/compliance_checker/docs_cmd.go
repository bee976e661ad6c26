package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"compliance_checker/internal/app"
	"compliance_checker/internal/chunker"
	"compliance_checker/internal/config"
	"compliance_checker/internal/extract"

	"github.com/spf13/cobra"
)

// Chunking flags
var (
	chunkSize    int
	chunkOverlap int
	chunkJSON    bool
)

// Index flags
var (
	indexWatch    bool
	indexDebounce time.Duration
)

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Extract, chunk, embed and store files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		out := cmd.OutOrStdout()
		failed := 0
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			res, err := a.IngestDocument(cmd.Context(), app.IngestRequest{
				FileName:  filepath.Base(path),
				Data:      data,
				Namespace: namespace,
				ChunkSize: chunkSize,
				Overlap:   chunkOverlap,
			})
			if err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
				continue
			}
			fmt.Fprintf(out, "%s\t%d chunks\t%s\t%s\n", res.Document.ID[:12], res.Document.Chunks, res.Document.Namespace, path)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(args))
		}
		return nil
	},
}

var indexCmd = &cobra.Command{
	Use:   "index DIR",
	Short: "Ingest every supported file under a directory, skipping unchanged files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		printStats := func(stats app.IndexStats) {
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d, skipped %d, failed %d, removed %d\n",
				stats.Indexed, stats.Skipped, stats.Failed, stats.Removed)
		}

		if indexWatch {
			return a.WatchDir(cmd.Context(), args[0], namespace, indexDebounce, printStats)
		}

		stats, err := a.IndexDir(cmd.Context(), args[0], namespace)
		if err != nil {
			return err
		}
		printStats(stats)
		return nil
	},
}

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "List ingested documents",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, cleanup, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFILE\tNAMESPACE\tCHUNKS\tINGESTED")
		for _, d := range a.Documents() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", d.ID[:12], d.FileName, d.Namespace, d.Chunks, d.IngestedAt.Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

// chunk needs no embedder or vector store, so it skips setup.
var chunkCmd = &cobra.Command{
	Use:   "chunk FILE",
	Short: "Print the chunks of a file without storing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}
		size, overlap := cfg.ChunkSize, cfg.ChunkOverlap
		if chunkSize > 0 {
			size, overlap = chunkSize, chunkOverlap
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		text, err := extract.NewRegistry().Extract(cmd.Context(), args[0], data)
		if err != nil {
			return err
		}

		name := filepath.Base(args[0])
		chunks, err := chunker.NewTextChunker(chunker.Config{MaxChunkSize: size, Overlap: overlap}).
			Chunk(text, app.DocumentID(data), name)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if chunkJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(chunks)
		}
		for _, c := range chunks {
			fmt.Fprintf(out, "--- %s [%s:%s] ---\n%s\n", c.Section, c.Metadata["start"], c.Metadata["end"], c.Text)
		}
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{ingestCmd, chunkCmd} {
		cmd.Flags().IntVar(&chunkSize, "size", 0, "chunk size in characters (defaults to CHUNK_SIZE)")
		cmd.Flags().IntVar(&chunkOverlap, "overlap", 0, "overlap in characters, used with --size")
	}
	chunkCmd.Flags().BoolVar(&chunkJSON, "json", false, "print chunks as JSON")
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "keep running and re-index on file changes")
	indexCmd.Flags().DurationVar(&indexDebounce, "debounce", 2*time.Second, "quiet period before a re-index in --watch mode")

	rootCmd.AddCommand(ingestCmd, indexCmd, documentsCmd, chunkCmd)
}
