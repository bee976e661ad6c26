package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"compliance_checker/internal/app"

	"github.com/spf13/cobra"
)

// Query and report flags
var (
	topK         int
	reportFormat string
	resumePath   string
	jobDesc      string
)

var queryCmd = &cobra.Command{
	Use:   "query TEXT...",
	Short: "Semantic search over a namespace",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		k := topK
		if k == 0 {
			k = a.Config().TopK
		}
		matches, err := a.Search(cmd.Context(), strings.Join(args, " "), namespace, k)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(matches) == 0 {
			fmt.Fprintln(out, "no matches")
			return nil
		}
		for i, m := range matches {
			fmt.Fprintf(out, "%d. [%s, %s] (similarity: %.2f)\n%s\n\n", i+1, m.Metadata["source"], m.Metadata["section"], m.Score, m.Content)
		}
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report [QUESTION...]",
	Short: "Generate a suitability report from stored documents or a resume",
	Long: `Without --resume the question is answered from the chosen namespace.
With --resume the file is ingested into its own namespace and evaluated
against --job.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if resumePath == "" && len(args) == 0 {
			return errors.New("a question or --resume is required")
		}

		a, cleanup, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		var report *app.SuitabilityReport
		if resumePath != "" {
			data, err := os.ReadFile(resumePath)
			if err != nil {
				return err
			}
			job := jobDesc
			if job == "" {
				job = strings.Join(args, " ")
			}
			res, err := a.EvaluateResume(cmd.Context(), app.ResumeRequest{
				FileName:       filepath.Base(resumePath),
				Data:           data,
				JobDescription: job,
				K:              topK,
			})
			if err != nil {
				return err
			}
			report = res.Report
		} else {
			k := topK
			if k == 0 {
				k = a.Config().TopK
			}
			report, err = a.Report(cmd.Context(), strings.Join(args, " "), namespace, k)
			if err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		switch reportFormat {
		case "markdown", "md":
			md := app.RenderMarkdown(report)
			if render := markdownRenderer(out); render != nil {
				if styled, err := render(md); err == nil {
					md = styled
				}
			}
			fmt.Fprintln(out, md)
		case "html":
			html, err := app.RenderHTML(report)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, html)
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		default:
			return fmt.Errorf("unknown format %q (want markdown, html or json)", reportFormat)
		}
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{queryCmd, reportCmd} {
		cmd.Flags().IntVarP(&topK, "top", "k", 0, "number of chunks to retrieve (defaults to TOP_K)")
	}
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "markdown", "output format: markdown, html or json")
	reportCmd.Flags().StringVar(&resumePath, "resume", "", "resume file to evaluate")
	reportCmd.Flags().StringVar(&jobDesc, "job", "", "job description for --resume")

	rootCmd.AddCommand(queryCmd, reportCmd)
}
