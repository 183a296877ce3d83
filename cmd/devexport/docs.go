package main

import (
	"github.com/Afrawles/devexport/internal/devexport"
	"github.com/spf13/cobra"
)

var docsOut devexport.Outputs

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Export your Google Docs create, edit and comment activity",
	RunE:  runDocs,
}

func init() {
	rootCmd.AddCommand(docsCmd)

	docsCmd.Flags().StringVar(&docsOut.Rows, "out", "google_docs_activity.csv", "Detailed output CSV")
	docsCmd.Flags().StringVar(&docsOut.SummaryCSV, "summary-csv", "google_docs_files_summary.csv", "CSV summary by file")
	docsCmd.Flags().StringVar(&docsOut.SummaryMD, "summary-md", "google_docs_files_summary.md", "Markdown summary by file")
}

func runDocs(cmd *cobra.Command, args []string) error {
	w, err := resolveWindow()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := devexport.GoogleClient(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	src, err := devexport.DocsSource(cmd.Context(), client, cfg, logger)
	if err != nil {
		return err
	}

	return runJob(cmd.Context(), src, w, docsOut)
}
