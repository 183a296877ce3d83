package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Afrawles/devexport/internal/config"
	"github.com/Afrawles/devexport/internal/devexport"
	"github.com/Afrawles/devexport/internal/report"
	"github.com/Afrawles/devexport/internal/window"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	since      string
	until      string
	configPath string
	verbose    bool
	xlsxOutput string

	cfg    *config.Config
	logger *logrus.Entry
)

var rootCmd = &cobra.Command{
	Use:   "devexport",
	Short: "Export your calendar, Google Docs and GitHub activity to CSV and Markdown",
	Long: `devexport pulls a trailing window of activity (default: the last 182 days)
from Google Calendar, Google Drive Activity or GitHub, and writes a detailed
CSV plus per-meeting, per-document or per-repository summaries.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&since, "since", "", "Start date (YYYY-MM-DD, default: today-182d)")
	rootCmd.PersistentFlags().StringVar(&until, "until", "", "End date (YYYY-MM-DD, default: today)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./devexport.yaml, ~/.config/devexport/devexport.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().StringVar(&xlsxOutput, "xlsx", "", "Also write an Excel workbook with activity and summary sheets")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.InfoLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	if cfg.Log.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	logger = log.WithField("run", uuid.NewString())
	return nil
}

func resolveWindow() (window.Window, error) {
	return window.Resolve(since, until, time.Now().UTC())
}

// runJob fetches and writes one exporter's reports, then prints the summary
// line on stdout.
func runJob(ctx context.Context, src report.Source, w window.Window, out devexport.Outputs) error {
	out.XLSX = xlsxOutput
	app := devexport.New(cfg, logger, src)

	bar := newSpinner(fmt.Sprintf("Fetching %s activity", src.Name()))
	result, err := app.Run(ctx, w, out)
	finishBar(bar)
	if err != nil {
		return err
	}

	fmt.Println(devexport.Summary(result, out))
	return nil
}
