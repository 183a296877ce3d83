// Package devexport runs one exporter job end to end: fetch, normalize,
// aggregate and write the report files.
package devexport

import (
	"context"
	"fmt"
	"strings"

	"github.com/Afrawles/devexport/internal/config"
	"github.com/Afrawles/devexport/internal/report"
	"github.com/Afrawles/devexport/internal/window"
	"github.com/sirupsen/logrus"
)

// Outputs are the files a job writes. Rows is always written; the others are
// skipped when empty.
type Outputs struct {
	Rows       string
	SummaryCSV string
	SummaryMD  string
	XLSX       string
}

// Files lists the non-empty output paths in write order.
func (o Outputs) Files() []string {
	var files []string
	for _, f := range []string{o.Rows, o.SummaryCSV, o.SummaryMD, o.XLSX} {
		if f != "" {
			files = append(files, f)
		}
	}
	return files
}

type Application struct {
	Config    *config.Config
	Logger    logrus.FieldLogger
	Generator *report.Generator
}

func New(cfg *config.Config, log logrus.FieldLogger, src report.Source) *Application {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("exporter", src.Name())
	return &Application{
		Config:    cfg,
		Logger:    log,
		Generator: report.NewGenerator(src, log),
	}
}

// Run fetches the window and writes every requested output. Nothing is written
// when fetching fails.
func (app *Application) Run(ctx context.Context, w window.Window, out Outputs) (*report.Result, error) {
	if out.Rows == "" {
		return nil, fmt.Errorf("no output file given")
	}

	result, err := app.Generator.Generate(ctx, w)
	if err != nil {
		return nil, err
	}

	if len(result.Rows) == 0 {
		app.Logger.Warn("no activity found for this window")
	}

	csvExporter := report.NewCSVExporter(result.Layout)
	if err := csvExporter.ExportRows(out.Rows, result.Rows); err != nil {
		return nil, fmt.Errorf("failed to export CSV: %w", err)
	}
	app.Logger.WithField("file", out.Rows).Info("report exported")

	if out.SummaryCSV != "" {
		if err := csvExporter.ExportRollups(out.SummaryCSV, result.Rollups); err != nil {
			return nil, fmt.Errorf("failed to export summary CSV: %w", err)
		}
		app.Logger.WithField("file", out.SummaryCSV).Info("summary exported")
	}

	if out.SummaryMD != "" {
		if err := report.NewMarkdownExporter(result.Layout).Export(out.SummaryMD, result); err != nil {
			return nil, fmt.Errorf("failed to export Markdown: %w", err)
		}
		app.Logger.WithField("file", out.SummaryMD).Info("summary exported")
	}

	if out.XLSX != "" {
		if err := report.NewExcelExporter(result.Layout).Export(out.XLSX, result); err != nil {
			return nil, fmt.Errorf("failed to export workbook: %w", err)
		}
		app.Logger.WithField("file", out.XLSX).Info("workbook exported")
	}

	return result, nil
}

// Summary is the one-line report printed when a job succeeds, e.g.
// "github: 42 records, 7 repos (PRs: 5, Commits: 30, Issues: 2, Reviews: 5) | 2024-03-17 .. 2024-09-15 | github_activity.csv, github_activity_summary.md".
func Summary(result *report.Result, out Outputs) string {
	layout := result.Layout

	counts := make([]string, 0, len(layout.Categories))
	for _, c := range layout.Categories {
		counts = append(counts, fmt.Sprintf("%s: %d", c.Label, result.Count(c.Category)))
	}

	entity := strings.TrimSuffix(layout.EntityColumn, "_id")
	return fmt.Sprintf("%s: %d records, %d %ss (%s) | %s | %s",
		layout.Name,
		len(result.Rows),
		len(result.Rollups),
		entity,
		strings.Join(counts, ", "),
		result.Window,
		strings.Join(out.Files(), ", "),
	)
}
