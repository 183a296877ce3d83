package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// SummaryTimeLayout is how rollup first/last activity times are printed.
const SummaryTimeLayout = "2006-01-02 15:04:05 MST"

type CSVExporter struct {
	Layout Layout
}

func NewCSVExporter(layout Layout) *CSVExporter {
	return &CSVExporter{Layout: layout}
}

// ExportRows writes one line per row using the layout's fixed header.
func (e *CSVExporter) ExportRows(path string, rows []Row) error {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, e.Layout.Record(row))
	}
	return writeCSV(path, e.Layout.Header, records)
}

// ExportRollups writes one line per entity.
func (e *CSVExporter) ExportRollups(path string, rollups []*Rollup) error {
	records := make([][]string, 0, len(rollups))
	for _, r := range rollups {
		records = append(records, RollupRecord(e.Layout, r))
	}
	return writeCSV(path, RollupHeader(e.Layout), records)
}

// RollupHeader is entity, title, url, first/last activity, one column per
// category, total_actions and active_days.
func RollupHeader(layout Layout) []string {
	header := []string{layout.EntityColumn, "title", "url", "first_activity", "last_activity"}
	for _, c := range layout.Categories {
		header = append(header, c.Column)
	}
	return append(header, "total_actions", "active_days")
}

func RollupRecord(layout Layout, r *Rollup) []string {
	record := []string{
		r.EntityID,
		r.Title,
		r.URL,
		FormatSummaryTime(r.FirstSeen),
		FormatSummaryTime(r.LastSeen),
	}
	for _, c := range layout.Categories {
		record = append(record, strconv.Itoa(r.Count(c.Category)))
	}
	return append(record,
		strconv.Itoa(r.Total),
		strconv.Itoa(r.ActiveDayCount()),
	)
}

func FormatSummaryTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(SummaryTimeLayout)
}

func writeCSV(path string, header []string, records [][]string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}
