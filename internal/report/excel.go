package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	activitySheet = "Activity"
	summarySheet  = "Summary"
)

// ExcelExporter writes the rows and the rollups of one job into a workbook
// with an Activity and a Summary sheet.
type ExcelExporter struct {
	Layout Layout
}

func NewExcelExporter(layout Layout) *ExcelExporter {
	return &ExcelExporter{Layout: layout}
}

func (e *ExcelExporter) Export(path string, result *Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", activitySheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "#000000", Style: 1},
			{Type: "right", Color: "#000000", Style: 1},
			{Type: "top", Color: "#000000", Style: 1},
			{Type: "bottom", Color: "#000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	records := make([][]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		records = append(records, e.Layout.Record(row))
	}
	if err := e.fillSheet(f, activitySheet, e.Layout.Header, records, headerStyle); err != nil {
		return fmt.Errorf("failed to create activity sheet: %w", err)
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	records = records[:0]
	for _, r := range result.Rollups {
		records = append(records, RollupRecord(e.Layout, r))
	}
	if err := e.fillSheet(f, summarySheet, RollupHeader(e.Layout), records, headerStyle); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	f.SetActiveSheet(0)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save excel file: %w", err)
	}
	return nil
}

func (e *ExcelExporter) fillSheet(f *excelize.File, sheet string, header []string, records [][]string, headerStyle int) error {
	for col, name := range header {
		cell := cellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, HeaderLabel(name)); err != nil {
			return err
		}
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for i, record := range records {
		for col, value := range record {
			if err := f.SetCellValue(sheet, cellName(col+1, i+2), value); err != nil {
				return err
			}
		}
	}

	for col, name := range header {
		letter := columnLetter(col + 1)
		f.SetColWidth(sheet, letter, letter, columnWidth(name))
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// HeaderLabel turns a CSV column name into a sheet heading, e.g.
// "attendees_count" -> "Attendees Count".
func HeaderLabel(column string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(column, "_", " "))
}

func columnWidth(column string) float64 {
	switch column {
	case "title", "title_or_message":
		return 50
	case "url", "link", "meet_link":
		return 45
	case "timestamp", "start", "end", "created_at", "merged_at", "first_activity", "last_activity":
		return 22
	default:
		return 15
	}
}

func cellName(col, row int) string {
	return fmt.Sprintf("%s%d", columnLetter(col), row)
}

func columnLetter(col int) string {
	result := ""
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}
