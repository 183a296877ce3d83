package report

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"text/template"
	"time"

	"github.com/Afrawles/devexport/internal/window"
)

//go:embed "templates"
var templateFS embed.FS

type MarkdownExporter struct {
	Layout Layout
}

func NewMarkdownExporter(layout Layout) *MarkdownExporter {
	return &MarkdownExporter{Layout: layout}
}

// WeekCount is the number of rows dated in one YYYY-Www week.
type WeekCount struct {
	Week  string
	Count int
}

func (e *MarkdownExporter) Export(path string, result *Result) error {
	funcMap := template.FuncMap{
		"stamp":   FormatSummaryTime,
		"count":   countOf,
		"byWeek":  ByWeek,
		"byTotal": ByTotal,
	}

	name := e.Layout.Template
	tmpl, err := template.New(name).Funcs(funcMap).ParseFS(templateFS, "templates/"+name)
	if err != nil {
		return fmt.Errorf("failed to parse markdown template: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create markdown file: %w", err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, result); err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	return f.Close()
}

// countOf looks a category up by name on either a *Result or a *Rollup.
func countOf(obj any, name string) (int, error) {
	c, ok := ParseCategory(name)
	if !ok {
		return 0, fmt.Errorf("unknown category %q", name)
	}
	switch v := obj.(type) {
	case *Result:
		return v.Count(c), nil
	case *Rollup:
		return v.Count(c), nil
	default:
		return 0, fmt.Errorf("count: unsupported type %T", obj)
	}
}

// Week labels t as YYYY-Www where weeks start on Monday and days before the
// year's first Monday fall in week 00.
func Week(t time.Time) string {
	t = t.UTC()
	monday := (int(t.Weekday()) + 6) % 7
	week := (t.YearDay() - 1 + 7 - monday) / 7
	return fmt.Sprintf("%d-W%02d", t.Year(), week)
}

// ByWeek counts dated rows per week of their Date, most recent week first.
func ByWeek(rows []Row) []WeekCount {
	counts := make(map[string]int)
	for _, row := range rows {
		day, err := time.Parse(window.DateLayout, row.Date)
		if err != nil {
			continue
		}
		counts[Week(day)]++
	}

	out := make([]WeekCount, 0, len(counts))
	for week, n := range counts {
		out = append(out, WeekCount{Week: week, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Week > out[j].Week })
	return out
}

// ByTotal reorders rollups by total activity, keeping the incoming order for ties.
func ByTotal(rollups []*Rollup) []*Rollup {
	out := slices.Clone(rollups)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}
