package report

import (
	"context"
	"fmt"

	"github.com/Afrawles/devexport/internal/window"
	"github.com/sirupsen/logrus"
)

type Generator struct {
	Source Source
	Log    logrus.FieldLogger
}

func NewGenerator(src Source, log logrus.FieldLogger) *Generator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Generator{Source: src, Log: log.WithField("source", src.Name())}
}

// Result is everything one export job produced.
type Result struct {
	Window     window.Window
	Layout     Layout
	Rows       []Row
	Rollups    []*Rollup
	Counts     map[Category]int
	Dropped    int
	Duplicates int
}

func (r *Result) Count(c Category) int { return r.Counts[c] }

// TotalActions sums the rollup totals.
func (r *Result) TotalActions() int {
	n := 0
	for _, ru := range r.Rollups {
		n += ru.Total
	}
	return n
}

// Generate checks the source, fetches its rows, drops the ones dated outside
// the window, dedupes and folds them into rollups.
func (g *Generator) Generate(ctx context.Context, w window.Window) (*Result, error) {
	if err := g.Source.HealthCheck(ctx); err != nil {
		return nil, fmt.Errorf("%s health check failed: %w", g.Source.Name(), err)
	}

	g.Log.WithField("window", w.String()).Info("fetching activity")

	rows, err := g.Source.Rows(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from %s: %w", g.Source.Name(), err)
	}
	fetched := len(rows)

	rows = InWindow(rows, w)
	dropped := fetched - len(rows)

	if d, ok := g.Source.(Deduper); ok {
		rows = Dedupe(rows, d.DedupeKey)
	}
	duplicates := fetched - dropped - len(rows)

	rollups := Aggregate(rows)
	counts := make(map[Category]int)
	for _, row := range rows {
		counts[row.Category]++
	}

	g.Log.WithFields(logrus.Fields{
		"fetched":    fetched,
		"kept":       len(rows),
		"dropped":    dropped,
		"duplicates": duplicates,
		"entities":   len(rollups),
	}).Info("activity aggregated")

	return &Result{
		Window:     w,
		Layout:     g.Source.Layout(),
		Rows:       rows,
		Rollups:    rollups.Sorted(),
		Counts:     counts,
		Dropped:    dropped,
		Duplicates: duplicates,
	}, nil
}

// InWindow drops rows whose known date lies outside w. Rows without a
// parseable timestamp are kept.
func InWindow(rows []Row, w window.Window) []Row {
	out := rows[:0:0]
	for _, row := range rows {
		if row.Date != "" && !w.Contains(row.Date) {
			continue
		}
		out = append(out, row)
	}
	return out
}
