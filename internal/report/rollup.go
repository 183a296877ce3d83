package report

import (
	"sort"
	"time"
)

// Rollup is the running summary of one entity (file, repo or event series).
type Rollup struct {
	EntityID   string
	Title      string
	URL        string
	FirstSeen  time.Time
	LastSeen   time.Time
	Counts     map[Category]int
	Total      int
	ActiveDays map[string]struct{}
}

func newRollup(id string) *Rollup {
	return &Rollup{
		EntityID:   id,
		Counts:     make(map[Category]int),
		ActiveDays: make(map[string]struct{}),
	}
}

func (r *Rollup) add(row Row) {
	if row.Title != "" {
		r.Title = row.Title
	}
	if row.URL != "" {
		r.URL = row.URL
	}

	if ts := row.Timestamp; !ts.IsZero() {
		if r.FirstSeen.IsZero() || ts.Before(r.FirstSeen) {
			r.FirstSeen = ts
		}
		if r.LastSeen.IsZero() || ts.After(r.LastSeen) {
			r.LastSeen = ts
		}
	}

	if row.Date != "" {
		r.ActiveDays[row.Date] = struct{}{}
	}

	r.Counts[row.Category]++
	r.Total++
}

func (r *Rollup) Count(c Category) int { return r.Counts[c] }

func (r *Rollup) ActiveDayCount() int { return len(r.ActiveDays) }

// Rollups is keyed by entity id.
type Rollups map[string]*Rollup

// Fold adds row to acc and returns it. Rows without an entity id are ignored.
func Fold(acc Rollups, row Row) Rollups {
	if acc == nil {
		acc = make(Rollups)
	}
	if row.EntityID == "" {
		return acc
	}

	r, ok := acc[row.EntityID]
	if !ok {
		r = newRollup(row.EntityID)
		acc[row.EntityID] = r
	}
	r.add(row)
	return acc
}

// Aggregate folds every row into a fresh Rollups.
func Aggregate(rows []Row) Rollups {
	acc := make(Rollups, len(rows))
	for _, row := range rows {
		acc = Fold(acc, row)
	}
	return acc
}

// Sorted orders rollups by LastSeen, newest first. Rollups without a known
// timestamp come last; ties break on entity id.
func (rs Rollups) Sorted() []*Rollup {
	out := make([]*Rollup, 0, len(rs))
	for _, r := range rs {
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.LastSeen.IsZero() != b.LastSeen.IsZero() {
			return b.LastSeen.IsZero()
		}
		if !a.LastSeen.Equal(b.LastSeen) {
			return a.LastSeen.After(b.LastSeen)
		}
		return a.EntityID < b.EntityID
	})
	return out
}

// Dedupe keeps the first item for every key, preserving order.
func Dedupe[T any, K comparable](items []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}
