// Package fetch drives cursor-paginated API queries with a single-shot
// rate-limit backoff.
//
// A query moves through INIT -> FETCH_PAGE -> (BACKOFF -> FETCH_PAGE) -> DONE.
// Each page is handed to the consumer before the next one is requested, and a
// query can only be restarted from the beginning.
package fetch

import (
	"context"
	"iter"
)

// Page is one decoded response. Next is the cursor for the following page
// (a page token or a page number); empty means this was the last page.
type Page[T any] struct {
	Items []T
	Next  string
}

// PageFunc fetches the page addressed by cursor. The first call gets "".
type PageFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

// Pages returns a lazy sequence of page payloads. Iteration stops after the
// first error, which is yielded once.
func Pages[T any](ctx context.Context, p *Pacer, op string, fetch PageFunc[T]) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		cursor := ""
		for {
			var page Page[T]
			err := p.Do(ctx, op, func(ctx context.Context) error {
				var err error
				page, err = fetch(ctx, cursor)
				return err
			})
			if err != nil {
				yield(nil, err)
				return
			}

			if !yield(page.Items, nil) {
				return
			}

			// a cursor that does not advance would loop forever
			if page.Next == "" || page.Next == cursor {
				return
			}
			cursor = page.Next
		}
	}
}

// Items flattens Pages into single records.
func Items[T any](ctx context.Context, p *Pacer, op string, fetch PageFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for items, err := range Pages(ctx, p, op, fetch) {
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// Collect drains a page sequence.
func Collect[T any](seq iter.Seq2[[]T, error]) ([]T, error) {
	var all []T
	for items, err := range seq {
		if err != nil {
			return all, err
		}
		all = append(all, items...)
	}
	return all, nil
}
