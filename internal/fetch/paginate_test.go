package fetch

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedPages(n int, calls *[]string) PageFunc[int] {
	return func(_ context.Context, cursor string) (Page[int], error) {
		*calls = append(*calls, cursor)
		i := 0
		if cursor != "" {
			i, _ = strconv.Atoi(cursor)
		}
		page := Page[int]{Items: []int{i * 10, i*10 + 1}}
		if i+1 < n {
			page.Next = strconv.Itoa(i + 1)
		}
		return page, nil
	}
}

func TestPages_FollowsCursorUntilDone(t *testing.T) {
	var calls []string
	p := NewPacer(quietLogger(), nil)

	all, err := Collect(Pages(context.Background(), p, "numbers", numberedPages(3, &calls)))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 10, 11, 20, 21}, all)
	assert.Equal(t, []string{"", "1", "2"}, calls)
}

func TestPages_IsLazy(t *testing.T) {
	var calls []string
	p := NewPacer(quietLogger(), nil)

	for items, err := range Pages(context.Background(), p, "numbers", numberedPages(5, &calls)) {
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1}, items)
		break
	}

	assert.Len(t, calls, 1, "no read-ahead past the consumed page")
}

func TestPages_StopsOnRepeatedCursor(t *testing.T) {
	p := NewPacer(quietLogger(), nil)
	calls := 0
	stuck := func(_ context.Context, cursor string) (Page[string], error) {
		calls++
		return Page[string]{Items: []string{"x"}, Next: "same"}, nil
	}

	all, err := Collect(Pages(context.Background(), p, "stuck", stuck))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "x"}, all)
	assert.Equal(t, 2, calls)
}

func TestPages_ErrorEndsSequence(t *testing.T) {
	p := NewPacer(quietLogger(), nil)
	boom := errors.New("boom")

	fetch := func(_ context.Context, cursor string) (Page[int], error) {
		if cursor == "" {
			return Page[int]{Items: []int{1}, Next: "2"}, nil
		}
		return Page[int]{}, boom
	}

	all, err := Collect(Pages(context.Background(), p, "flaky", fetch))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1}, all)
}

func TestPages_RateLimitedPageIsRetriedOnce(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	p := &Pacer{Backoff: testBackoff(clock)}

	attempts := map[string]int{}
	fetch := func(_ context.Context, cursor string) (Page[int], error) {
		attempts[cursor]++
		if cursor == "1" && attempts[cursor] == 1 {
			return Page[int]{}, &RateLimitError{Reset: clock.now.Add(30 * time.Second)}
		}
		if cursor == "" {
			return Page[int]{Items: []int{1}, Next: "1"}, nil
		}
		return Page[int]{Items: []int{2}}, nil
	}

	all, err := Collect(Pages(context.Background(), p, "list", fetch))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, all)
	assert.Equal(t, map[string]int{"": 1, "1": 2}, attempts)
	assert.Equal(t, []time.Duration{32 * time.Second}, clock.sleeps)
}

func TestItems_Flattens(t *testing.T) {
	var calls []string
	p := NewPacer(quietLogger(), nil)

	var got []int
	for v, err := range Items(context.Background(), p, "numbers", numberedPages(2, &calls)) {
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []int{0, 1, 10, 11}, got)
}
