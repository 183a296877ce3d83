package fetch

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testBackoff(clock *fakeClock) *Backoff {
	b := NewBackoff(quietLogger())
	b.Now = clock.Now
	b.Sleep = clock.Sleep
	return b
}

func TestBackoff_Delay(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := testBackoff(clock)

	assert.Equal(t, 10*time.Second, b.Delay(clock.now.Add(5*time.Second)), "max(5+2, 10)")
	assert.Equal(t, 62*time.Second, b.Delay(clock.now.Add(60*time.Second)))
	assert.Equal(t, 10*time.Second, b.Delay(clock.now.Add(-time.Minute)), "reset in the past")
	assert.Equal(t, 10*time.Second, b.Delay(time.Time{}), "unknown reset")
}

func TestBackoff_WaitsOnceThenRetries(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := testBackoff(clock)

	calls := 0
	err := b.Do(context.Background(), "list", func(context.Context) error {
		calls++
		if calls == 1 {
			return &RateLimitError{Reset: clock.now.Add(5 * time.Second)}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{10 * time.Second}, clock.sleeps)
}

func TestBackoff_SecondRateLimitIsFatal(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := testBackoff(clock)

	calls := 0
	err := b.Do(context.Background(), "search", func(context.Context) error {
		calls++
		return &RateLimitError{Reset: clock.now.Add(5 * time.Second)}
	})

	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.ErrorContains(t, err, "still rate limited")
	assert.Equal(t, 2, calls, "exactly one retry")
	assert.Len(t, clock.sleeps, 1)
}

func TestBackoff_OtherErrorsAreNotRetried(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := testBackoff(clock)

	boom := &StatusError{Status: 500, Body: "boom"}
	calls := 0
	err := b.Do(context.Background(), "get", func(context.Context) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.sleeps)
	assert.Equal(t, 500, StatusOf(err))
}

func TestBackoff_RetryReturnsNonRateLimitError(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := testBackoff(clock)

	notFound := &StatusError{Status: 404}
	calls := 0
	err := b.Do(context.Background(), "get", func(context.Context) error {
		calls++
		if calls == 1 {
			return &RateLimitError{}
		}
		return notFound
	})

	assert.ErrorIs(t, err, notFound)
	assert.False(t, IsRateLimited(err))
	assert.Equal(t, 2, calls)
}

func TestBackoff_SleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBackoff(quietLogger())
	b.Floor = time.Hour

	err := b.Do(ctx, "get", func(context.Context) error { return &RateLimitError{} })
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPacer_WithoutLimiter(t *testing.T) {
	p := NewPacer(quietLogger(), Every(0))
	assert.Nil(t, p.Limiter)

	calls := 0
	require.NoError(t, p.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return nil
	}))
	assert.Equal(t, 1, calls)
}

func TestPacer_LimiterWaitErrors(t *testing.T) {
	p := NewPacer(quietLogger(), Every(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Do(ctx, "op", func(context.Context) error { return nil })
	assert.ErrorContains(t, err, "rate limiter")
}
