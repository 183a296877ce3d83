package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultFloor = 10 * time.Second
	DefaultSlack = 2 * time.Second
)

// Backoff waits out a single rate-limit window and retries once. A second
// failure, rate-limited or not, is returned to the caller.
type Backoff struct {
	Floor time.Duration
	Slack time.Duration
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
	Log   logrus.FieldLogger
}

func NewBackoff(log logrus.FieldLogger) *Backoff {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Backoff{
		Floor: DefaultFloor,
		Slack: DefaultSlack,
		Now:   time.Now,
		Sleep: sleepCtx,
		Log:   log,
	}
}

// Delay is max(reset - now + slack, floor), computed on whole epoch seconds
// like the X-RateLimit-Reset header. An unknown reset yields the floor.
func (b *Backoff) Delay(reset time.Time) time.Duration {
	if reset.IsZero() {
		return b.Floor
	}
	wait := time.Duration(reset.Unix()-b.Now().Unix())*time.Second + b.Slack
	if wait < b.Floor {
		return b.Floor
	}
	return wait
}

// Do runs fn, and on a rate-limit error sleeps Delay(reset) and runs it once more.
func (b *Backoff) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	err := fn(ctx)
	rl, ok := AsRateLimit(err)
	if !ok {
		return err
	}

	wait := b.Delay(rl.Reset)
	b.Log.WithFields(logrus.Fields{
		"op":    op,
		"sleep": wait.String(),
	}).Warn("rate limited, backing off")

	if err := b.Sleep(ctx, wait); err != nil {
		return fmt.Errorf("%s: backoff interrupted: %w", op, err)
	}

	if err := fn(ctx); err != nil {
		if IsRateLimited(err) {
			return fmt.Errorf("%s: still rate limited after waiting %s: %w", op, wait, err)
		}
		return err
	}
	return nil
}

// Pacer optionally spaces requests with a token bucket before handing them to
// the Backoff.
type Pacer struct {
	Backoff *Backoff
	Limiter *rate.Limiter
}

func NewPacer(log logrus.FieldLogger, limiter *rate.Limiter) *Pacer {
	return &Pacer{Backoff: NewBackoff(log), Limiter: limiter}
}

// Every builds a limiter allowing one request per interval; zero disables pacing.
func Every(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

func (p *Pacer) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	if p.Limiter != nil {
		if err := p.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}
	return p.Backoff.Do(ctx, op, fn)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
