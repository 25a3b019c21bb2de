// Package oracle holds the oracle adapters and decorators shared by both checker
// mechanisms. The mechanisms themselves live in the process and plugin subpackages.
package oracle

import (
	"context"
	"fmt"
	"io"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/snow-ghost/cracker/core"
	"github.com/snow-ghost/cracker/pkg/metrics"
	"golang.org/x/time/rate"
)

// Func adapts a function to core.Oracle.
type Func func(ctx context.Context, candidate string) (bool, error)

func (f Func) Test(ctx context.Context, candidate string) (bool, error) {
	return f(ctx, candidate)
}

// Exact accepts only want.
func Exact(want string) core.Oracle {
	return Func(func(_ context.Context, candidate string) (bool, error) {
		return candidate == want, nil
	})
}

// Close releases o if it owns resources.
func Close(ctx context.Context, o core.Oracle) error {
	if c, ok := o.(core.Closer); ok {
		return c.Close(ctx)
	}
	return nil
}

type dryRun struct {
	next   core.Oracle
	report io.Writer
}

// DryRun reports every candidate to w, one per line, and rejects it without asking o.
// Closing the result still closes o, so a plugin is initialized and finalized as usual.
func DryRun(o core.Oracle, w io.Writer) core.Oracle {
	return &dryRun{next: o, report: w}
}

func (d *dryRun) Test(_ context.Context, candidate string) (bool, error) {
	if _, err := fmt.Fprintln(d.report, candidate); err != nil {
		return false, fmt.Errorf("report candidate: %w", err)
	}
	return false, nil
}

func (d *dryRun) Close(ctx context.Context) error { return Close(ctx, d.next) }

type instrumented struct {
	next    core.Oracle
	name    string
	metrics *metrics.SearchMetrics
}

// Instrument records the latency and failures of every call to o under name.
func Instrument(o core.Oracle, name string, m *metrics.SearchMetrics) core.Oracle {
	if m == nil {
		return o
	}
	return &instrumented{next: o, name: name, metrics: m}
}

func (i *instrumented) Test(ctx context.Context, candidate string) (bool, error) {
	start := time.Now()
	ok, err := i.next.Test(ctx, candidate)
	i.metrics.RecordOracleCall(i.name, time.Since(start), err)
	return ok, err
}

func (i *instrumented) Close(ctx context.Context) error { return Close(ctx, i.next) }

type throttled struct {
	next    core.Oracle
	limiter *rate.Limiter
}

// Throttle caps calls to o at perSecond with the given burst. A non-positive rate
// returns o unchanged.
func Throttle(o core.Oracle, perSecond float64, burst int) core.Oracle {
	if perSecond <= 0 {
		return o
	}
	if burst < 1 {
		burst = 1
	}
	return &throttled{next: o, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (t *throttled) Test(ctx context.Context, candidate string) (bool, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limiter wait failed: %w", err)
	}
	return t.next.Test(ctx, candidate)
}

func (t *throttled) Close(ctx context.Context) error { return Close(ctx, t.next) }

type memo struct {
	next    core.Oracle
	seen    *lru.Cache[string, bool]
	metrics *metrics.SearchMetrics
}

// Memo answers repeated candidates from the last size verdicts instead of asking o again.
// The generator revisits some strings, e.g. a substitution that writes back the original
// character, and those repeats are free with a memo in front of an expensive checker.
// A non-positive size returns o unchanged.
func Memo(o core.Oracle, size int, m *metrics.SearchMetrics) (core.Oracle, error) {
	if size <= 0 {
		return o, nil
	}
	cache, err := lru.New[string, bool](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memo cache: %w", err)
	}
	return &memo{next: o, seen: cache, metrics: m}, nil
}

func (c *memo) Test(ctx context.Context, candidate string) (bool, error) {
	if ok, hit := c.seen.Get(candidate); hit {
		c.metrics.RecordMemoHit()
		return ok, nil
	}
	ok, err := c.next.Test(ctx, candidate)
	if err != nil {
		return false, err
	}
	c.seen.Add(candidate, ok)
	return ok, nil
}

func (c *memo) Close(ctx context.Context) error { return Close(ctx, c.next) }
