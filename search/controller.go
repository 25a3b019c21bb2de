package search

import (
	"context"
	"fmt"
	"iter"

	"github.com/snow-ghost/cracker/core"
	"github.com/snow-ghost/cracker/mutate"
	"github.com/snow-ghost/cracker/pkg/logging"
	"github.com/snow-ghost/cracker/pkg/metrics"
	"go.uber.org/zap"
)

// AnyDistance makes the controller widen the edit distance from zero until the
// password is found or the distance reaches the seed length.
const AnyDistance = -1

// Controller drives iterative deepening over edit distance.
type Controller struct {
	gen      *mutate.Generator
	distance int
	logger   *zap.Logger
	metrics  *metrics.SearchMetrics
	observe  func(distance int, b core.Budget)
}

type Option func(*Controller)

// WithDistance restricts the search to exactly d edits. AnyDistance restores widening.
func WithDistance(d int) Option {
	return func(c *Controller) { c.distance = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = logging.Component(l, "search") }
}

func WithMetrics(m *metrics.SearchMetrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithObserver registers fn to be called before each composition is enumerated.
func WithObserver(fn func(distance int, b core.Budget)) Option {
	return func(c *Controller) { c.observe = fn }
}

func NewController(gen *mutate.Generator, opts ...Option) *Controller {
	c := &Controller{
		gen:      gen,
		distance: AnyDistance,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search looks for the password near seed. With a fixed distance only that distance is
// tried; otherwise distances 0 through len(seed) are tried in order. Not finding the
// password is reported as core.NotFound with a nil error.
func (c *Controller) Search(ctx context.Context, seed string) (core.Outcome, error) {
	if err := core.ValidateSeed(seed); err != nil {
		return core.NotFound, err
	}
	if r := c.gen.CharRange(); !r.Complete() {
		c.logger.Warn("character step is not 1; not all passwords will be checked",
			zap.Int("char_step", r.Step))
	}

	if c.distance >= 0 {
		return c.searchDistance(ctx, seed, c.distance)
	}
	for d := 0; ; d++ {
		out, err := c.searchDistance(ctx, seed, d)
		if err != nil || out.Found {
			return out, err
		}
		if d >= len(seed) {
			return core.NotFound, nil
		}
		c.logger.Info("password not found; trying next distance",
			zap.Int("distance", d), zap.Int("next", d+1))
	}
}

func (c *Controller) searchDistance(ctx context.Context, seed string, d int) (core.Outcome, error) {
	c.metrics.SetDistance(d)
	for b := range Compositions(d) {
		c.logger.Debug("enumerating composition", zap.Int("distance", d), zap.Stringer("budget", b))
		if c.observe != nil {
			c.observe(d, b)
		}
		c.metrics.RecordComposition(d)

		before := c.gen.Tested()
		out, err := c.gen.Generate(ctx, seed, b)
		c.metrics.RecordCandidates(d, c.gen.Tested()-before)
		if err != nil {
			return core.NotFound, fmt.Errorf("search %s: %w", b, err)
		}
		if out.Found {
			c.logger.Info("password found", zap.Int("distance", d), zap.Stringer("budget", b))
			return out, nil
		}
	}
	return core.NotFound, nil
}

// Compositions yields every split of d edits into substitutions, transpositions,
// insertions and deletions, substitutions varying slowest and deletions fastest.
func Compositions(d int) iter.Seq[core.Budget] {
	return func(yield func(core.Budget) bool) {
		for s := 0; s <= d; s++ {
			for t := 0; s+t <= d; t++ {
				for a := 0; s+t+a <= d; a++ {
					b := core.Budget{Substitutions: s, Transpositions: t, Insertions: a, Deletions: d - s - t - a}
					if !yield(b) {
						return
					}
				}
			}
		}
	}
}
