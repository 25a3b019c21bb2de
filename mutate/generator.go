package mutate

import (
	"context"
	"fmt"

	"github.com/snow-ghost/cracker/core"
	"github.com/snow-ghost/cracker/pkg/logging"
	"go.uber.org/zap"
)

// Generator enumerates every candidate reachable from a seed with an exact edit budget
// and tests each one against an oracle.
//
// Edits are applied in a fixed pipeline: substitutions on the seed, then adjacent
// transpositions, then insertions, then deletions on whatever the earlier stages produced.
// Mutations that need a different ordering of operation types are not reachable.
//
// A Generator owns its buffer and is not safe for concurrent use.
type Generator struct {
	oracle core.Oracle
	chars  core.CharRange
	buf    *Buffer
	logger *zap.Logger
	tested uint64
}

// Option configures a Generator.
type Option func(*Generator)

// WithCharRange sets the characters tried at substituted and inserted positions.
func WithCharRange(r core.CharRange) Option {
	return func(g *Generator) { g.chars = r }
}

// WithBuffer makes the generator edit b instead of allocating its own.
func WithBuffer(b *Buffer) Option {
	return func(g *Generator) { g.buf = b }
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = logging.Component(l, "generator") }
}

// NewGenerator returns a generator testing candidates with oracle.
func NewGenerator(oracle core.Oracle, opts ...Option) *Generator {
	g := &Generator{
		oracle: oracle,
		chars:  core.PrintableASCII(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.buf == nil {
		g.buf = NewBuffer(core.BufferCapacity)
	}
	return g
}

// Buffer exposes the working buffer. Between calls it holds the last seed.
func (g *Generator) Buffer() *Buffer { return g.buf }

// CharRange returns the configured character range.
func (g *Generator) CharRange() core.CharRange { return g.chars }

// Tested returns the number of candidates handed to the oracle so far.
func (g *Generator) Tested() uint64 { return g.tested }

// Generate tests every candidate reachable from seed with exactly budget edits and
// returns the first one the oracle accepts. Compositions whose insertions do not fit
// the buffer, or whose deletions exceed the string length, yield no candidates.
// An oracle error stops the enumeration and is returned as is.
func (g *Generator) Generate(ctx context.Context, seed string, budget core.Budget) (core.Outcome, error) {
	if err := budget.Validate(); err != nil {
		return core.NotFound, err
	}
	if err := g.chars.Validate(); err != nil {
		return core.NotFound, err
	}
	if err := g.buf.Reset(seed); err != nil {
		return core.NotFound, fmt.Errorf("load seed: %w", err)
	}
	defer g.buf.Restore(g.buf.Snapshot())

	p := &pass{
		Generator: g,
		ctx:       ctx,
		budget:    budget,
		subPos:    make([]int, budget.Substitutions),
		saved:     make([]byte, budget.Substitutions),
		gaps:      make([]int, budget.Insertions),
		insAt:     make([]int, budget.Insertions),
		delPos:    make([]int, budget.Deletions),
		removed:   make([]byte, budget.Deletions),
	}
	return p.substitute()
}

// pass holds the position sets of one Generate call. All slices are sized once up front
// so the enumeration itself does not allocate.
type pass struct {
	*Generator
	ctx    context.Context
	budget core.Budget

	subPos  []int
	saved   []byte
	gaps    []int
	insAt   []int
	delPos  []int
	removed []byte
}

func (p *pass) substitute() (core.Outcome, error) {
	k := len(p.subPos)
	if k == 0 {
		return p.transpose(0, p.budget.Transpositions)
	}
	n := p.buf.Len()
	if k > n {
		return core.NotFound, nil
	}
	firstCombination(p.subPos)
	for {
		for i, at := range p.subPos {
			p.saved[i] = p.buf.Set(at, p.chars.Lo)
		}
		out, err := p.eachAssignment(p.subPos, func() (core.Outcome, error) {
			return p.transpose(0, p.budget.Transpositions)
		})
		for i, at := range p.subPos {
			p.buf.Set(at, p.saved[i])
		}
		if err != nil || out.Found {
			return out, err
		}
		if !nextCombination(p.subPos, n) {
			return core.NotFound, nil
		}
	}
}

// transpose swaps t adjacent pairs, each starting strictly after the previous one.
func (p *pass) transpose(start, t int) (core.Outcome, error) {
	if t == 0 {
		return p.insert()
	}
	for at := start; at+1 < p.buf.Len(); at++ {
		p.buf.Swap(at)
		out, err := p.transpose(at+1, t-1)
		p.buf.Swap(at)
		if err != nil || out.Found {
			return out, err
		}
	}
	return core.NotFound, nil
}

func (p *pass) insert() (core.Outcome, error) {
	a := len(p.gaps)
	if a == 0 {
		return p.delete()
	}
	n := p.buf.Len()
	if n+a > p.buf.Cap() {
		return core.NotFound, nil
	}
	clear(p.gaps)
	for {
		// Insert right to left so earlier gaps keep their index; the i-th inserted
		// character then sits i places right of its gap.
		for i := a - 1; i >= 0; i-- {
			if err := p.buf.Insert(p.gaps[i], p.chars.Lo); err != nil {
				return core.NotFound, err
			}
		}
		for i, gap := range p.gaps {
			p.insAt[i] = gap + i
		}
		out, err := p.eachAssignment(p.insAt, p.delete)
		for i := a - 1; i >= 0; i-- {
			p.buf.Delete(p.insAt[i])
		}
		if err != nil || out.Found {
			return out, err
		}
		if !nextMultiset(p.gaps, n) {
			return core.NotFound, nil
		}
	}
}

func (p *pass) delete() (core.Outcome, error) {
	d := len(p.delPos)
	if d == 0 {
		return p.test()
	}
	n := p.buf.Len()
	if d > n {
		return core.NotFound, nil
	}
	firstCombination(p.delPos)
	for {
		for i := d - 1; i >= 0; i-- {
			p.removed[i] = p.buf.Delete(p.delPos[i])
		}
		out, err := p.test()
		for i, at := range p.delPos {
			if ierr := p.buf.Insert(at, p.removed[i]); ierr != nil {
				return core.NotFound, ierr
			}
		}
		if err != nil || out.Found {
			return out, err
		}
		if !nextCombination(p.delPos, n) {
			return core.NotFound, nil
		}
	}
}

func (p *pass) test() (core.Outcome, error) {
	candidate := p.buf.String()
	p.tested++
	ok, err := p.oracle.Test(p.ctx, candidate)
	if err != nil {
		return core.NotFound, err
	}
	if ok {
		p.logger.Debug("oracle accepted candidate", zap.Stringer("budget", p.budget))
		return core.Found(candidate, p.budget), nil
	}
	return core.NotFound, nil
}

// eachAssignment runs next for every assignment of the character range to the buffer
// positions in at, which must already hold the range's first character. The rightmost
// position cycles fastest. Positions are left at the first character on return.
func (p *pass) eachAssignment(at []int, next func() (core.Outcome, error)) (core.Outcome, error) {
	for {
		out, err := next()
		if err != nil || out.Found {
			return out, err
		}
		if !p.advance(at) {
			return core.NotFound, nil
		}
	}
}

func (p *pass) advance(at []int) bool {
	for i := len(at) - 1; i >= 0; i-- {
		c, ok := p.chars.Next(p.buf.At(at[i]))
		p.buf.Set(at[i], c)
		if ok {
			return true
		}
	}
	return false
}
