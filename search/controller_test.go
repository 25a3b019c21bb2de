package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/snow-ghost/cracker/core"
	"github.com/snow-ghost/cracker/mutate"
	"github.com/snow-ghost/cracker/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type exact struct {
	want  string
	calls int
	err   error
}

func (e *exact) Test(_ context.Context, candidate string) (bool, error) {
	e.calls++
	if e.err != nil {
		return false, e.err
	}
	return e.want != "" && candidate == e.want, nil
}

type step struct {
	distance int
	budget   core.Budget
}

func TestCompositions(t *testing.T) {
	var got []core.Budget
	for b := range Compositions(1) {
		got = append(got, b)
	}
	assert.Equal(t, []core.Budget{
		{Deletions: 1},
		{Insertions: 1},
		{Transpositions: 1},
		{Substitutions: 1},
	}, got)

	for d := 0; d <= 5; d++ {
		n := 0
		for b := range Compositions(d) {
			require.Equal(t, d, b.Distance())
			require.NoError(t, b.Validate())
			n++
		}
		// stars and bars: C(d+3, 3)
		assert.Equal(t, (d+1)*(d+2)*(d+3)/6, n, "distance %d", d)
	}

	n := 0
	for range Compositions(3) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestSearch_FindsDeletion(t *testing.T) {
	o := &exact{want: "abd"}
	c := NewController(mutate.NewGenerator(o))

	out, err := c.Search(context.Background(), "abcd")
	require.NoError(t, err)
	require.True(t, out.Found)
	assert.Equal(t, "abd", out.Password)
	assert.Equal(t, 1, out.Distance)
	assert.Equal(t, core.Budget{Deletions: 1}, out.Budget)
}

func TestSearch_FindsSubstitution(t *testing.T) {
	o := &exact{want: "password"}
	c := NewController(mutate.NewGenerator(o))

	out, err := c.Search(context.Background(), "passw0rd")
	require.NoError(t, err)
	require.True(t, out.Found)
	assert.Equal(t, "password", out.Password)
	assert.Equal(t, core.Budget{Substitutions: 1}, out.Budget)
}

func TestSearch_SeedMatchesAtDistanceZero(t *testing.T) {
	o := &exact{want: "exact"}
	c := NewController(mutate.NewGenerator(o))

	out, err := c.Search(context.Background(), "exact")
	require.NoError(t, err)
	require.True(t, out.Found)
	assert.Equal(t, 0, out.Distance)
	assert.Equal(t, 1, o.calls)
}

func TestSearch_WidensMonotonicallyAndTerminates(t *testing.T) {
	o := &exact{}
	m := metrics.NewSearchMetrics()
	var steps []step
	gen := mutate.NewGenerator(o, mutate.WithCharRange(core.CharRange{Lo: 'a', Hi: 'c', Step: 1}))
	c := NewController(gen,
		WithMetrics(m),
		WithObserver(func(d int, b core.Budget) { steps = append(steps, step{d, b}) }),
	)

	out, err := c.Search(context.Background(), "ab")
	require.NoError(t, err)
	assert.False(t, out.Found)

	require.Len(t, steps, 1+4+10)
	for i, s := range steps {
		require.Equal(t, s.distance, s.budget.Distance())
		if i > 0 {
			require.GreaterOrEqual(t, s.distance, steps[i-1].distance)
		}
	}
	assert.Equal(t, 0, steps[0].distance)
	assert.Equal(t, 2, steps[len(steps)-1].distance, "gives up once distance reaches the seed length")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CandidatesTotal.WithLabelValues("0")))
	assert.Equal(t, 18.0, testutil.ToFloat64(m.CandidatesTotal.WithLabelValues("1")))
	assert.Equal(t, 174.0, testutil.ToFloat64(m.CandidatesTotal.WithLabelValues("2")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.CompositionsTotal.WithLabelValues("2")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CurrentDistance))
	assert.Equal(t, 1+18+174, o.calls)
	assert.Equal(t, "ab", gen.Buffer().String())
}

func TestSearch_FixedDistance(t *testing.T) {
	o := &exact{}
	var steps []step
	gen := mutate.NewGenerator(o, mutate.WithCharRange(core.CharRange{Lo: 'a', Hi: 'c', Step: 1}))
	c := NewController(gen,
		WithDistance(1),
		WithObserver(func(d int, b core.Budget) { steps = append(steps, step{d, b}) }),
	)

	out, err := c.Search(context.Background(), "ab")
	require.NoError(t, err)
	assert.False(t, out.Found)
	require.Len(t, steps, 4)
	for _, s := range steps {
		assert.Equal(t, 1, s.distance)
	}
	assert.Equal(t, 18, o.calls)
}

func TestSearch_FixedDistanceZeroTestsSeedOnce(t *testing.T) {
	o := &exact{}
	c := NewController(mutate.NewGenerator(o), WithDistance(0))

	_, err := c.Search(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, 1, o.calls)
}

func TestSearch_FixedDistanceBeyondSeedLength(t *testing.T) {
	o := &exact{want: "abcde"}
	gen := mutate.NewGenerator(o, mutate.WithCharRange(core.CharRange{Lo: 'a', Hi: 'e', Step: 1}))
	c := NewController(gen, WithDistance(3))

	out, err := c.Search(context.Background(), "ab")
	require.NoError(t, err)
	require.True(t, out.Found, "fixed distances are not bounded by the seed length")
	assert.Equal(t, core.Budget{Insertions: 3}, out.Budget)
}

func TestSearch_EmptySeedTriesOnlyDistanceZero(t *testing.T) {
	o := &exact{}
	c := NewController(mutate.NewGenerator(o))

	out, err := c.Search(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, out.Found)
	assert.Equal(t, 1, o.calls)
}

func TestSearch_SeedTooLong(t *testing.T) {
	o := &exact{}
	c := NewController(mutate.NewGenerator(o))

	_, err := c.Search(context.Background(), strings.Repeat("a", core.MaxSeedLen+1))
	require.ErrorIs(t, err, core.ErrSeedTooLong)
	assert.Zero(t, o.calls)
}

func TestSearch_OracleErrorAborts(t *testing.T) {
	boom := errors.New("exec failed")
	o := &exact{err: fmt.Errorf("%w: %w", core.ErrSpawn, boom)}
	c := NewController(mutate.NewGenerator(o))

	_, err := c.Search(context.Background(), "abc")
	require.ErrorIs(t, err, core.ErrSpawn)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, o.calls)
}
