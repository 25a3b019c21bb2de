package core

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetDistanceAndValidate(t *testing.T) {
	b := Budget{Substitutions: 1, Transpositions: 2, Insertions: 3, Deletions: 4}
	require.Equal(t, 10, b.Distance())
	require.NoError(t, b.Validate())

	err := Budget{Deletions: -1}.Validate()
	require.ErrorIs(t, err, ErrInvalidBudget)
}

func TestCharRange(t *testing.T) {
	r := PrintableASCII()
	require.NoError(t, r.Validate())
	assert.True(t, r.Complete())
	assert.Equal(t, 95, r.Size())

	c, ok := r.Next(' ')
	assert.True(t, ok)
	assert.Equal(t, byte('!'), c)

	c, ok = r.Next('~')
	assert.False(t, ok)
	assert.Equal(t, byte(' '), c)

	fast := r.WithStep(20)
	assert.False(t, fast.Complete())
	assert.Equal(t, 5, fast.Size())
	c, ok = fast.Next('p')
	assert.False(t, ok, "0x70+20 overflows the range")
	assert.Equal(t, byte(' '), c)

	require.ErrorIs(t, CharRange{Lo: 'b', Hi: 'a', Step: 1}.Validate(), ErrInvalidCharRange)
	require.ErrorIs(t, r.WithStep(0).Validate(), ErrInvalidCharRange)
}

func TestValidateSeed(t *testing.T) {
	require.NoError(t, ValidateSeed(""))
	require.NoError(t, ValidateSeed(strings.Repeat("x", MaxSeedLen)))
	require.ErrorIs(t, ValidateSeed(strings.Repeat("x", MaxSeedLen+1)), ErrSeedTooLong)
	require.ErrorIs(t, ValidateSeed("tab\there"), ErrInvalidSeed)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, NotFoundMarker, NotFound.String())

	o := Found("abd", Budget{Deletions: 1})
	assert.True(t, o.Found)
	assert.Equal(t, 1, o.Distance)
	assert.Equal(t, "abd", o.String())
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, ExitFound},
		{fmt.Errorf("wrap: %w", ErrPluginInit), ExitPluginInit},
		{ErrSeedMissing, ExitSeedMissing},
		{fmt.Errorf("flags: %w", ErrUsage), ExitUsage},
		{ErrNoPlaceholder, ExitUsage},
		{ErrSpawn, ExitFatal},
		{ErrSeedTooLong, ExitFatal},
		{ErrPluginSymbol, ExitFatal},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.err), func(t *testing.T) {
			assert.Equal(t, tc.want, ExitCode(tc.err))
		})
	}
}
