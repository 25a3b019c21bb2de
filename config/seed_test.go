package config

import (
	"os"
	"strings"
	"testing"

	"github.com/snow-ghost/cracker/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsetSeed(t *testing.T) {
	t.Helper()
	t.Setenv(SeedEnv, "")
	require.NoError(t, os.Unsetenv(SeedEnv))
}

func TestLoadSeed_FromEnvironment(t *testing.T) {
	t.Setenv(SeedEnv, "passw0rd")

	seed, err := LoadSeed("")
	require.NoError(t, err)
	assert.Equal(t, 8, seed.Len())

	_, stillSet := os.LookupEnv(SeedEnv)
	assert.False(t, stillSet)

	value, err := seed.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "passw0rd", value)

	value, err = seed.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "passw0rd", value, "reveal can be repeated")
}

func TestLoadSeed_EmptyValue(t *testing.T) {
	t.Setenv(SeedEnv, "")

	seed, err := LoadSeed("")
	require.NoError(t, err)
	value, err := seed.Reveal()
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestLoadSeed_EnvFile(t *testing.T) {
	unsetSeed(t)
	path := writeFile(t, ".env", "SEED_PWD=hunter2\n")

	seed, err := LoadSeed(path)
	require.NoError(t, err)
	value, err := seed.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "hunter2", value)
}

func TestLoadSeed_EnvironmentWinsOverFile(t *testing.T) {
	t.Setenv(SeedEnv, "from-env")
	path := writeFile(t, ".env", "SEED_PWD=from-file\n")

	seed, err := LoadSeed(path)
	require.NoError(t, err)
	value, err := seed.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)
}

func TestLoadSeed_Errors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		unsetSeed(t)
		_, err := LoadSeed("")
		assert.ErrorIs(t, err, core.ErrSeedMissing)
		assert.Equal(t, core.ExitSeedMissing, core.ExitCode(err))
	})

	t.Run("too long", func(t *testing.T) {
		t.Setenv(SeedEnv, strings.Repeat("x", core.MaxSeedLen+1))
		_, err := LoadSeed("")
		assert.ErrorIs(t, err, core.ErrSeedTooLong)
	})

	t.Run("missing env file", func(t *testing.T) {
		t.Setenv(SeedEnv, "abc")
		_, err := LoadSeed("/nonexistent/.env")
		assert.ErrorContains(t, err, "failed to load env file")
	})
}
