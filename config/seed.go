package config

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"github.com/joho/godotenv"
	"github.com/snow-ghost/cracker/core"
)

// SeedEnv names the environment variable holding the seed password.
const SeedEnv = "SEED_PWD"

// Seed is the seed password sealed in an encrypted enclave until the search starts.
type Seed struct {
	enclave *memguard.Enclave // nil for the empty seed
	length  int
}

// LoadSeed reads and validates the seed from SEED_PWD, loading envFile first when it is
// set. Variables already in the environment win over the file. The variable is removed
// from the environment so checker processes do not inherit it.
func LoadSeed(envFile string) (*Seed, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	value, ok := os.LookupEnv(SeedEnv)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSeedMissing, SeedEnv)
	}
	os.Unsetenv(SeedEnv)
	if err := core.ValidateSeed(value); err != nil {
		return nil, err
	}

	// NewEnclave wipes its argument
	return &Seed{enclave: memguard.NewEnclave([]byte(value)), length: len(value)}, nil
}

// Len is the length of the seed.
func (s *Seed) Len() int { return s.length }

// Reveal decrypts the seed. The returned string lives in ordinary memory.
func (s *Seed) Reveal() (string, error) {
	if s.enclave == nil {
		return "", nil
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open seed enclave: %w", err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}
