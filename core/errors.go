package core

import "errors"

// Exit statuses reported by the cracker binary.
const (
	ExitFound       = 0
	ExitNotFound    = 1
	ExitFatal       = 2
	ExitUsage       = 3
	ExitPluginInit  = 4
	ExitSeedMissing = 5

	// ExitInterrupted is 128 plus SIGINT, as shells report it.
	ExitInterrupted = 130
)

var (
	ErrSeedTooLong      = errors.New("seed password is too long")
	ErrInvalidSeed      = errors.New("seed password is invalid")
	ErrSeedMissing      = errors.New("seed environment variable not set")
	ErrInvalidBudget    = errors.New("invalid edit budget")
	ErrInvalidCharRange = errors.New("invalid character range")
	ErrBufferCapacity   = errors.New("mutation buffer capacity exceeded")
	ErrSpawn            = errors.New("failed to execute checker")
	ErrPluginLoad       = errors.New("unable to load plugin")
	ErrPluginSymbol     = errors.New("plugin entry point missing")
	ErrPluginInit       = errors.New("unable to initialize plugin")
	ErrNoPlaceholder    = errors.New("checker command has no password placeholder")
	ErrUsage            = errors.New("invalid arguments")
)

// ExitCode maps a search error to the process exit status. A nil error maps to ExitFound;
// callers report ExitNotFound themselves since not finding the password is not an error.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitFound
	case errors.Is(err, ErrPluginInit):
		return ExitPluginInit
	case errors.Is(err, ErrSeedMissing):
		return ExitSeedMissing
	case errors.Is(err, ErrUsage), errors.Is(err, ErrNoPlaceholder):
		return ExitUsage
	default:
		return ExitFatal
	}
}
