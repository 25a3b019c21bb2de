package core

import "context"

// Oracle decides whether a candidate is the password.
// Test must not retain the candidate beyond the call. A non-nil error is fatal to the search.
type Oracle interface {
	Test(ctx context.Context, candidate string) (bool, error)
}

// Closer is implemented by oracles that own resources released after the search.
type Closer interface {
	Close(ctx context.Context) error
}
