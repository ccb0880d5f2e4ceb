package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/rh-console/rh-console/internal/identity"
)

var (
	// ErrPermissionFetch matches every *FetchError through errors.Is.
	ErrPermissionFetch = errors.New("access: permission fetch failed")
	// ErrGrantNotFound is reported when the authority has no grant for the principal.
	ErrGrantNotFound = errors.New("access: grant not found")
)

// Fetcher retrieves the grant of a principal from the remote authority. One
// call is one attempt; retries are the caller's decision.
type Fetcher interface {
	Fetch(ctx context.Context, p identity.Principal) (*Grant, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, p identity.Principal) (*Grant, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, p identity.Principal) (*Grant, error) {
	return f(ctx, p)
}

// FetchError wraps any transport or authority failure.
type FetchError struct {
	PrincipalID string
	Op          string
	Err         error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("access: fetch grant for %q: %s: %v", e.PrincipalID, e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *FetchError) Unwrap() []error {
	return []error{ErrPermissionFetch, e.Err}
}

func fetchError(principalID, op string, err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{PrincipalID: principalID, Op: op, Err: err}
}
