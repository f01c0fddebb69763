package profile

import (
	"context"
	"errors"
	"fmt"
)

// Store is the profile datastore contract. All calls are network operations
// keyed by a normalized email and must be idempotent on retry, except Create
// which surfaces ErrConflict rather than silently overwriting.
type Store interface {
	// Fetch returns the profile for the email, or ErrNotFound. A NotFound
	// result may be transient for a recently created record.
	Fetch(ctx context.Context, email string) (*Profile, error)

	// Create stores a new profile. Returns ErrConflict if a profile for the
	// email already exists.
	Create(ctx context.Context, p *Profile) (*Profile, error)

	// Update applies a partial update and returns the updated profile, or
	// ErrNotFound if no profile exists for the email.
	Update(ctx context.Context, email string, patch Patch) (*Profile, error)

	// Delete removes the profile, or returns ErrNotFound.
	Delete(ctx context.Context, email string) error
}

// Pinger is implemented by stores that can report backend reachability,
// used by readiness probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	// ErrNotFound indicates no profile exists for the email. May be
	// transient store lag; the reconciler retries before treating the
	// profile as truly absent.
	ErrNotFound = errors.New("profile not found")

	// ErrConflict indicates a profile already exists for the email.
	ErrConflict = errors.New("profile already exists")

	// ErrUnavailable indicates a transport or backend failure. The
	// reconciler degrades the session instead of blocking on it.
	ErrUnavailable = errors.New("profile store unavailable")
)

// StoreError wraps a store failure with the operation and key for
// logging and telemetry.
type StoreError struct {
	Op    string
	Email string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("profile store %s %q: %v", e.Op, e.Email, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// wrapErr attaches op/email context to a store error, preserving the
// sentinel for errors.Is checks.
func wrapErr(op, email string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Email: email, Err: err}
}
