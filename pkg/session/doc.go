// Package session reconciles identity-provider events with the profile
// store into a single Session value. The reconciler absorbs read-after-write
// store lag with bounded retries, provisions a profile on first sign-in
// exactly once, and degrades to a read-only session when the store is
// unreachable rather than blocking callers.
package session
