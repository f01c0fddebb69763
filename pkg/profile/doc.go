// Package profile defines the application-owned Profile record and the
// ProfileStore contract the session reconciler depends on.
//
// # Store contract
//
// A Store is a networked collection of profiles keyed by email. Fetch may
// return ErrNotFound even for a recently created record (read-after-write
// lag); Create must surface ErrConflict instead of overwriting; any
// transport failure maps to ErrUnavailable. All calls take a context and are
// idempotent on retry except Create.
//
// # Implementations
//
//	MemoryStore  in-process map, used in development and tests
//	HTTPStore    REST client for an external profile backend
//	SQLStore     database/sql implementation (postgres in production)
//	RedisCache   read-through cache decorator over any Store
package profile
