// Package identity defines the external identity provider contract and the
// verified Identity it issues.
//
// The provider owns credential verification; this package only models the
// assertion the rest of the system consumes. Identity-changed events (sign
// in, sign up, sign out, identity field refresh) reach the session
// reconciler through Subscribe.
//
// Two implementations ship with the service:
//
//	DevProvider   in-process provider with bcrypt-hashed credentials, used
//	              in development and tests
//	OIDCProvider  adapter over an OpenID Connect issuer using the resource
//	              owner password grant
package identity
