// Package api exposes the HTTP surface: authentication endpoints that
// drive the identity provider, the session endpoint that reports the
// reconciled session and its visible surfaces, and profile CRUD gated by
// the authorization policy.
package api
