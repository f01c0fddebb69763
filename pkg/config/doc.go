// Package config loads application configuration from CLASSHUB_* environment
// variables with validated defaults. Every knob has a sensible default so a
// bare `classhubd` starts with the in-memory store and the development
// identity provider.
package config
