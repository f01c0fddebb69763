package profile

import (
	"context"
	"errors"
	"time"

	"github.com/classhub/classhub/pkg/observability"
)

// InstrumentedStore records a request metric for every store call before
// delegating to the inner store. It wraps the outermost store so cache hits
// and misses are both counted.
type InstrumentedStore struct {
	inner   Store
	metrics *observability.Metrics
}

// NewInstrumentedStore wraps a store with request metrics
func NewInstrumentedStore(inner Store, metrics *observability.Metrics) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, metrics: metrics}
}

var _ Store = (*InstrumentedStore)(nil)

func storeResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

func (s *InstrumentedStore) Fetch(ctx context.Context, email string) (*Profile, error) {
	start := time.Now()
	p, err := s.inner.Fetch(ctx, email)
	s.metrics.ObserveStoreRequest("fetch", storeResult(err), time.Since(start))
	return p, err
}

func (s *InstrumentedStore) Create(ctx context.Context, p *Profile) (*Profile, error) {
	start := time.Now()
	created, err := s.inner.Create(ctx, p)
	s.metrics.ObserveStoreRequest("create", storeResult(err), time.Since(start))
	return created, err
}

func (s *InstrumentedStore) Update(ctx context.Context, email string, patch Patch) (*Profile, error) {
	start := time.Now()
	updated, err := s.inner.Update(ctx, email, patch)
	s.metrics.ObserveStoreRequest("update", storeResult(err), time.Since(start))
	return updated, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, email string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, email)
	s.metrics.ObserveStoreRequest("delete", storeResult(err), time.Since(start))
	return err
}

// Ping delegates to the inner store when it supports probing so health
// checks see through the decorator.
func (s *InstrumentedStore) Ping(ctx context.Context) error {
	if pinger, ok := s.inner.(Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}
