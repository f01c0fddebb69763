package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPStore is a Store backed by an external profile REST API. The backend
// exposes profiles under /users keyed by email:
//
//	GET    /users/{email}   404 -> NotFound
//	POST   /users           409 -> Conflict
//	PATCH  /users/{email}   404 -> NotFound
//	DELETE /users/{email}   404 -> NotFound
//
// Any transport failure or unexpected status maps to ErrUnavailable.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStore creates a store client for the given base URL
func NewHTTPStore(baseURL string, timeout time.Duration) *HTTPStore {
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPStore) userURL(email string) string {
	return s.baseURL + "/users/" + url.PathEscape(NormalizeEmail(email))
}

func (s *HTTPStore) do(ctx context.Context, method, rawURL string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.client.Do(req)
}

// decodeProfile reads a profile from a response body
func decodeProfile(resp *http.Response) (*Profile, error) {
	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	return &p, nil
}

// mapStatus converts an unexpected HTTP status into a store error
func mapStatus(status int) error {
	switch status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, status)
	}
}

// Fetch returns the profile for the email, or ErrNotFound
func (s *HTTPStore) Fetch(ctx context.Context, email string) (*Profile, error) {
	resp, err := s.do(ctx, http.MethodGet, s.userURL(email), nil)
	if err != nil {
		return nil, wrapErr("fetch", email, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, wrapErr("fetch", email, mapStatus(resp.StatusCode))
	}

	p, err := decodeProfile(resp)
	if err != nil {
		return nil, wrapErr("fetch", email, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	return p, nil
}

// Create stores a new profile, or returns ErrConflict
func (s *HTTPStore) Create(ctx context.Context, p *Profile) (*Profile, error) {
	payload := p.Clone()
	payload.Email = NormalizeEmail(p.Email)
	if payload.CreatedAt.IsZero() {
		payload.CreatedAt = time.Now().UTC()
	}

	resp, err := s.do(ctx, http.MethodPost, s.baseURL+"/users", payload)
	if err != nil {
		return nil, wrapErr("create", p.Email, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, wrapErr("create", p.Email, mapStatus(resp.StatusCode))
	}

	created, err := decodeProfile(resp)
	if err != nil {
		return nil, wrapErr("create", p.Email, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	return created, nil
}

// Update applies a partial update, or returns ErrNotFound
func (s *HTTPStore) Update(ctx context.Context, email string, patch Patch) (*Profile, error) {
	resp, err := s.do(ctx, http.MethodPatch, s.userURL(email), patch)
	if err != nil {
		return nil, wrapErr("update", email, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, wrapErr("update", email, mapStatus(resp.StatusCode))
	}

	updated, err := decodeProfile(resp)
	if err != nil {
		return nil, wrapErr("update", email, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	return updated, nil
}

// Delete removes the profile, or returns ErrNotFound
func (s *HTTPStore) Delete(ctx context.Context, email string) error {
	resp, err := s.do(ctx, http.MethodDelete, s.userURL(email), nil)
	if err != nil {
		return wrapErr("delete", email, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return wrapErr("delete", email, mapStatus(resp.StatusCode))
	}
	return nil
}

// Ping probes the backend's health endpoint
func (s *HTTPStore) Ping(ctx context.Context) error {
	resp, err := s.do(ctx, http.MethodGet, s.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}
