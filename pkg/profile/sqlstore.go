package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// SQLStore is a Store backed by database/sql. Production deployments use
// postgres (lib/pq); tests run against in-memory sqlite, which accepts the
// same $N placeholders.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a store over an open database handle
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate creates the profiles table if it does not exist
func (s *SQLStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS profiles (
			email TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'user',
			enrolled_class_id TEXT NOT NULL DEFAULT '',
			classes TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("migrating profiles table: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether the error is a duplicate-key failure.
// Covers postgres (23505) and the sqlite driver used in tests.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func scanProfile(scanner interface{ Scan(dest ...interface{}) error }) (*Profile, error) {
	var p Profile
	var classesJSON string

	err := scanner.Scan(
		&p.Email,
		&p.Name,
		&p.Phone,
		&p.AvatarURL,
		&p.Role,
		&p.EnrolledClassID,
		&classesJSON,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if classesJSON != "" && classesJSON != "[]" {
		if err := json.Unmarshal([]byte(classesJSON), &p.Classes); err != nil {
			return nil, fmt.Errorf("decoding class assignments: %w", err)
		}
	}
	return &p, nil
}

const profileColumns = `email, name, phone, avatar_url, role, enrolled_class_id, classes, created_at`

// Fetch returns the profile for the email, or ErrNotFound
func (s *SQLStore) Fetch(ctx context.Context, email string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE email = $1
	`, NormalizeEmail(email))

	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, wrapErr("fetch", email, ErrNotFound)
	}
	if err != nil {
		return nil, wrapErr("fetch", email, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	return p, nil
}

// Create stores a new profile, or returns ErrConflict
func (s *SQLStore) Create(ctx context.Context, p *Profile) (*Profile, error) {
	stored := p.Clone()
	stored.Email = NormalizeEmail(p.Email)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	classesJSON, err := json.Marshal(stored.Classes)
	if err != nil {
		return nil, wrapErr("create", p.Email, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, stored.Email, stored.Name, stored.Phone, stored.AvatarURL,
		stored.Role, stored.EnrolledClassID, string(classesJSON), stored.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, wrapErr("create", p.Email, ErrConflict)
		}
		return nil, wrapErr("create", p.Email, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	return stored, nil
}

// Update applies a partial update inside a transaction, or returns ErrNotFound
func (s *SQLStore) Update(ctx context.Context, email string, patch Patch) (*Profile, error) {
	key := NormalizeEmail(email)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapErr("update", email, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE email = $1
	`, key)

	current, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, wrapErr("update", email, ErrNotFound)
	}
	if err != nil {
		return nil, wrapErr("update", email, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}

	patch.Apply(current)

	classesJSON, err := json.Marshal(current.Classes)
	if err != nil {
		return nil, wrapErr("update", email, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE profiles
		SET name = $1, phone = $2, avatar_url = $3, role = $4, enrolled_class_id = $5, classes = $6
		WHERE email = $7
	`, current.Name, current.Phone, current.AvatarURL, current.Role,
		current.EnrolledClassID, string(classesJSON), key)
	if err != nil {
		return nil, wrapErr("update", email, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapErr("update", email, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	return current, nil
}

// Delete removes the profile, or returns ErrNotFound
func (s *SQLStore) Delete(ctx context.Context, email string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM profiles WHERE email = $1
	`, NormalizeEmail(email))
	if err != nil {
		return wrapErr("delete", email, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return wrapErr("delete", email, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	if affected == 0 {
		return wrapErr("delete", email, ErrNotFound)
	}
	return nil
}

// Ping probes database connectivity
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
