// exception/store.go
package exception

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	gk_errors "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/errors"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS exceptions (
    id             TEXT PRIMARY KEY,
    finding_code   TEXT NOT NULL,
    environment    TEXT NOT NULL DEFAULT '',
    fingerprint    TEXT NOT NULL DEFAULT '',
    justification  TEXT NOT NULL,
    expires_at     TEXT NOT NULL DEFAULT '',
    created_by     TEXT NOT NULL DEFAULT '',
    created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exceptions_code ON exceptions(finding_code);
`

// Store is the sqlite-backed exception registry. Exceptions are data, never
// code: they are created, listed, and revoked here, independent of pipeline
// logic, and every run reads a point-in-time snapshot.
type Store struct {
	db *sql.DB
}

// Open creates the registry tables if needed and returns the store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open exception registry: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("exception registry schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create persists a new exception. A missing ID is filled with a fresh
// UUID; CreatedAt is stamped when unset.
func (s *Store) Create(ctx context.Context, exc model.Exception) (model.Exception, error) {
	if exc.FindingCode == "" || exc.Justification == "" {
		return exc, gk_errors.ErrInvalidExceptionData
	}
	if exc.ID == "" {
		exc.ID = uuid.NewString()
	}
	if exc.CreatedAt.IsZero() {
		exc.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exceptions (id, finding_code, environment, fingerprint, justification, expires_at, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		exc.ID, exc.FindingCode, exc.Environment, exc.Fingerprint,
		exc.Justification, formatTime(exc.ExpiresAt), exc.CreatedBy,
		exc.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return exc, fmt.Errorf("create exception: %w", err)
	}
	return exc, nil
}

// List returns every registered exception, expired ones included; expiry
// is the policy engine's call, against its single injected now.
func (s *Store) List(ctx context.Context) ([]model.Exception, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, finding_code, environment, fingerprint, justification, expires_at, created_by, created_at
		 FROM exceptions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}
	defer rows.Close()

	var out []model.Exception
	for rows.Next() {
		var exc model.Exception
		var expiresAt, createdAt string
		if err := rows.Scan(&exc.ID, &exc.FindingCode, &exc.Environment, &exc.Fingerprint,
			&exc.Justification, &expiresAt, &exc.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		exc.ExpiresAt = parseTime(expiresAt)
		exc.CreatedAt = parseTime(createdAt)
		out = append(out, exc)
	}
	return out, rows.Err()
}

// Get returns one exception by ID.
func (s *Store) Get(ctx context.Context, id string) (model.Exception, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, finding_code, environment, fingerprint, justification, expires_at, created_by, created_at
		 FROM exceptions WHERE id = ?`, id)

	var exc model.Exception
	var expiresAt, createdAt string
	err := row.Scan(&exc.ID, &exc.FindingCode, &exc.Environment, &exc.Fingerprint,
		&exc.Justification, &expiresAt, &exc.CreatedBy, &createdAt)
	if err == sql.ErrNoRows {
		return exc, gk_errors.ErrExceptionNotFound
	}
	if err != nil {
		return exc, err
	}
	exc.ExpiresAt = parseTime(expiresAt)
	exc.CreatedAt = parseTime(createdAt)
	return exc, nil
}

// Delete revokes an exception.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exceptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete exception: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return gk_errors.ErrExceptionNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
