package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"stashkit/internal/stash"
)

// PostgresStore persists stashes in a single table, one row per generation.
type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) ensureSchema() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS stashes (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    stash_key TEXT NOT NULL,
    branch TEXT NOT NULL,
    payload BYTEA NOT NULL DEFAULT ''::bytea,
    size BIGINT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMP WITH TIME ZONE NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stashes_name ON stashes(name);
CREATE INDEX IF NOT EXISTS idx_stashes_expires_at ON stashes(expires_at);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Upload(ctx context.Context, name string, payload []byte, opts UploadOptions) (stash.Record, error) {
	if s == nil {
		return stash.Record{}, fmt.Errorf("store is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return stash.Record{}, fmt.Errorf("name is required")
	}
	if err := s.ensureSchema(); err != nil {
		return stash.Record{}, err
	}
	if payload == nil {
		payload = []byte{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stash.Record{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if opts.Overwrite {
		if _, err := tx.ExecContext(ctx, `DELETE FROM stashes WHERE name=$1`, name); err != nil {
			return stash.Record{}, err
		}
	}

	now := time.Now()
	rec := stash.Record{
		Name:      name,
		Key:       opts.Key,
		Branch:    opts.Branch,
		SizeBytes: int64(len(payload)),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: opts.ExpiresAt,
	}
	err = tx.QueryRowContext(ctx, `
INSERT INTO stashes (name, stash_key, branch, payload, size, created_at, updated_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
RETURNING id
`, name, opts.Key, opts.Branch, payload, rec.SizeBytes, now, opts.ExpiresAt).Scan(&rec.ID)
	if err != nil {
		return stash.Record{}, err
	}
	if err := tx.Commit(); err != nil {
		return stash.Record{}, err
	}
	return rec, nil
}

func (s *PostgresStore) Download(ctx context.Context, name string, id int64) ([]byte, stash.Record, error) {
	if s == nil {
		return nil, stash.Record{}, fmt.Errorf("store is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, stash.Record{}, fmt.Errorf("name is required")
	}
	if err := s.ensureSchema(); err != nil {
		return nil, stash.Record{}, err
	}
	var (
		rec     stash.Record
		payload []byte
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, name, stash_key, branch, payload, size, created_at, updated_at, expires_at
FROM stashes WHERE name=$1 AND id=$2 AND expires_at > $3
`, name, id, time.Now()).Scan(
		&rec.ID, &rec.Name, &rec.Key, &rec.Branch, &payload,
		&rec.SizeBytes, &rec.CreatedAt, &rec.UpdatedAt, &rec.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, stash.Record{}, ErrNotFound
	}
	if err != nil {
		return nil, stash.Record{}, err
	}
	return payload, rec, nil
}

func (s *PostgresStore) List(ctx context.Context, name string) ([]stash.Record, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, stash_key, branch, size, created_at, updated_at, expires_at
FROM stashes WHERE name=$1 AND expires_at > $2
ORDER BY updated_at DESC, id DESC
`, name, time.Now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]stash.Record, 0, 8)
	for rows.Next() {
		var rec stash.Record
		if err := rows.Scan(
			&rec.ID, &rec.Name, &rec.Key, &rec.Branch,
			&rec.SizeBytes, &rec.CreatedAt, &rec.UpdatedAt, &rec.ExpiresAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, name string) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("store is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("name is required")
	}
	if err := s.ensureSchema(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM stashes WHERE name=$1`, name)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) Prune(ctx context.Context, now time.Time, keep func(stash.Record) bool) ([]stash.Record, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, stash_key, branch, size, created_at, updated_at, expires_at
FROM stashes WHERE expires_at <= $1 ORDER BY id
`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []stash.Record
	for rows.Next() {
		var rec stash.Record
		if err := rows.Scan(
			&rec.ID, &rec.Name, &rec.Key, &rec.Branch,
			&rec.SizeBytes, &rec.CreatedAt, &rec.UpdatedAt, &rec.ExpiresAt,
		); err != nil {
			return nil, err
		}
		expired = append(expired, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var pruned []stash.Record
	for _, rec := range expired {
		if keep != nil && keep(rec) {
			continue
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM stashes WHERE id=$1`, rec.ID); err != nil {
			return pruned, err
		}
		pruned = append(pruned, rec)
	}
	return pruned, nil
}
