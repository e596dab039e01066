package counter

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"singluten/internal/ratelimit/models"
)

// Collection names for the two physical counter tables. The contract is
// identical; they differ only in scope-key semantics.
const (
	CollectionIdentity = "identity_rate_counters"
	CollectionAddress  = "address_rate_counters"
)

var validCollection = regexp.MustCompile(`^[a-z_]+$`)

// PostgresStore persists rate counters in PostgreSQL. The increment is a
// single UPSERT so concurrent callers for the same key are linearized by
// the database; there is no read-then-write window.
// This store is pure I/O; window math and ceiling comparison belong to the
// engine.
type PostgresStore struct {
	db         *sql.DB
	collection string
}

// NewPostgres constructs a PostgreSQL-backed counter store over one of the
// two counter collections.
func NewPostgres(db *sql.DB, collection string) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if !validCollection.MatchString(collection) {
		return nil, fmt.Errorf("invalid counter collection name %q", collection)
	}
	return &PostgresStore{db: db, collection: collection}, nil
}

func (s *PostgresStore) Increment(ctx context.Context, scopeKey string, bucket models.Bucket, windowStart time.Time) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (scope_key, bucket_name, window_start, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (scope_key, bucket_name, window_start)
		DO UPDATE SET count = %s.count + 1
		RETURNING count
	`, s.collection, s.collection)

	var count int64
	err := s.db.QueryRowContext(ctx, query, scopeKey, string(bucket), windowStart.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment rate counter: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Count(ctx context.Context, scopeKey string, bucket models.Bucket, windowStart time.Time) (int64, error) {
	query := fmt.Sprintf(`
		SELECT count FROM %s
		WHERE scope_key = $1 AND bucket_name = $2 AND window_start = $3
	`, s.collection)

	var count int64
	err := s.db.QueryRowContext(ctx, query, scopeKey, string(bucket), windowStart.UTC()).Scan(&count)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("get rate counter: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE window_start < $1`, s.collection)

	res, err := s.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge rate counters: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rate counters: %w", err)
	}
	return removed, nil
}

// EnsureSchema creates the counter table when it does not exist yet.
// Deployments with managed migrations can skip this; integration tests and
// fresh local environments rely on it.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			scope_key    TEXT        NOT NULL,
			bucket_name  TEXT        NOT NULL,
			window_start TIMESTAMPTZ NOT NULL,
			count        BIGINT      NOT NULL DEFAULT 0,
			PRIMARY KEY (scope_key, bucket_name, window_start)
		)
	`, s.collection)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure counter schema: %w", err)
	}
	return nil
}
