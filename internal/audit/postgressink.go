package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/simplesurance/automerger/internal/retry"
)

const createTableStmt = `CREATE TABLE IF NOT EXISTS automerge_audit (
	id BIGSERIAL PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	delivery_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	repository_owner TEXT NOT NULL,
	repository TEXT NOT NULL,
	pull_request INTEGER NOT NULL,
	code INTEGER NOT NULL,
	visibility TEXT NOT NULL,
	reason TEXT NOT NULL
)`

const insertStmt = `INSERT INTO automerge_audit
	(created_at, delivery_id, event_type, repository_owner, repository, pull_request, code, visibility, reason)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

type execer interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
}

// PostgresSink inserts records into the automerge_audit table.
type PostgresSink struct {
	db      execer
	closeFn func()
}

// NewPostgresSink connects to the database and creates the audit table if it
// does not exist.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn failed: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating postgres connection pool failed: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to postgres failed: %w", err)
	}

	s := newPostgresSink(pool, pool.Close)
	if err := s.createTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func newPostgresSink(db execer, closeFn func()) *PostgresSink {
	return &PostgresSink{db: db, closeFn: closeFn}
}

func (s *PostgresSink) createTable(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableStmt); err != nil {
		return fmt.Errorf("creating audit table failed: %w", err)
	}

	return nil
}

// Write inserts the record.
// Errors reported by the postgres server are returned as they are, other
// errors, like connection errors, are wrapped in a retry.RetryableError.
func (s *PostgresSink) Write(ctx context.Context, rec *Record) error {
	_, err := s.db.Exec(ctx, insertStmt,
		rec.Time,
		rec.DeliveryID,
		rec.EventType,
		rec.RepositoryOwner,
		rec.Repository,
		rec.PullRequest,
		rec.Code,
		rec.Visibility,
		rec.Reason,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return fmt.Errorf("inserting audit record failed: %w", err)
		}

		return retry.NewRetryableAnytimeError(fmt.Errorf("inserting audit record failed: %w", err))
	}

	return nil
}

func (s *PostgresSink) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

func (s *PostgresSink) String() string {
	return "postgres"
}
