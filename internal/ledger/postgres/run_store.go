// Package postgres records finished runs in a Postgres ledger table.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/page-ingest/internal/ingest"
)

const defaultTable = "ingest_runs"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for ledger rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RunStore writes one row per finished run.
type RunStore struct {
	pool  execCloser
	table string
}

// NewRunStore connects a pool using cfg.
func NewRunStore(ctx context.Context, cfg Config) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("ledger.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RunStore{pool: pool, table: table}, nil
}

// NewRunStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRunStoreWithPool(pool execCloser, table string) (*RunStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RunStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		return defaultTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the ledger table when it does not exist.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id           UUID PRIMARY KEY,
	command      TEXT NOT NULL,
	output       TEXT NOT NULL,
	blob_uri     TEXT,
	sha256       TEXT,
	status       TEXT NOT NULL,
	error_text   TEXT,
	identifiers  INTEGER NOT NULL,
	rows_written BIGINT NOT NULL,
	row_groups   INTEGER NOT NULL,
	failed       INTEGER NOT NULL,
	skipped      INTEGER NOT NULL,
	summary      JSONB NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL,
	duration_ms  BIGINT NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create ledger table: %w", err)
	}
	return nil
}

// RecordRun inserts the run row. Recording the same id twice updates it.
func (s *RunStore) RecordRun(ctx context.Context, run ingest.RunRecord) error {
	if s == nil || s.pool == nil {
		return errors.New("run store is not configured")
	}
	if run.ID == "" {
		return errors.New("run id is required")
	}
	summaryJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	command,
	output,
	blob_uri,
	sha256,
	status,
	error_text,
	identifiers,
	rows_written,
	row_groups,
	failed,
	skipped,
	summary,
	started_at,
	finished_at,
	duration_ms
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	error_text = EXCLUDED.error_text,
	blob_uri = EXCLUDED.blob_uri,
	sha256 = EXCLUDED.sha256,
	summary = EXCLUDED.summary,
	finished_at = EXCLUDED.finished_at,
	duration_ms = EXCLUDED.duration_ms`, s.table)

	args := []any{
		run.ID,
		run.Command,
		run.Output,
		run.BlobURI,
		run.SHA256,
		string(run.Status),
		run.ErrorText,
		run.Summary.Identifiers,
		run.Summary.Rows,
		run.Summary.RowGroups,
		run.Summary.Failed,
		run.Summary.Skipped,
		summaryJSON,
		run.StartedAt,
		run.FinishedAt,
		run.Duration.Milliseconds(),
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}
