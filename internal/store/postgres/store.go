// Package postgres provides the Postgres-backed RecordStore.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobradar/jobradar/internal/jobs"
	"github.com/jobradar/jobradar/internal/store"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "records"

const recordColumns = "id, source, company, title, url, first_seen, last_seen, active, status, notes"

// Config controls the Postgres connection pool behind the RecordStore.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pgxPool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it in tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Ping(ctx context.Context) error
	Close()
}

// RecordStore persists Records in a single Postgres table keyed by a unique
// canonical URL.
type RecordStore struct {
	pool  pgxPool
	table string
}

// New connects a pool and returns the store. The table is created lazily by
// EnsureSchema, not here.
func New(ctx context.Context, cfg Config) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database.dsn is required")
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
	return &RecordStore{pool: pool, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for
// testing).
func NewWithPool(pool pgxPool, table string) (*RecordStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RecordStore{pool: pool, table: name}, nil
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

// EnsureSchema creates the records table and its indexes when absent.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	source text NOT NULL,
	company text NOT NULL,
	title text NOT NULL,
	url text NOT NULL UNIQUE,
	first_seen date NOT NULL,
	last_seen date NOT NULL,
	active boolean NOT NULL DEFAULT true,
	status text NOT NULL DEFAULT '%s',
	notes text NOT NULL DEFAULT ''
)`, s.table, jobs.DefaultStatus)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	idx := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_active_last_seen_idx ON %s (last_seen) WHERE active`,
		s.table, s.table,
	)
	if _, err := s.pool.Exec(ctx, idx); err != nil {
		return fmt.Errorf("create %s index: %w", s.table, err)
	}
	return nil
}

// FindByURL returns the Record for the canonical URL, or store.ErrNotFound.
func (s *RecordStore) FindByURL(ctx context.Context, url string) (jobs.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE url = $1`, recordColumns, s.table)
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return jobs.Record{}, store.ErrNotFound
	}
	if err != nil {
		return jobs.Record{}, fmt.Errorf("select record by url: %w", err)
	}
	return rec, nil
}

// FindActive returns every active Record, most recently seen first.
func (s *RecordStore) FindActive(ctx context.Context) ([]jobs.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE active ORDER BY last_seen DESC, url`, recordColumns, s.table)
	return s.queryRecords(ctx, query)
}

// FindActiveLastSeenBefore returns active Records with LastSeen strictly
// before cutoff.
func (s *RecordStore) FindActiveLastSeenBefore(ctx context.Context, cutoff time.Time) ([]jobs.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE active AND last_seen < $1 ORDER BY url`, recordColumns, s.table)
	return s.queryRecords(ctx, query, cutoff)
}

func (s *RecordStore) queryRecords(ctx context.Context, query string, args ...any) ([]jobs.Record, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer rows.Close()

	var out []jobs.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (s *RecordStore) upsertSQL() string {
	return fmt.Sprintf(`
INSERT INTO %s (source, company, title, url, first_seen, last_seen, active, status, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (url) DO UPDATE SET
	source = EXCLUDED.source,
	company = EXCLUDED.company,
	title = EXCLUDED.title,
	last_seen = EXCLUDED.last_seen,
	active = EXCLUDED.active,
	status = EXCLUDED.status,
	notes = EXCLUDED.notes
RETURNING id`, s.table)
}

func upsertArgs(rec *jobs.Record) []any {
	return []any{
		rec.Source,
		rec.Company,
		rec.Title,
		rec.URL,
		rec.FirstSeen,
		rec.LastSeen,
		rec.Active,
		rec.Status,
		rec.Notes,
	}
}

// Save upserts the Record by URL in one statement and fills in the row ID.
// first_seen is deliberately absent from the conflict update, so the first
// observation date survives replays.
func (s *RecordStore) Save(ctx context.Context, rec *jobs.Record) error {
	if rec == nil {
		return errors.New("record is required")
	}
	if err := s.pool.QueryRow(ctx, s.upsertSQL(), upsertArgs(rec)...).Scan(&rec.ID); err != nil {
		return fmt.Errorf("upsert record %q: %w", rec.URL, err)
	}
	return nil
}

// SaveAll upserts every Record in a single batch round trip.
func (s *RecordStore) SaveAll(ctx context.Context, recs []*jobs.Record) error {
	if len(recs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	query := s.upsertSQL()
	for _, rec := range recs {
		batch.Queue(query, upsertArgs(rec)...)
	}
	results := s.pool.SendBatch(ctx, batch)
	for _, rec := range recs {
		if err := results.QueryRow().Scan(&rec.ID); err != nil {
			_ = results.Close()
			return fmt.Errorf("upsert record %q: %w", rec.URL, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	return nil
}

// CountActive returns the number of active Records.
func (s *RecordStore) CountActive(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE active`, s.table)
	var n int64
	if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active records: %w", err)
	}
	return n, nil
}

// Ping verifies the pool can reach the database.
func (s *RecordStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (jobs.Record, error) {
	var rec jobs.Record
	err := row.Scan(
		&rec.ID,
		&rec.Source,
		&rec.Company,
		&rec.Title,
		&rec.URL,
		&rec.FirstSeen,
		&rec.LastSeen,
		&rec.Active,
		&rec.Status,
		&rec.Notes,
	)
	return rec, err
}
