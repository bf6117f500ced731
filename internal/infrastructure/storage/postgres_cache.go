package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"FinanceCollector/internal/domain"
	"FinanceCollector/internal/ports"
)

const defaultCacheTable = "filing_cache"

// dbtx is the subset of pgxpool.Pool used by the cache.
type dbtx interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresCache persists resolved filings keyed by (security_id, fiscal_year).
type PostgresCache struct {
	db    dbtx
	table string
	now   func() time.Time
	sql   sq.StatementBuilderType
}

var _ ports.FilingCache = (*PostgresCache)(nil)

// NewPostgresCache wires a pgx pool (or transaction) implementation.
func NewPostgresCache(db dbtx, table string, now func() time.Time) *PostgresCache {
	if table == "" {
		table = defaultCacheTable
	}
	if now == nil {
		now = time.Now
	}
	return &PostgresCache{
		db:    db,
		table: table,
		now:   now,
		sql:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// EnsureSchema creates the cache table when it does not exist.
func (c *PostgresCache) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
              security_id  TEXT        NOT NULL,
              fiscal_year  INTEGER     NOT NULL,
              retrieved_on DATE        NOT NULL,
              payload      JSONB       NOT NULL,
              updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
              PRIMARY KEY (security_id, fiscal_year)
          )`, c.table)

	if _, err := c.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create cache table: %w", err)
	}
	return nil
}

// Get returns the entry retrieved today or domain.ErrCacheMiss.
func (c *PostgresCache) Get(ctx context.Context, securityID string, year int) (domain.FilingLineItems, error) {
	query, args, err := c.sql.
		Select("payload").
		From(c.table).
		Where(sq.Eq{
			"security_id":  securityID,
			"fiscal_year":  year,
			"retrieved_on": c.today(),
		}).
		ToSql()
	if err != nil {
		return domain.FilingLineItems{}, fmt.Errorf("build cache query: %w", err)
	}

	var payload []byte
	if err := c.db.QueryRow(ctx, query, args...).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FilingLineItems{}, domain.ErrCacheMiss
		}
		return domain.FilingLineItems{}, fmt.Errorf("query cache: %w", err)
	}

	var items domain.FilingLineItems
	if err := json.Unmarshal(payload, &items); err != nil {
		return domain.FilingLineItems{}, fmt.Errorf("decode cache payload %s/%d: %w", securityID, year, err)
	}
	return items, nil
}

// Put upserts the entry in one statement, replacing any stale row.
func (c *PostgresCache) Put(ctx context.Context, securityID string, year int, items domain.FilingLineItems) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cache payload: %w", err)
	}

	query, args, err := c.sql.
		Insert(c.table).
		Columns("security_id", "fiscal_year", "retrieved_on", "payload").
		Values(securityID, year, c.today(), payload).
		Suffix(`ON CONFLICT (security_id, fiscal_year) DO UPDATE
              SET retrieved_on = EXCLUDED.retrieved_on,
                  payload = EXCLUDED.payload,
                  updated_at = NOW()`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build cache upsert: %w", err)
	}

	if _, err := c.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert cache: %w", err)
	}
	return nil
}

// Prune deletes rows retrieved more than retainDays ago.
func (c *PostgresCache) Prune(ctx context.Context, retainDays int) (int, error) {
	query, args, err := c.sql.
		Delete(c.table).
		Where(sq.Lt{"retrieved_on": c.today().AddDate(0, 0, -retainDays)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build cache prune: %w", err)
	}

	tag, err := c.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (c *PostgresCache) today() time.Time {
	now := c.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
