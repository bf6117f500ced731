package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinanceCollector/internal/domain"
)

type fakeRow struct {
	payload []byte
	err     error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.payload
	return nil
}

type fakeDB struct {
	row       fakeRow
	execTag   pgconn.CommandTag
	execErr   error
	queries   []string
	arguments [][]any
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.queries = append(f.queries, sql)
	f.arguments = append(f.arguments, args)
	return f.row
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.queries = append(f.queries, sql)
	f.arguments = append(f.arguments, args)
	return f.execTag, f.execErr
}

var pgNow = time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC)

func TestPostgresCacheGetFiltersOnToday(t *testing.T) {
	payload, err := json.Marshal(sampleItems())
	require.NoError(t, err)

	db := &fakeDB{row: fakeRow{payload: payload}}
	cache := NewPostgresCache(db, "", func() time.Time { return pgNow })

	got, err := cache.Get(context.Background(), "005930", 2024)
	require.NoError(t, err)
	assert.Equal(t, "2024 Q3-cumulative", got.ReportLabel)

	require.Len(t, db.queries, 1)
	assert.Equal(t,
		"SELECT payload FROM filing_cache WHERE fiscal_year = $1 AND retrieved_on = $2 AND security_id = $3",
		db.queries[0])
	assert.Equal(t, []any{2024, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), "005930"}, db.arguments[0])
}

func TestPostgresCacheNoRowsIsMiss(t *testing.T) {
	db := &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
	cache := NewPostgresCache(db, "", func() time.Time { return pgNow })

	_, err := cache.Get(context.Background(), "005930", 2024)
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestPostgresCacheQueryFailure(t *testing.T) {
	db := &fakeDB{row: fakeRow{err: errors.New("conn closed")}}
	cache := NewPostgresCache(db, "", func() time.Time { return pgNow })

	_, err := cache.Get(context.Background(), "005930", 2024)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrCacheMiss)
}

func TestPostgresCachePutUpserts(t *testing.T) {
	db := &fakeDB{}
	cache := NewPostgresCache(db, "filings", func() time.Time { return pgNow })

	require.NoError(t, cache.Put(context.Background(), "005930", 2024, sampleItems()))

	require.Len(t, db.queries, 1)
	assert.Contains(t, db.queries[0], "INSERT INTO filings (security_id,fiscal_year,retrieved_on,payload) VALUES ($1,$2,$3,$4)")
	assert.Contains(t, db.queries[0], "ON CONFLICT (security_id, fiscal_year) DO UPDATE")

	args := db.arguments[0]
	require.Len(t, args, 4)
	assert.Equal(t, "005930", args[0])
	assert.Equal(t, 2024, args[1])

	var stored domain.FilingLineItems
	require.NoError(t, json.Unmarshal(args[3].([]byte), &stored))
	assert.Equal(t, "300", stored.Revenue.Decimal.String())
}

func TestPostgresCachePrune(t *testing.T) {
	db := &fakeDB{execTag: pgconn.NewCommandTag("DELETE 7")}
	cache := NewPostgresCache(db, "", func() time.Time { return pgNow })

	removed, err := cache.Prune(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 7, removed)
	assert.Equal(t, "DELETE FROM filing_cache WHERE retrieved_on < $1", db.queries[0])
	assert.Equal(t, []any{time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)}, db.arguments[0])
}
