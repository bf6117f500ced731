package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"FinanceCollector/internal/domain"
	"FinanceCollector/internal/ports"
)

// FileCache keeps resolved filings in day-bucketed JSON files:
// <dir>/<YYYY-MM-DD>/<security>_<year>.json.
type FileCache struct {
	dir string
	now func() time.Time
}

var _ ports.FilingCache = (*FileCache)(nil)

// NewFileCache creates a cache rooted at dir. A nil clock uses time.Now.
func NewFileCache(dir string, now func() time.Time) *FileCache {
	if now == nil {
		now = time.Now
	}
	return &FileCache{dir: dir, now: now}
}

// Get returns today's entry or domain.ErrCacheMiss.
func (c *FileCache) Get(ctx context.Context, securityID string, year int) (domain.FilingLineItems, error) {
	if err := ctx.Err(); err != nil {
		return domain.FilingLineItems{}, err
	}

	now := c.now()
	raw, err := os.ReadFile(c.path(now, securityID, year))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.FilingLineItems{}, domain.ErrCacheMiss
	}
	if err != nil {
		return domain.FilingLineItems{}, fmt.Errorf("read cache entry: %w", err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return domain.FilingLineItems{}, fmt.Errorf("decode cache entry %s/%d: %w", securityID, year, err)
	}
	if !entry.ValidOn(now) || entry.SecurityID != securityID || entry.FiscalYear != year {
		return domain.FilingLineItems{}, domain.ErrCacheMiss
	}

	return entry.Items, nil
}

// Put writes the entry through a temporary file and a rename so readers never
// observe a partial entry.
func (c *FileCache) Put(ctx context.Context, securityID string, year int, items domain.FilingLineItems) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := c.now()
	target := c.path(now, securityID, year)
	bucket := filepath.Dir(target)
	if err := os.MkdirAll(bucket, 0o755); err != nil {
		return fmt.Errorf("create cache bucket: %w", err)
	}

	payload, err := json.Marshal(domain.NewCacheEntry(securityID, year, items, now))
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(bucket, filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp cache file: %w", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit cache entry: %w", err)
	}

	return nil
}

// Prune removes day buckets older than retainDays. It returns the number of buckets removed.
func (c *FileCache) Prune(ctx context.Context, retainDays int) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("list cache dir: %w", err)
	}

	now := c.now()
	today, _ := time.ParseInLocation(domain.DayLayout, domain.Day(now), now.Location())
	cutoff := today.AddDate(0, 0, -retainDays)

	removed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if !entry.IsDir() {
			continue
		}
		day, err := time.ParseInLocation(domain.DayLayout, entry.Name(), now.Location())
		if err != nil || !day.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(c.dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("remove bucket %s: %w", entry.Name(), err)
		}
		removed++
	}

	return removed, nil
}

func (c *FileCache) path(now time.Time, securityID string, year int) string {
	name := filepath.Base(securityID) + "_" + strconv.Itoa(year) + ".json"
	return filepath.Join(c.dir, domain.Day(now), name)
}
