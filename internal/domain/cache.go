package domain

import (
	"errors"
	"time"
)

// ErrCacheMiss reports that no valid cache entry exists for today.
var ErrCacheMiss = errors.New("cache miss")

// DayLayout is the calendar-day format used for cache buckets and retrieval dates.
const DayLayout = "2006-01-02"

// CacheEntry is a resolved filing stored for one calendar day.
type CacheEntry struct {
	SecurityID  string          `json:"securityId"`
	FiscalYear  int             `json:"fiscalYear"`
	Items       FilingLineItems `json:"items"`
	RetrievedOn string          `json:"retrievedOn"`
}

// NewCacheEntry stamps items with the calendar day of now.
func NewCacheEntry(securityID string, year int, items FilingLineItems, now time.Time) CacheEntry {
	return CacheEntry{
		SecurityID:  securityID,
		FiscalYear:  year,
		Items:       items,
		RetrievedOn: Day(now),
	}
}

// ValidOn reports whether the entry was retrieved on the same calendar day as now.
func (e CacheEntry) ValidOn(now time.Time) bool {
	return e.RetrievedOn != "" && e.RetrievedOn == Day(now)
}

// Day formats t as a calendar day in its own location.
func Day(t time.Time) string {
	return t.Format(DayLayout)
}
