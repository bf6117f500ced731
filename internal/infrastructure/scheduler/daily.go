package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FinanceCollector/internal/ports"
)

// DailyScheduler fires a job once per day at a wall-clock time in a fixed location.
type DailyScheduler struct {
	hour   int
	minute int
	loc    *time.Location

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*DailyScheduler)(nil)

// NewDailyScheduler parses runAt as "HH:MM". A nil location means UTC.
func NewDailyScheduler(runAt string, loc *time.Location) (*DailyScheduler, error) {
	t, err := time.Parse("15:04", runAt)
	if err != nil {
		return nil, fmt.Errorf("parse runAt %q: %w", runAt, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DailyScheduler{
		hour:   t.Hour(),
		minute: t.Minute(),
		loc:    loc,
		now:    time.Now,
		after:  time.After,
	}, nil
}

// NextRun returns the first trigger strictly after now.
func (d *DailyScheduler) NextRun(now time.Time) time.Time {
	local := now.In(d.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.hour, d.minute, 0, 0, d.loc)
	}
	return next
}

// Start runs job at every trigger until ctx is done or Stop is called.
func (d *DailyScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	d.stop, d.done = stop, done

	go func() {
		defer close(done)
		for {
			next := d.NextRun(d.now())
			select {
			case <-d.after(next.Sub(d.now())):
				job(next)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the loop and waits for a running job to return.
func (d *DailyScheduler) Stop(ctx context.Context) error {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
