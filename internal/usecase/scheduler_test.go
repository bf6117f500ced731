package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualDriver struct {
	job     func(time.Time)
	stopped bool
}

func (d *manualDriver) Start(_ context.Context, job func(time.Time)) error {
	d.job = job
	return nil
}

func (d *manualDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerRunsJobAndLogsFailures(t *testing.T) {
	var logs bytes.Buffer
	driver := &manualDriver{}
	var triggers []time.Time
	s := NewScheduler(driver, func(_ context.Context, at time.Time) error {
		triggers = append(triggers, at)
		return errors.New("universe unavailable")
	}, slog.New(slog.NewTextHandler(&logs, nil)))

	require.NoError(t, s.Start(context.Background()))
	require.NotNil(t, driver.job)

	at := time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC)
	driver.job(at)
	assert.Equal(t, []time.Time{at}, triggers)
	assert.Contains(t, logs.String(), "scheduled run failed")

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, driver.stopped)
}

func TestSchedulerSkipsOverlappingTrigger(t *testing.T) {
	driver := &manualDriver{}
	calls := 0
	s := NewScheduler(driver, func(context.Context, time.Time) error {
		calls++
		driver.job(time.Now())
		return nil
	}, quietLogger())

	require.NoError(t, s.Start(context.Background()))
	driver.job(time.Now())
	assert.Equal(t, 1, calls)

	driver.job(time.Now())
	assert.Equal(t, 2, calls)
}

func TestSchedulerWithoutDriverIsNoop(t *testing.T) {
	s := NewScheduler(nil, nil, nil)
	assert.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}
