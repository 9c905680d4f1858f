package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/benbjohnson/clock"
)

func waitRun(t *testing.T, runs <-chan struct{}) {
	t.Helper()
	select {
	case <-runs:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}

func assertNoRun(t *testing.T, runs <-chan struct{}) {
	t.Helper()
	select {
	case <-runs:
		t.Fatal("unexpected job run")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSchedulerRunsOnStartupIntervalAndTrigger(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := make(chan struct{}, 10)
	mock := clock.NewMock()
	s, err := NewForTesting(func(ctx context.Context) error {
		runs <- struct{}{}
		return errors.New("upstream unavailable")
	}, time.Minute, "", nil, mock)
	assert.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// Запуск при старте
	waitRun(t, runs)
	assertNoRun(t, runs)

	// Запуск по интервалу
	mock.Add(time.Minute)
	waitRun(t, runs)

	// Немедленный запуск по сигналу
	s.Trigger()
	waitRun(t, runs)

	cancel()
	<-done
}

func TestTriggerNeverBlocks(t *testing.T) {
	s, err := NewForTesting(func(ctx context.Context) error { return nil }, time.Minute, "", nil, clock.NewMock())
	assert.NoError(t, err)

	for i := 0; i < 100; i++ {
		s.Trigger()
	}
	assert.Equal(t, 1, len(s.trigger))
}

func TestNextUsesCronExpression(t *testing.T) {
	s, err := NewForTesting(func(ctx context.Context) error { return nil }, time.Hour, "*/15 * * * *", nil, clock.NewMock())
	assert.NoError(t, err)

	now := time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC)
	assert.Equal(t, 10*time.Minute, s.Next(now))
}

func TestNextDefaultsToInterval(t *testing.T) {
	s, err := NewForTesting(func(ctx context.Context) error { return nil }, 0, "", nil, clock.NewMock())
	assert.NoError(t, err)
	assert.Equal(t, DefaultInterval, s.Next(time.Now()))
}

func TestInvalidCronExpression(t *testing.T) {
	_, err := NewForTesting(func(ctx context.Context) error { return nil }, time.Hour, "not a cron", nil, clock.NewMock())
	assert.Error(t, err)
}
