package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screamboard/screamboard/internal/scream"
)

type fakeArchiver struct {
	mu       sync.Mutex
	results  []error
	calls    int
	triggers []scream.Trigger
}

func (f *fakeArchiver) ArchiveCurrentWeek(_ context.Context, trigger scream.Trigger) (string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, trigger)
	var err error
	if f.calls < len(f.results) {
		err = f.results[f.calls]
	}
	f.calls++
	return "2025-18", 3, err
}

func (f *fakeArchiver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRunOnce(t *testing.T) {
	f := &fakeArchiver{results: []error{nil, scream.ErrWeekAlreadyArchived, errors.New("db gone")}}
	w := NewWeeklyArchiver(f, time.Sunday, 23, 59)

	assert.True(t, w.RunOnce(context.Background()))
	assert.False(t, w.RunOnce(context.Background()))
	assert.False(t, w.RunOnce(context.Background()))
	assert.Equal(t, []scream.Trigger{scream.TriggerSchedule, scream.TriggerSchedule, scream.TriggerSchedule}, f.triggers)
}

func TestServeSurvivesFailedRuns(t *testing.T) {
	f := &fakeArchiver{results: []error{errors.New("boom"), errors.New("boom again")}}
	w := NewWeeklyArchiver(f, time.Sunday, 23, 59)

	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	var waits []time.Duration
	var mu sync.Mutex
	w.after = func(d time.Duration) <-chan time.Time {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		ch := make(chan time.Time, 1)
		ch <- now
		return ch
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Serve(ctx) }()

	require.Eventually(t, func() bool { return f.callCount() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	// Thursday noon to Sunday 23:59.
	assert.Equal(t, 3*24*time.Hour+11*time.Hour+59*time.Minute, waits[0])
}

func TestServeStopsWhileWaiting(t *testing.T) {
	f := &fakeArchiver{}
	w := NewWeeklyArchiver(f, time.Sunday, 23, 59)
	w.after = func(time.Duration) <-chan time.Time { return make(chan time.Time) }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Serve(ctx), context.Canceled)
	assert.Zero(t, f.callCount())
	assert.Equal(t, "weekly-archiver", w.String())
}
