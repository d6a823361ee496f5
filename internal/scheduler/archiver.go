// Package scheduler runs the unattended weekly archive under suture.
package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/screamboard/screamboard/internal/logger"
	"github.com/screamboard/screamboard/internal/scream"
	"github.com/screamboard/screamboard/internal/weeks"
)

// Archiver is the part of the board the scheduler drives.
type Archiver interface {
	ArchiveCurrentWeek(ctx context.Context, trigger scream.Trigger) (string, int, error)
}

// WeeklyArchiver archives the current ISO week once a week at a fixed UTC
// weekday and time. A failed run is logged and the next week is attempted as
// usual.
type WeeklyArchiver struct {
	archiver Archiver
	weekday  time.Weekday
	hour     int
	minute   int
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time
}

func NewWeeklyArchiver(archiver Archiver, weekday time.Weekday, hour, minute int) *WeeklyArchiver {
	return &WeeklyArchiver{
		archiver: archiver,
		weekday:  weekday,
		hour:     hour,
		minute:   minute,
		now:      time.Now,
		after:    time.After,
	}
}

// Serve implements suture.Service.
func (w *WeeklyArchiver) Serve(ctx context.Context) error {
	for {
		now := w.now().UTC()
		next := weeks.NextWeekly(now, w.weekday, w.hour, w.minute)
		logger.Log.Info("Next weekly archive scheduled", zap.Time("at", next))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.after(next.Sub(now)):
			w.RunOnce(ctx)
		}
	}
}

// RunOnce archives the current week and reports whether a new archive was
// written. Errors never escape.
func (w *WeeklyArchiver) RunOnce(ctx context.Context) bool {
	weekID, n, err := w.archiver.ArchiveCurrentWeek(ctx, scream.TriggerSchedule)
	switch {
	case err == nil:
		logger.Log.Info("Scheduled archive finished", logger.WithWeekID(weekID), zap.Int("posts", n))
		return true
	case errors.Is(err, scream.ErrWeekAlreadyArchived):
		logger.Log.Info("Week already archived, skipping", logger.WithWeekID(weekID))
	case errors.Is(err, context.Canceled):
	default:
		logger.Log.Error("Scheduled archive failed", logger.WithWeekID(weekID), zap.Error(err))
	}
	return false
}

func (w *WeeklyArchiver) String() string {
	return "weekly-archiver"
}
