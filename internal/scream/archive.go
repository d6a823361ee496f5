package scream

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/screamboard/screamboard/internal/db"
	"github.com/screamboard/screamboard/internal/logger"
	"github.com/screamboard/screamboard/internal/models"
	"github.com/screamboard/screamboard/internal/weeks"
)

// Trigger names what started an archive run.
type Trigger string

const (
	TriggerAdmin    Trigger = "admin"
	TriggerSchedule Trigger = "schedule"
	TriggerCLI      Trigger = "cli"
)

// ArchiveWeek freezes the current week's top screams under weekID and returns
// how many were stored. Ids are stored as YYYY-WW, so every accepted spelling
// of a week claims the same row. A week id is archived at most once: the claim
// row and its entries commit together or not at all.
func (s *Service) ArchiveWeek(ctx context.Context, weekID string, trigger Trigger) (int, error) {
	weekID, ok := weeks.CanonicalWeekID(weekID)
	if !ok {
		return 0, ErrInvalidWeekID
	}

	now := s.clock()
	start, end := weeks.WeekBounds(now)
	var stored int

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim := models.ArchivedWeek{WeekID: weekID, ArchivedAt: now}
		if err := tx.Create(&claim).Error; err != nil {
			if db.IsUniqueViolation(err) {
				return ErrWeekAlreadyArchived
			}
			return fmt.Errorf("claim week: %w", err)
		}

		rows, err := topVoted(tx, start, end, s.archiveLimit)
		if err != nil {
			return fmt.Errorf("rank week: %w", err)
		}

		for i, row := range rows {
			entry := models.ArchiveEntry{
				WeekID:  weekID,
				PostID:  row.ID,
				Content: row.Content,
				MemeURL: row.MemeURL,
				Votes:   row.Votes,
				Place:   i + 1,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return fmt.Errorf("store archive entry: %w", err)
			}
		}

		stored = len(rows)
		return tx.Model(&models.ArchivedWeek{}).
			Where("week_id = ?", weekID).
			Update("post_count", stored).Error
	})

	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrWeekAlreadyArchived):
		result = "duplicate"
	default:
		result = "error"
	}
	s.metrics.ArchiveRunsTotal.WithLabelValues(string(trigger), result).Inc()

	if err != nil {
		if result == "error" {
			logger.Log.Error("Archive failed", logger.WithWeekID(weekID), zap.String("trigger", string(trigger)), zap.Error(err))
		}
		return 0, err
	}

	s.metrics.ArchivedPostsTotal.Add(float64(stored))
	logger.Log.Info("Week archived",
		logger.WithWeekID(weekID),
		zap.String("trigger", string(trigger)),
		zap.Int("posts", stored),
	)
	s.publish(EventWeekArchived, payload{"weekId": weekID, "posts": stored})
	return stored, nil
}

// ArchiveCurrentWeek archives under the ISO week id of the current time.
func (s *Service) ArchiveCurrentWeek(ctx context.Context, trigger Trigger) (string, int, error) {
	weekID := weeks.ISOWeekID(s.clock())
	n, err := s.ArchiveWeek(ctx, weekID, trigger)
	return weekID, n, err
}

// ListArchivedWeeks returns every archived week id, newest first.
func (s *Service) ListArchivedWeeks(ctx context.Context) ([]models.ArchivedWeek, error) {
	var archived []models.ArchivedWeek
	err := s.db.WithContext(ctx).
		Order("week_id DESC").
		Find(&archived).Error
	if err != nil {
		return nil, fmt.Errorf("list archived weeks: %w", err)
	}
	return archived, nil
}

// GetArchivedWeek returns the frozen entries of weekID in place order. A week
// archived with no voted screams yields an empty slice.
func (s *Service) GetArchivedWeek(ctx context.Context, weekID string) ([]models.ArchiveEntry, error) {
	weekID, ok := weeks.CanonicalWeekID(weekID)
	if !ok {
		return nil, ErrInvalidWeekID
	}

	tx := s.db.WithContext(ctx)
	var claim models.ArchivedWeek
	if err := tx.Where("week_id = ?", weekID).Take(&claim).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWeekNotFound
		}
		return nil, fmt.Errorf("load archived week: %w", err)
	}

	entries := []models.ArchiveEntry{}
	err := tx.Where("week_id = ?", weekID).
		Order("place ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("load archive entries: %w", err)
	}
	return entries, nil
}
