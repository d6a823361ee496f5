package scream

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/screamboard/screamboard/internal/chart"
	"github.com/screamboard/screamboard/internal/logger"
	"github.com/screamboard/screamboard/internal/models"
	"github.com/screamboard/screamboard/internal/weeks"
)

// NoReactionsLabel is the placeholder bucket of an empty emoji distribution.
const NoReactionsLabel = "No reactions"

// DailySeries counts posts per UTC day over the trailing seven days, oldest first.
type DailySeries struct {
	Start    time.Time                `json:"start"`
	Labels   [weeks.SeriesDays]string `json:"labels"`
	Counts   [weeks.SeriesDays]int64  `json:"counts"`
	ChartURL string                   `json:"chartUrl,omitempty"`
}

type EmojiCount struct {
	Emoji string `json:"emoji"`
	Count int64  `json:"count"`
}

type UserStats struct {
	PostsTotal        int64        `json:"screamsPosted"`
	ReactionsGiven    int64        `json:"reactionsGiven"`
	ReactionsReceived int64        `json:"reactionsGot"`
	Daily             DailySeries  `json:"daily"`
	Emojis            []EmojiCount `json:"emojis"`
	EmojiChartURL     string       `json:"reactionChartUrl,omitempty"`
}

// UserStats computes identity's activity: daily posts this week, lifetime
// totals and the emoji distribution of reactions received. Skip reactions are
// never counted.
func (s *Service) UserStats(ctx context.Context, identity string) (*UserStats, error) {
	daily, err := s.dailySeries(ctx, identity)
	if err != nil {
		return nil, err
	}

	stats := &UserStats{Daily: daily}
	tx := s.db.WithContext(ctx)

	if err := tx.Model(&models.Post{}).Where("author = ?", identity).Count(&stats.PostsTotal).Error; err != nil {
		return nil, fmt.Errorf("count screams: %w", err)
	}

	err = tx.Model(&models.Reaction{}).
		Where("reactor = ? AND emoji <> ?", identity, models.SkipEmoji).
		Count(&stats.ReactionsGiven).Error
	if err != nil {
		return nil, fmt.Errorf("count reactions given: %w", err)
	}

	err = tx.Model(&models.Reaction{}).
		Joins("JOIN posts ON posts.id = reactions.post_id").
		Where("posts.author = ? AND reactions.emoji <> ?", identity, models.SkipEmoji).
		Count(&stats.ReactionsReceived).Error
	if err != nil {
		return nil, fmt.Errorf("count reactions received: %w", err)
	}

	err = tx.Model(&models.Reaction{}).
		Select("reactions.emoji AS emoji, COUNT(reactions.id) AS count").
		Joins("JOIN posts ON posts.id = reactions.post_id").
		Where("posts.author = ? AND reactions.emoji <> ?", identity, models.SkipEmoji).
		Group("reactions.emoji").
		Order("COUNT(reactions.id) DESC").
		Order("reactions.emoji ASC").
		Scan(&stats.Emojis).Error
	if err != nil {
		return nil, fmt.Errorf("group reactions: %w", err)
	}
	if len(stats.Emojis) == 0 {
		stats.Emojis = []EmojiCount{{Emoji: NoReactionsLabel, Count: 1}}
	}

	labels := make([]string, len(stats.Emojis))
	values := make([]int64, len(stats.Emojis))
	for i, e := range stats.Emojis {
		labels[i] = e.Emoji
		values[i] = e.Count
	}
	if url, err := chart.PieURL(labels, values); err != nil {
		logger.Log.Warn("Failed to build reaction chart", zap.Error(err))
	} else {
		stats.EmojiChartURL = url
	}

	return stats, nil
}

// PlatformDailySeries counts all screams per day over the trailing seven days.
func (s *Service) PlatformDailySeries(ctx context.Context) (DailySeries, error) {
	return s.dailySeries(ctx, "")
}

// dailySeries buckets post timestamps by UTC calendar day. An empty author
// counts every post.
func (s *Service) dailySeries(ctx context.Context, author string) (DailySeries, error) {
	start := weeks.SeriesStart(s.clock())
	series := DailySeries{Start: start}
	for i := range series.Labels {
		series.Labels[i] = start.AddDate(0, 0, i).Format("Mon")
	}

	q := s.db.WithContext(ctx).Model(&models.Post{}).Where("created_at >= ?", start)
	if author != "" {
		q = q.Where("author = ?", author)
	}
	var timestamps []time.Time
	if err := q.Pluck("created_at", &timestamps).Error; err != nil {
		return series, fmt.Errorf("load scream timestamps: %w", err)
	}

	for _, ts := range timestamps {
		if idx, ok := weeks.DayIndex(ts.UTC(), start); ok {
			series.Counts[idx]++
		}
	}

	if url, err := chart.BarURL(series.Labels[:], series.Counts[:], "Screams"); err != nil {
		logger.Log.Warn("Failed to build daily chart", zap.Error(err))
	} else {
		series.ChartURL = url
	}
	return series, nil
}
