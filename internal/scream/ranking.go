package scream

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/screamboard/screamboard/internal/logger"
	"github.com/screamboard/screamboard/internal/models"
	"github.com/screamboard/screamboard/internal/weeks"
)

// TopPost is one row of a ranking.
type TopPost struct {
	PostID  uint   `json:"id"`
	Content string `json:"content"`
	Votes   int64  `json:"votes"`
	MemeURL string `json:"memeUrl"`
}

type votedPost struct {
	ID      uint
	Content string
	MemeURL *string
	Votes   int64
}

// topVoted ranks posts created in [start, end) by non-skip reactions. Equal
// vote counts are ordered by post id so rankings are stable. limit <= 0 means
// no limit.
func topVoted(tx *gorm.DB, start, end time.Time, limit int) ([]votedPost, error) {
	q := tx.Table("posts").
		Select("posts.id AS id, posts.content AS content, posts.meme_url AS meme_url, COUNT(reactions.id) AS votes").
		Joins("JOIN reactions ON reactions.post_id = posts.id").
		Where("posts.created_at >= ? AND posts.created_at < ?", start, end).
		Where("reactions.emoji <> ?", models.SkipEmoji).
		Group("posts.id, posts.content, posts.meme_url").
		Order("votes DESC").
		Order("posts.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []votedPost
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// TopN returns up to n posts created in [start, end) ordered by votes. Posts
// without a meme get one generated; a post whose generation fails is left out
// of this response and retried on a later call.
func (s *Service) TopN(ctx context.Context, start, end time.Time, n int) ([]TopPost, error) {
	if n <= 0 {
		return []TopPost{}, nil
	}

	rows, err := topVoted(s.db.WithContext(ctx), start.UTC(), end.UTC(), n)
	if err != nil {
		return nil, fmt.Errorf("rank screams: %w", err)
	}

	result := make([]TopPost, 0, len(rows))
	for _, row := range rows {
		memeURL := ""
		if row.MemeURL != nil {
			memeURL = *row.MemeURL
		}
		if memeURL == "" {
			url, ok := s.fillMeme(ctx, row.ID, row.Content)
			if !ok {
				continue
			}
			memeURL = url
		}
		result = append(result, TopPost{
			PostID:  row.ID,
			Content: row.Content,
			Votes:   row.Votes,
			MemeURL: memeURL,
		})
	}
	return result, nil
}

// DailyTop ranks today's posts (UTC).
func (s *Service) DailyTop(ctx context.Context, n int) ([]TopPost, error) {
	start, end := weeks.DayBounds(s.clock())
	return s.TopN(ctx, start, end, n)
}

// fillMeme generates and caches a meme for a post. Concurrent callers may both
// generate; the last write wins.
func (s *Service) fillMeme(ctx context.Context, postID uint, content string) (string, bool) {
	genCtx, cancel := context.WithTimeout(ctx, s.memeTimeout)
	defer cancel()

	url, err := s.memes.Generate(genCtx, content)
	if err != nil {
		s.metrics.MemeGenerationsTotal.WithLabelValues("error").Inc()
		logger.Log.Warn("Failed to generate meme", logger.WithPostID(postID), zap.Error(err))
		return "", false
	}
	s.metrics.MemeGenerationsTotal.WithLabelValues("ok").Inc()

	err = s.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		Update("meme_url", url).Error
	if err != nil {
		logger.Log.Warn("Failed to cache meme url", logger.WithPostID(postID), zap.Error(err))
	}
	return url, true
}
