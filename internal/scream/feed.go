package scream

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/screamboard/screamboard/internal/models"
	"github.com/screamboard/screamboard/internal/weeks"
)

// NextPost returns the oldest scream of the current week that identity neither
// wrote nor reacted to. A skip reaction counts as seen. ErrFeedEmpty means the
// identity has seen everything.
func (s *Service) NextPost(ctx context.Context, identity string) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).
		Model(&models.Post{}).
		Select("posts.*").
		Joins("LEFT JOIN reactions ON reactions.post_id = posts.id AND reactions.reactor = ?", identity).
		Where("posts.author <> ?", identity).
		Where("reactions.id IS NULL").
		Where("posts.created_at >= ?", weeks.WeekStart(s.clock())).
		Order("posts.created_at ASC").
		Order("posts.id ASC").
		Take(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.FeedEmptyTotal.Inc()
			return nil, ErrFeedEmpty
		}
		return nil, fmt.Errorf("select next scream: %w", err)
	}
	return &post, nil
}
