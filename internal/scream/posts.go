package scream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/screamboard/screamboard/internal/db"
	"github.com/screamboard/screamboard/internal/logger"
	"github.com/screamboard/screamboard/internal/models"
)

const (
	MaxContentLength = 280
	maxEmojiRunes    = 8
)

// ValidateContent checks the 1-280 character rule.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" || utf8.RuneCountInString(content) > MaxContentLength {
		return ErrInvalidContent
	}
	return nil
}

// CreatePost stores a new scream by author.
func (s *Service) CreatePost(ctx context.Context, content, author string) (*models.Post, error) {
	if err := ValidateContent(content); err != nil {
		return nil, err
	}

	post := models.Post{
		Content:   content,
		Author:    author,
		CreatedAt: s.clock(),
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, fmt.Errorf("create scream: %w", err)
	}

	s.metrics.ScreamsCreatedTotal.Inc()
	logger.Log.Info("Scream created", logger.WithPostID(post.ID), logger.WithIdentity(author))
	s.publish(EventScreamCreated, payload{"id": post.ID, "content": post.Content, "createdAt": post.CreatedAt})
	return &post, nil
}

// React records reactor's emoji on a post. The unique (post, reactor) index
// decides concurrent duplicates: exactly one insert wins, the rest get
// ErrAlreadyReacted.
func (s *Service) React(ctx context.Context, postID uint, reactor, emoji string) error {
	if emoji == "" || utf8.RuneCountInString(emoji) > maxEmojiRunes {
		return ErrInvalidEmoji
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id").First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return err
		}

		reaction := models.Reaction{
			PostID:    postID,
			Reactor:   reactor,
			Emoji:     emoji,
			CreatedAt: s.clock(),
		}
		if err := tx.Create(&reaction).Error; err != nil {
			if db.IsUniqueViolation(err) {
				return ErrAlreadyReacted
			}
			return err
		}
		return nil
	})

	switch {
	case err == nil:
		result := "ok"
		if emoji == models.SkipEmoji {
			result = "skip"
		}
		s.metrics.ReactionsTotal.WithLabelValues(result).Inc()
		logger.Log.Debug("Reaction recorded", logger.WithPostID(postID), zap.String("emoji", emoji))
		return nil
	case errors.Is(err, ErrAlreadyReacted):
		s.metrics.ReactionsTotal.WithLabelValues("conflict").Inc()
		return err
	case errors.Is(err, ErrPostNotFound):
		s.metrics.ReactionsTotal.WithLabelValues("not_found").Inc()
		return err
	default:
		s.metrics.ReactionsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("record reaction: %w", err)
	}
}

// payload is an event body.
type payload = map[string]interface{}
