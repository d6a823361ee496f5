package scream

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/screamboard/screamboard/internal/db"
	"github.com/screamboard/screamboard/internal/logger"
	"github.com/screamboard/screamboard/internal/models"
	"github.com/screamboard/screamboard/internal/weeks"
)

// AdminStatus is the outcome of CreateAdmin.
type AdminStatus string

const (
	AdminCreated AdminStatus = "ok"
	AlreadyAdmin AdminStatus = "alreadyAdmin"
)

// IsAdmin reports whether identity holds the admin flag.
func (s *Service) IsAdmin(ctx context.Context, identity string) (bool, error) {
	return isAdmin(s.db.WithContext(ctx), identity)
}

func isAdmin(tx *gorm.DB, identity string) (bool, error) {
	var count int64
	if err := tx.Model(&models.Admin{}).Where("identity = ?", identity).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return count > 0, nil
}

func (s *Service) requireAdmin(ctx context.Context, identity string) error {
	ok, err := s.IsAdmin(ctx, identity)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// CreateAdmin grants the admin flag to target on behalf of requester, who must
// already be an admin.
func (s *Service) CreateAdmin(ctx context.Context, requester, target string) (AdminStatus, error) {
	if err := s.requireAdmin(ctx, requester); err != nil {
		return "", err
	}
	status, err := s.grantAdmin(ctx, target)
	if err == nil && status == AdminCreated {
		logger.Log.Info("Admin created", logger.WithIdentity(target))
	}
	return status, err
}

// EnsureAdmin grants the admin flag without an authorization check. It seeds
// the configured default admin and backs the CLI.
func (s *Service) EnsureAdmin(ctx context.Context, identity string) (AdminStatus, error) {
	return s.grantAdmin(ctx, identity)
}

// RevokeAdmin removes the admin flag and reports whether identity had it.
func (s *Service) RevokeAdmin(ctx context.Context, identity string) (bool, error) {
	res := s.db.WithContext(ctx).Where("identity = ?", identity).Delete(&models.Admin{})
	if res.Error != nil {
		return false, fmt.Errorf("revoke admin: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		logger.Log.Info("Admin revoked", logger.WithIdentity(identity))
	}
	return res.RowsAffected > 0, nil
}

func (s *Service) grantAdmin(ctx context.Context, identity string) (AdminStatus, error) {
	admin := models.Admin{Identity: identity, CreatedAt: s.clock()}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "identity"}}, DoNothing: true}).
		Create(&admin)
	if res.Error != nil {
		if db.IsUniqueViolation(res.Error) {
			return AlreadyAdmin, nil
		}
		return "", fmt.Errorf("create admin: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return AlreadyAdmin, nil
	}
	return AdminCreated, nil
}

// ListUnmoderated returns this week's screams still awaiting review, oldest first.
func (s *Service) ListUnmoderated(ctx context.Context, identity string) ([]models.Post, error) {
	if err := s.requireAdmin(ctx, identity); err != nil {
		return nil, err
	}
	return s.unmoderated(s.db.WithContext(ctx))
}

func (s *Service) unmoderated(tx *gorm.DB) ([]models.Post, error) {
	posts := []models.Post{}
	err := tx.Where("moderated = ? AND created_at >= ?", false, weeks.WeekStart(s.clock())).
		Order("created_at ASC").
		Order("id ASC").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("list unmoderated: %w", err)
	}
	return posts, nil
}

// ConfirmPost marks a scream as reviewed.
func (s *Service) ConfirmPost(ctx context.Context, identity string, postID uint) error {
	if err := s.requireAdmin(ctx, identity); err != nil {
		return err
	}
	return s.confirmPost(ctx, postID)
}

func (s *Service) confirmPost(ctx context.Context, postID uint) error {
	res := s.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		Update("moderated", true)
	if res.Error != nil {
		return fmt.Errorf("confirm scream: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrPostNotFound
	}
	logger.Log.Info("Scream confirmed", logger.WithPostID(postID))
	return nil
}

// DeletePost removes a scream together with its reactions and any archive
// entries that reference it.
func (s *Service) DeletePost(ctx context.Context, identity string, postID uint) error {
	if err := s.requireAdmin(ctx, identity); err != nil {
		return err
	}
	return s.deletePost(ctx, postID)
}

func (s *Service) deletePost(ctx context.Context, postID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id").First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return err
		}

		if err := tx.Where("post_id = ?", postID).Delete(&models.Reaction{}).Error; err != nil {
			return fmt.Errorf("delete reactions: %w", err)
		}

		var affected []string
		if err := tx.Model(&models.ArchiveEntry{}).Where("post_id = ?", postID).Distinct().Pluck("week_id", &affected).Error; err != nil {
			return fmt.Errorf("find archive entries: %w", err)
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.ArchiveEntry{}).Error; err != nil {
			return fmt.Errorf("delete archive entries: %w", err)
		}
		for _, weekID := range affected {
			err := tx.Model(&models.ArchivedWeek{}).
				Where("week_id = ?", weekID).
				Update("post_count", gorm.Expr("post_count - 1")).Error
			if err != nil {
				return fmt.Errorf("update archived week: %w", err)
			}
		}

		return tx.Delete(&models.Post{}, postID).Error
	})
	if err != nil {
		if errors.Is(err, ErrPostNotFound) {
			return err
		}
		return fmt.Errorf("delete scream: %w", err)
	}

	logger.Log.Info("Scream deleted", logger.WithPostID(postID))
	s.publish(EventScreamDeleted, payload{"id": postID})
	return nil
}
