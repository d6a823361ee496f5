package scream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/screamboard/screamboard/internal/logger"
	"github.com/screamboard/screamboard/internal/models"
)

// Review actions accepted by ResolveReview.
const (
	ActionConfirm = "confirm"
	ActionDelete  = "delete"
)

// ReviewSession is one admin's moderation cursor over a snapshot of post ids.
// Version is the store's revision of the session; zero means not yet stored.
type ReviewSession struct {
	Identity string `json:"identity"`
	PostIDs  []uint `json:"postIds"`
	Index    int    `json:"index"`
	Version  int64  `json:"version"`
}

// reviewSaveAttempts bounds how often a review update is reapplied after
// losing a race with another request from the same admin.
const reviewSaveAttempts = 5

// SessionStore persists review sessions keyed by admin identity. Load returns
// ErrNoReviewSession when none exists.
//
// Save with Version 0 replaces whatever is stored. Any other Version is a
// compare-and-set against the stored revision and fails with ErrReviewConflict
// when the session was saved or deleted since it was loaded. A successful Save
// sets session.Version to the new revision.
type SessionStore interface {
	Load(ctx context.Context, identity string) (*ReviewSession, error)
	Save(ctx context.Context, session *ReviewSession) error
	Delete(ctx context.Context, identity string) error
}

// ReviewItem is the post under an admin's cursor.
type ReviewItem struct {
	Post     models.Post `json:"post"`
	Position int         `json:"position"`
	Total    int         `json:"total"`
}

// StartReview snapshots the unmoderated queue into identity's session,
// replacing any previous one.
func (s *Service) StartReview(ctx context.Context, identity string) (*ReviewItem, error) {
	if err := s.requireAdmin(ctx, identity); err != nil {
		return nil, err
	}

	posts, err := s.unmoderated(s.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		_ = s.sessions.Delete(ctx, identity)
		return nil, ErrNothingToReview
	}

	session := &ReviewSession{Identity: identity, PostIDs: make([]uint, len(posts))}
	for i, p := range posts {
		session.PostIDs[i] = p.ID
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save review session: %w", err)
	}
	return s.reviewItem(ctx, session)
}

// CurrentReview returns the post under identity's cursor.
func (s *Service) CurrentReview(ctx context.Context, identity string) (*ReviewItem, error) {
	session, err := s.loadReview(ctx, identity)
	if err != nil {
		return nil, err
	}
	return s.reviewItem(ctx, session)
}

// StepReview moves the cursor by delta, wrapping around the queue.
func (s *Service) StepReview(ctx context.Context, identity string, delta int) (*ReviewItem, error) {
	session, err := s.updateReview(ctx, identity, func(session *ReviewSession) error {
		n := len(session.PostIDs)
		session.Index = ((session.Index+delta)%n + n) % n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.reviewItem(ctx, session)
}

// ResolveReview confirms or deletes the current post and drops it from the
// queue. A nil item means the queue is exhausted.
func (s *Service) ResolveReview(ctx context.Context, identity, action string) (*ReviewItem, error) {
	if action != ActionConfirm && action != ActionDelete {
		return nil, ErrInvalidAction
	}
	session, err := s.loadReview(ctx, identity)
	if err != nil {
		return nil, err
	}
	postID := session.PostIDs[session.Index]

	if action == ActionConfirm {
		err = s.confirmPost(ctx, postID)
	} else {
		err = s.deletePost(ctx, postID)
	}
	// Another admin may have removed it already; drop it either way.
	if err != nil && !errors.Is(err, ErrPostNotFound) {
		return nil, err
	}

	session, err = s.updateReview(ctx, identity, func(session *ReviewSession) error {
		for i, id := range session.PostIDs {
			if id != postID {
				continue
			}
			session.PostIDs = append(session.PostIDs[:i], session.PostIDs[i+1:]...)
			if i < session.Index {
				session.Index--
			}
			break
		}
		if len(session.PostIDs) == 0 {
			return errReviewExhausted
		}
		if session.Index >= len(session.PostIDs) {
			session.Index = 0
		}
		return nil
	})
	if errors.Is(err, errReviewExhausted) || errors.Is(err, ErrNoReviewSession) {
		if err := s.sessions.Delete(ctx, identity); err != nil {
			logger.Log.Warn("Failed to clear review session", logger.WithIdentity(identity), zap.Error(err))
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.reviewItem(ctx, session)
}

var errReviewExhausted = errors.New("review queue exhausted")

// updateReview loads identity's session, applies mutate and saves it. When
// another request saved first the session is reloaded and mutate runs again.
func (s *Service) updateReview(ctx context.Context, identity string, mutate func(*ReviewSession) error) (*ReviewSession, error) {
	for attempt := 1; ; attempt++ {
		session, err := s.loadReview(ctx, identity)
		if err != nil {
			return nil, err
		}
		if err := mutate(session); err != nil {
			return nil, err
		}
		err = s.sessions.Save(ctx, session)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, ErrReviewConflict) || attempt == reviewSaveAttempts {
			return nil, fmt.Errorf("save review session: %w", err)
		}
		logger.Log.Debug("Review session changed, retrying", logger.WithIdentity(identity), zap.Int("attempt", attempt))
	}
}

func (s *Service) loadReview(ctx context.Context, identity string) (*ReviewSession, error) {
	if err := s.requireAdmin(ctx, identity); err != nil {
		return nil, err
	}
	session, err := s.sessions.Load(ctx, identity)
	if err != nil {
		return nil, err
	}
	if len(session.PostIDs) == 0 {
		return nil, ErrNoReviewSession
	}
	if session.Index < 0 || session.Index >= len(session.PostIDs) {
		session.Index = 0
	}
	return session, nil
}

// reviewItem loads the post under the cursor, dropping ids that were deleted
// since the snapshot.
func (s *Service) reviewItem(ctx context.Context, session *ReviewSession) (*ReviewItem, error) {
	dropped := false
	for len(session.PostIDs) > 0 {
		var post models.Post
		err := s.db.WithContext(ctx).First(&post, session.PostIDs[session.Index]).Error
		if err == nil {
			// A conflict means a newer session is stored; it prunes on its own read.
			if dropped {
				if err := s.sessions.Save(ctx, session); err != nil && !errors.Is(err, ErrReviewConflict) {
					return nil, fmt.Errorf("save review session: %w", err)
				}
			}
			return &ReviewItem{Post: post, Position: session.Index + 1, Total: len(session.PostIDs)}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load review post: %w", err)
		}
		session.PostIDs = append(session.PostIDs[:session.Index], session.PostIDs[session.Index+1:]...)
		if session.Index >= len(session.PostIDs) {
			session.Index = 0
		}
		dropped = true
	}
	_ = s.sessions.Delete(ctx, session.Identity)
	return nil, nil
}

// dbSessionStore keeps sessions in the moderation_sessions table.
type dbSessionStore struct {
	db *gorm.DB
}

func NewDBSessionStore(db *gorm.DB) SessionStore {
	return &dbSessionStore{db: db}
}

func (d *dbSessionStore) Load(ctx context.Context, identity string) (*ReviewSession, error) {
	var row models.ModerationSession
	if err := d.db.WithContext(ctx).Where("identity = ?", identity).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoReviewSession
		}
		return nil, fmt.Errorf("load review session: %w", err)
	}

	session := &ReviewSession{Identity: identity, Index: row.Position, Version: row.Version}
	if err := json.Unmarshal([]byte(row.PostIDs), &session.PostIDs); err != nil {
		return nil, fmt.Errorf("decode review session: %w", err)
	}
	return session, nil
}

func (d *dbSessionStore) Save(ctx context.Context, session *ReviewSession) error {
	ids, err := json.Marshal(session.PostIDs)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	if session.Version != 0 {
		res := d.db.WithContext(ctx).
			Model(&models.ModerationSession{}).
			Where("identity = ? AND version = ?", session.Identity, session.Version).
			Updates(map[string]interface{}{
				"post_ids":   string(ids),
				"position":   session.Index,
				"version":    session.Version + 1,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrReviewConflict
		}
		session.Version++
		return nil
	}

	// Replacing bumps the stored revision so in-flight saves of the old
	// session conflict instead of overwriting the new snapshot.
	var version int64
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.ModerationSession{
			Identity:  session.Identity,
			PostIDs:   string(ids),
			Position:  session.Index,
			Version:   1,
			UpdatedAt: now,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "identity"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"post_ids":   row.PostIDs,
				"position":   row.Position,
				"version":    gorm.Expr("moderation_sessions.version + 1"),
				"updated_at": now,
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		var stored models.ModerationSession
		if err := tx.Select("version").Where("identity = ?", session.Identity).Take(&stored).Error; err != nil {
			return err
		}
		version = stored.Version
		return nil
	})
	if err != nil {
		return err
	}
	session.Version = version
	return nil
}

func (d *dbSessionStore) Delete(ctx context.Context, identity string) error {
	return d.db.WithContext(ctx).Where("identity = ?", identity).Delete(&models.ModerationSession{}).Error
}

const redisSessionPrefix = "screamboard:review:"

// redisSessionStore keeps sessions as JSON values that expire after ttl.
type redisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) SessionStore {
	return &redisSessionStore{client: client, ttl: ttl}
}

func (r *redisSessionStore) Load(ctx context.Context, identity string) (*ReviewSession, error) {
	raw, err := r.client.Get(ctx, redisSessionPrefix+identity).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoReviewSession
		}
		return nil, fmt.Errorf("load review session: %w", err)
	}
	var session ReviewSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode review session: %w", err)
	}
	return &session, nil
}

func (r *redisSessionStore) Save(ctx context.Context, session *ReviewSession) error {
	key := redisSessionPrefix + session.Identity
	var next int64

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		var stored ReviewSession
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(raw, &stored); err != nil {
				return fmt.Errorf("decode review session: %w", err)
			}
		}

		if session.Version == 0 {
			next = stored.Version + 1
		} else {
			if raw == nil || stored.Version != session.Version {
				return ErrReviewConflict
			}
			next = session.Version + 1
		}

		updated := *session
		updated.Version = next
		out, err := json.Marshal(&updated)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, r.ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrReviewConflict
	}
	if err != nil {
		return err
	}
	session.Version = next
	return nil
}

func (r *redisSessionStore) Delete(ctx context.Context, identity string) error {
	return r.client.Del(ctx, redisSessionPrefix+identity).Err()
}
