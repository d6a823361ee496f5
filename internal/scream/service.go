// Package scream implements the board: posting, reactions, the per-identity
// feed, rankings and statistics, weekly archives and moderation.
//
// Every method takes hashed identities, never raw user ids. All writes run in a
// single transaction and leave the store untouched on failure.
package scream

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/screamboard/screamboard/internal/meme"
	"github.com/screamboard/screamboard/internal/metrics"
)

// Event types published to the Notifier.
const (
	EventScreamCreated = "new_scream"
	EventScreamDeleted = "scream_deleted"
	EventWeekArchived  = "week_archived"
)

// Notifier receives board events after their transaction committed.
type Notifier interface {
	Publish(eventType string, data interface{})
}

// Options configures NewService. Zero values get defaults.
type Options struct {
	Memes        meme.Generator
	MemeTimeout  time.Duration
	ArchiveLimit int
	Sessions     SessionStore
	Notifier     Notifier
	Clock        func() time.Time
}

type Service struct {
	db           *gorm.DB
	memes        meme.Generator
	memeTimeout  time.Duration
	archiveLimit int
	sessions     SessionStore
	notifier     Notifier
	now          func() time.Time
	metrics      *metrics.Metrics
}

func NewService(db *gorm.DB, opts Options) *Service {
	s := &Service{
		db:           db,
		memes:        opts.Memes,
		memeTimeout:  opts.MemeTimeout,
		archiveLimit: opts.ArchiveLimit,
		sessions:     opts.Sessions,
		notifier:     opts.Notifier,
		now:          opts.Clock,
		metrics:      metrics.Get(),
	}
	if s.memes == nil {
		s.memes = meme.Noop{}
	}
	if s.memeTimeout <= 0 {
		s.memeTimeout = 10 * time.Second
	}
	if s.sessions == nil {
		s.sessions = NewDBSessionStore(db)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func (s *Service) publish(eventType string, data interface{}) {
	if s.notifier != nil {
		s.notifier.Publish(eventType, data)
	}
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
