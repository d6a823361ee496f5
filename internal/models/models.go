package models

import (
	"time"
)

// SkipEmoji marks a post as seen without voting. It excludes the post from the
// reactor's feed but never counts as a vote.
const SkipEmoji = "❌"

// Post represents a single anonymous scream.
type Post struct {
	ID        uint       `gorm:"primarykey" json:"id"`
	Content   string     `gorm:"not null" json:"content"`
	Author    string     `gorm:"not null;index" json:"-"` // hashed identity
	CreatedAt time.Time  `gorm:"not null;index" json:"createdAt"`
	MemeURL   *string    `json:"memeUrl,omitempty"`
	Moderated bool       `gorm:"not null;default:false" json:"moderated"`
	Reactions []Reaction `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}

// Reaction is one identity's emoji on a post. At most one per (post, reactor).
type Reaction struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_reactions_post_reactor" json:"postId"`
	Reactor   string    `gorm:"not null;uniqueIndex:idx_reactions_post_reactor;index" json:"-"`
	Emoji     string    `gorm:"not null" json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

// ArchivedWeek is the claim row for a week's archive. Its primary key makes
// archival happen at most once per week id.
type ArchivedWeek struct {
	WeekID     string    `gorm:"primaryKey;size:16" json:"weekId"`
	ArchivedAt time.Time `gorm:"not null" json:"archivedAt"`
	PostCount  int       `gorm:"not null;default:0" json:"postCount"`
}

// ArchiveEntry is a frozen copy of one top post of an archived week.
type ArchiveEntry struct {
	ID      uint    `gorm:"primarykey" json:"-"`
	WeekID  string  `gorm:"not null;size:16;uniqueIndex:idx_archive_week_place" json:"weekId"`
	PostID  uint    `gorm:"not null;index" json:"postId"`
	Content string  `gorm:"not null" json:"content"`
	MemeURL *string `json:"memeUrl,omitempty"`
	Votes   int64   `gorm:"not null" json:"votes"`
	Place   int     `gorm:"not null;uniqueIndex:idx_archive_week_place" json:"place"`
}

// Admin marks an identity as an administrator.
type Admin struct {
	ID        uint      `gorm:"primarykey"`
	Identity  string    `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time
}

// ModerationSession is one admin's review cursor over a snapshot of
// unmoderated post ids.
type ModerationSession struct {
	Identity  string    `gorm:"primaryKey"`
	PostIDs   string    `gorm:"not null"` // JSON array of post ids
	Position  int       `gorm:"not null;default:0"`
	Version   int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// All lists every model for migrations.
func All() []interface{} {
	return []interface{}{
		&Post{},
		&Reaction{},
		&ArchivedWeek{},
		&ArchiveEntry{},
		&Admin{},
		&ModerationSession{},
	}
}
