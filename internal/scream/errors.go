package scream

import "errors"

// Business-rule outcomes. Anything else returned by the service is an internal
// failure and has already been rolled back.
var (
	ErrInvalidContent = errors.New("scream content must be 1-280 characters")
	ErrInvalidEmoji   = errors.New("invalid reaction emoji")
	ErrInvalidWeekID  = errors.New("week id must look like YYYY-WW")
	ErrInvalidAction  = errors.New("review action must be confirm or delete")

	ErrPostNotFound = errors.New("scream not found")
	ErrWeekNotFound = errors.New("week not found in archive")
	ErrFeedEmpty    = errors.New("no more screams")

	ErrAlreadyReacted      = errors.New("already reacted")
	ErrWeekAlreadyArchived = errors.New("week already archived")

	ErrForbidden = errors.New("admin privileges required")

	ErrNoReviewSession = errors.New("no moderation session")
	ErrNothingToReview = errors.New("no screams awaiting moderation")
	ErrReviewConflict  = errors.New("moderation session changed concurrently")
)
