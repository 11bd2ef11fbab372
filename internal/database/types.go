package database

import (
	"time"
)

type Feed struct {
	ID          int64
	URL         string // Unique source URL
	Title       string
	Description *string // Nil when the upstream feed had no description at creation time
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Entry struct {
	ID          int64
	FeedID      int64
	GUID        string // Upstream identifier, unique within a feed
	Title       string
	Link        string
	Description string
	Summary     string
	PublishedAt *time.Time // Nil when the upstream entry carried no date
	CreatedAt   time.Time
}

type Subscription struct {
	ID        int64
	UserID    int64
	FeedID    int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type UserEntry struct {
	ID             int64
	SubscriptionID int64
	EntryID        int64
	IsRead         bool
	IsFavorite     bool
	IsArchived     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserEntryView merges a subscriber's state with the entry it refers to.
type UserEntryView struct {
	UserEntry
	FeedID      int64
	GUID        string
	Title       string
	Link        string
	Description string
	Summary     string
	PublishedAt *time.Time
}

// EntryState carries optional state changes; nil fields are left untouched.
type EntryState struct {
	IsRead     *bool
	IsFavorite *bool
	IsArchived *bool
}
