package api

import (
	"context"
	"time"

	"github.com/lysyi3m/rss-inbox/internal/cache"
	"github.com/lysyi3m/rss-inbox/internal/database"
	"github.com/lysyi3m/rss-inbox/internal/ingest"
	"github.com/lysyi3m/rss-inbox/internal/tasks"
)

// Ingester is the part of the sync pipeline the API drives directly.
type Ingester interface {
	tasks.Syncer
	RegisterFeed(ctx context.Context, url string) (database.Feed, bool, error)
}

type ReaderService interface {
	Subscribe(ctx context.Context, userID, feedID int64) (database.Subscription, int, error)
	Unsubscribe(ctx context.Context, userID, feedID int64) error
	GetSubscription(ctx context.Context, id int64) (database.Subscription, error)
	ListEntries(ctx context.Context, subscriptionID int64) ([]database.UserEntryView, error)
	UpdateEntryState(ctx context.Context, subscriptionID, entryID int64, state database.EntryState) error
}

type FeedQueries interface {
	GetFeed(ctx context.Context, id int64) (*database.Feed, error)
	ListFeeds(ctx context.Context) ([]database.Feed, error)
	CountEntriesForFeed(ctx context.Context, feedID int64) (int, error)
}

type Handler struct {
	feeds     FeedQueries
	ingester  Ingester
	reader    ReaderService
	scheduler tasks.TaskSchedulerInterface
	generator *RSSGenerator
	rssCache  cache.CacheInterface // nil disables caching
	cacheTTL  time.Duration
	version   string
}

type createFeedRequest struct {
	URL string `json:"url" binding:"required"`
}

type subscribeRequest struct {
	FeedID int64 `json:"feed_id" binding:"required"`
}

type entryStateRequest struct {
	IsRead     *bool `json:"is_read"`
	IsFavorite *bool `json:"is_favorite"`
	IsArchived *bool `json:"is_archived"`
}

type feedResponse struct {
	ID          int64     `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Active      bool      `json:"active"`
	EntryCount  *int      `json:"entry_count,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type subscriptionResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	FeedID    int64     `json:"feed_id"`
	CreatedAt time.Time `json:"created_at"`
}

type entryResponse struct {
	EntryID     int64      `json:"entry_id"`
	FeedID      int64      `json:"feed_id"`
	GUID        string     `json:"guid"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Description string     `json:"description"`
	Summary     string     `json:"summary"`
	PublishedAt *time.Time `json:"published_at"`
	IsRead      bool       `json:"is_read"`
	IsFavorite  bool       `json:"is_favorite"`
	IsArchived  bool       `json:"is_archived"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type syncResponse struct {
	EntriesAdded         int `json:"entries_added"`
	SubscriptionsUpdated int `json:"subscriptions_updated"`
	UserEntriesAdded     int `json:"user_entries_added"`
}

func toFeedResponse(f database.Feed) feedResponse {
	return feedResponse{
		ID:          f.ID,
		URL:         f.URL,
		Title:       f.Title,
		Description: f.Description,
		Active:      f.Active,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func toSubscriptionResponse(sub database.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:        sub.ID,
		UserID:    sub.UserID,
		FeedID:    sub.FeedID,
		CreatedAt: sub.CreatedAt,
	}
}

func toEntryResponse(v database.UserEntryView) entryResponse {
	return entryResponse{
		EntryID:     v.EntryID,
		FeedID:      v.FeedID,
		GUID:        v.GUID,
		Title:       v.Title,
		Link:        v.Link,
		Description: v.Description,
		Summary:     v.Summary,
		PublishedAt: v.PublishedAt,
		IsRead:      v.IsRead,
		IsFavorite:  v.IsFavorite,
		IsArchived:  v.IsArchived,
		UpdatedAt:   v.UpdatedAt,
	}
}

func toSyncResponse(r ingest.Result) syncResponse {
	return syncResponse{
		EntriesAdded:         r.EntriesAdded,
		SubscriptionsUpdated: r.SubscriptionsUpdated,
		UserEntriesAdded:     r.UserEntriesAdded,
	}
}
