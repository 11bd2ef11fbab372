package tasks

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/rss-inbox/internal/database"
)

type SyncFeedTask struct {
	Task
	Feed   database.Feed
	syncer Syncer
}

func NewSyncFeedTask(feed database.Feed, syncer Syncer) *SyncFeedTask {
	return &SyncFeedTask{
		Task:   NewTask(TaskTypeSyncFeed, feed.ID),
		Feed:   feed,
		syncer: syncer,
	}
}

func (t *SyncFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.Feed.Active {
		slog.Debug("Feed inactive, skipping", "feed_id", t.FeedID, "url", t.Feed.URL)
		return nil
	}

	result, err := t.syncer.SyncFeed(ctx, t.Feed)
	if err != nil {
		return err
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed_id", t.FeedID,
		"duration", t.GetDuration(),
		"new", result.EntriesAdded,
		"subscriptions", result.SubscriptionsUpdated,
		"user_entries", result.UserEntriesAdded)

	return nil
}
