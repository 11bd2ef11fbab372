package tasks

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/rss-inbox/internal/database"
)

type SyncSubscriptionTask struct {
	Task
	Subscription database.Subscription
	syncer       Syncer
}

func NewSyncSubscriptionTask(sub database.Subscription, syncer Syncer) *SyncSubscriptionTask {
	return &SyncSubscriptionTask{
		Task:         NewTask(TaskTypeSyncSubscription, sub.FeedID),
		Subscription: sub,
		syncer:       syncer,
	}
}

func (t *SyncSubscriptionTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.syncer.SyncSubscription(ctx, t.Subscription)
	if err != nil {
		return err
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed_id", t.FeedID,
		"subscription_id", t.Subscription.ID,
		"duration", t.GetDuration(),
		"new", result.EntriesAdded,
		"user_entries", result.UserEntriesAdded)

	return nil
}
