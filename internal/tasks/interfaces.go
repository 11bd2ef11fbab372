package tasks

import (
	"context"

	"github.com/lysyi3m/rss-inbox/internal/database"
	"github.com/lysyi3m/rss-inbox/internal/ingest"
)

// TaskSchedulerInterface is what the server and the API need from the
// background worker pool.
//
//	scheduler := NewScheduler(store, orchestrator, interval, workers)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewSyncFeedTask(feed, orchestrator))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// Syncer runs the sync pipeline; *ingest.Orchestrator implements it.
type Syncer interface {
	SyncFeed(ctx context.Context, feed database.Feed) (ingest.Result, error)
	SyncSubscription(ctx context.Context, sub database.Subscription) (ingest.Result, error)
}

type FeedLister interface {
	ListActiveFeeds(ctx context.Context) ([]database.Feed, error)
}
