package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-inbox/internal/database"
	"github.com/lysyi3m/rss-inbox/internal/ingest"
)

func TestNewTask(t *testing.T) {
	task := NewTask(TaskTypeSyncFeed, 7)

	_, err := uuid.Parse(task.GetID())
	require.NoError(t, err)
	assert.Equal(t, TaskTypeSyncFeed, task.GetType())
	assert.Equal(t, int64(7), task.GetFeedID())
	assert.Equal(t, DefaultMaxRetries, task.GetMaxRetries())
	assert.Zero(t, task.GetDuration())

	other := NewTask(TaskTypeSyncFeed, 7)
	assert.NotEqual(t, task.GetID(), other.GetID())
}

func TestTaskRetries(t *testing.T) {
	task := NewTask(TaskTypeSyncSubscription, 1)

	for range DefaultMaxRetries {
		require.True(t, task.CanRetry())
		task.IncrementRetryCount()
	}
	assert.False(t, task.CanRetry())
	assert.Equal(t, DefaultMaxRetries, task.GetRetryCount())
}

func TestTaskDuration(t *testing.T) {
	task := NewTask(TaskTypeSyncFeed, 1)
	task.Start()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, task.GetDuration(), 5*time.Millisecond)
}

type recordingSyncer struct {
	feeds chan database.Feed
	subs  chan database.Subscription
	err   error
}

func newRecordingSyncer() *recordingSyncer {
	return &recordingSyncer{
		feeds: make(chan database.Feed, 100),
		subs:  make(chan database.Subscription, 100),
	}
}

func (s *recordingSyncer) SyncFeed(_ context.Context, f database.Feed) (ingest.Result, error) {
	s.feeds <- f
	return ingest.Result{EntriesAdded: 1}, s.err
}

func (s *recordingSyncer) SyncSubscription(_ context.Context, sub database.Subscription) (ingest.Result, error) {
	s.subs <- sub
	return ingest.Result{SubscriptionsUpdated: 1}, s.err
}

func TestSyncFeedTaskExecute(t *testing.T) {
	syncer := newRecordingSyncer()
	f := database.Feed{ID: 3, URL: "https://example.com/rss", Active: true}

	task := NewSyncFeedTask(f, syncer)
	task.Start()
	require.NoError(t, task.Execute(context.Background()))

	require.Len(t, syncer.feeds, 1)
	assert.Equal(t, f, <-syncer.feeds)
}

func TestSyncFeedTaskSkipsInactiveFeed(t *testing.T) {
	syncer := newRecordingSyncer()

	task := NewSyncFeedTask(database.Feed{ID: 3, Active: false}, syncer)
	require.NoError(t, task.Execute(context.Background()))
	assert.Empty(t, syncer.feeds)
}

func TestSyncFeedTaskPropagatesError(t *testing.T) {
	syncer := newRecordingSyncer()
	syncer.err = ingest.ErrFeedUnavailable

	task := NewSyncFeedTask(database.Feed{ID: 3, Active: true}, syncer)
	err := task.Execute(context.Background())
	assert.ErrorIs(t, err, ingest.ErrFeedUnavailable)
}

func TestSyncSubscriptionTaskExecute(t *testing.T) {
	syncer := newRecordingSyncer()
	sub := database.Subscription{ID: 5, UserID: 1, FeedID: 3}

	task := NewSyncSubscriptionTask(sub, syncer)
	assert.Equal(t, int64(3), task.GetFeedID())
	require.NoError(t, task.Execute(context.Background()))
	assert.Equal(t, sub, <-syncer.subs)
}

func TestTaskExecuteCancelledContext(t *testing.T) {
	syncer := newRecordingSyncer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewSyncFeedTask(database.Feed{ID: 1, Active: true}, syncer).Execute(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, syncer.feeds)
}
