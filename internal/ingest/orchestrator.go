package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-inbox/internal/database"
	"github.com/lysyi3m/rss-inbox/internal/feed"
)

type Result struct {
	EntriesAdded         int
	SubscriptionsUpdated int
	UserEntriesAdded     int
}

type Orchestrator struct {
	store      database.Store
	parser     FeedParser
	reconciler *Reconciler
	fanout     *Fanout
}

func NewOrchestrator(store database.Store, parser FeedParser) *Orchestrator {
	return &Orchestrator{
		store:      store,
		parser:     parser,
		reconciler: NewReconciler(store),
		fanout:     NewFanout(store),
	}
}

func (o *Orchestrator) Fanout() *Fanout {
	return o.fanout
}

// SyncFeed pulls the feed and fans new entries out to every active
// subscription. A failing subscription does not stop the rest; their errors
// are joined and returned with the partial result.
func (o *Orchestrator) SyncFeed(ctx context.Context, f database.Feed) (Result, error) {
	var result Result

	added, err := o.pull(ctx, f)
	result.EntriesAdded = added
	if err != nil {
		return result, err
	}

	subs, err := o.store.ListActiveSubscriptionsForFeed(ctx, f.ID)
	if err != nil {
		return result, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	var errs []error
	for _, sub := range subs {
		n, err := o.fanout.Materialize(ctx, sub)
		if err != nil {
			slog.Warn("Fan-out failed", "feed_id", f.ID, "subscription_id", sub.ID, "error", err)
			errs = append(errs, fmt.Errorf("subscription %d: %w", sub.ID, err))
			continue
		}
		result.SubscriptionsUpdated++
		result.UserEntriesAdded += n
	}

	return result, errors.Join(errs...)
}

// SyncSubscription pulls the subscription's feed and fans out to that
// subscription only.
func (o *Orchestrator) SyncSubscription(ctx context.Context, sub database.Subscription) (Result, error) {
	var result Result

	f, err := o.store.GetFeed(ctx, sub.FeedID)
	if err != nil {
		return result, fmt.Errorf("failed to get feed %d: %w", sub.FeedID, err)
	}

	added, err := o.pull(ctx, *f)
	result.EntriesAdded = added
	if err != nil {
		return result, err
	}

	n, err := o.fanout.Materialize(ctx, sub)
	if err != nil {
		return result, fmt.Errorf("subscription %d: %w", sub.ID, err)
	}
	result.SubscriptionsUpdated = 1
	result.UserEntriesAdded = n

	return result, nil
}

// RegisterFeed returns the feed stored for url, creating it from a first
// parse when it is unknown. Nothing is written when the parse fails.
func (o *Orchestrator) RegisterFeed(ctx context.Context, url string) (database.Feed, bool, error) {
	existing, err := o.store.FindFeedByURL(ctx, url)
	if err != nil {
		return database.Feed{}, false, fmt.Errorf("failed to look up feed: %w", err)
	}
	if existing != nil {
		return *existing, false, nil
	}

	parsed, err := o.parser.Parse(ctx, url)
	if err != nil {
		return database.Feed{}, false, fmt.Errorf("%w: %s: %w", ErrFeedUnavailable, url, err)
	}

	candidate := database.Feed{
		URL:    url,
		Title:  parsed.Metadata.Title,
		Active: true,
	}
	if parsed.Metadata.Description != "" {
		description := parsed.Metadata.Description
		candidate.Description = &description
	}

	stored, created, err := o.store.InsertFeedIfAbsent(ctx, candidate)
	if err != nil {
		return database.Feed{}, false, fmt.Errorf("failed to insert feed: %w", err)
	}

	if created {
		slog.Info("Feed registered", "feed_id", stored.ID, "url", url, "title", stored.Title)
	}

	return *stored, created, nil
}

func (o *Orchestrator) pull(ctx context.Context, f database.Feed) (int, error) {
	parsed, err := o.parser.Parse(ctx, f.URL)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrFeedUnavailable, f.URL, err)
	}

	return o.reconcile(ctx, f, parsed.Entries)
}

func (o *Orchestrator) reconcile(ctx context.Context, f database.Feed, entries []feed.Entry) (int, error) {
	added, err := o.reconciler.Reconcile(ctx, f, entries)
	if err != nil {
		return added, fmt.Errorf("failed to reconcile feed %d: %w", f.ID, err)
	}
	return added, nil
}
