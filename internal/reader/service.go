package reader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-inbox/internal/database"
)

var (
	ErrFeedNotFound         = errors.New("feed not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrAlreadySubscribed    = errors.New("already subscribed")
)

// Materializer fills a subscription's inbox from its feed's entries.
type Materializer interface {
	Materialize(ctx context.Context, sub database.Subscription) (int, error)
}

// Service is the per-user surface over the shared feed store.
type Service struct {
	store  database.Store
	fanout Materializer
}

func NewService(store database.Store, fanout Materializer) *Service {
	return &Service{store: store, fanout: fanout}
}

// Subscribe links the user to an existing feed and fills the new
// subscription with the feed's current entries. It returns the subscription
// and the number of entries materialized for it.
func (s *Service) Subscribe(ctx context.Context, userID, feedID int64) (database.Subscription, int, error) {
	if _, err := s.store.GetFeed(ctx, feedID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.Subscription{}, 0, fmt.Errorf("%w: %d", ErrFeedNotFound, feedID)
		}
		return database.Subscription{}, 0, err
	}

	sub, created, err := s.store.InsertSubscriptionIfAbsent(ctx, database.Subscription{UserID: userID, FeedID: feedID})
	if err != nil {
		return database.Subscription{}, 0, err
	}
	if !created {
		return *sub, 0, ErrAlreadySubscribed
	}

	added, err := s.fanout.Materialize(ctx, *sub)
	if err != nil {
		return *sub, 0, fmt.Errorf("failed to materialize subscription %d: %w", sub.ID, err)
	}

	slog.Info("User subscribed", "user_id", userID, "feed_id", feedID, "subscription_id", sub.ID, "entries", added)
	return *sub, added, nil
}

// Unsubscribe removes the subscription and all of its user entries in one
// transaction.
func (s *Service) Unsubscribe(ctx context.Context, userID, feedID int64) error {
	return s.store.WithTx(ctx, func(tx database.Store) error {
		sub, err := tx.FindSubscription(ctx, userID, feedID)
		if err != nil {
			return err
		}
		if sub == nil {
			return fmt.Errorf("%w: user %d, feed %d", ErrSubscriptionNotFound, userID, feedID)
		}

		removed, err := tx.DeleteUserEntriesForSubscription(ctx, sub.ID)
		if err != nil {
			return err
		}

		if err := tx.DeleteSubscription(ctx, sub.ID); err != nil {
			return err
		}

		slog.Info("User unsubscribed", "user_id", userID, "feed_id", feedID, "subscription_id", sub.ID, "entries", removed)
		return nil
	})
}

func (s *Service) GetSubscription(ctx context.Context, id int64) (database.Subscription, error) {
	sub, err := s.store.GetSubscription(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return database.Subscription{}, fmt.Errorf("%w: %d", ErrSubscriptionNotFound, id)
	}
	if err != nil {
		return database.Subscription{}, err
	}
	return *sub, nil
}

// ListEntries returns the subscription's inbox, newest first.
func (s *Service) ListEntries(ctx context.Context, subscriptionID int64) ([]database.UserEntryView, error) {
	if _, err := s.GetSubscription(ctx, subscriptionID); err != nil {
		return nil, err
	}
	return s.store.ListUserEntries(ctx, subscriptionID)
}

// UpdateEntryState sets the given flags on one inbox entry. Unset fields of
// state are left as they are.
func (s *Service) UpdateEntryState(ctx context.Context, subscriptionID, entryID int64, state database.EntryState) error {
	return s.store.UpdateUserEntryState(ctx, subscriptionID, entryID, state)
}
