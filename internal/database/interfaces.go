package database

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

type FeedStore interface {
	GetFeed(ctx context.Context, id int64) (*Feed, error)
	FindFeedByURL(ctx context.Context, url string) (*Feed, error)
	InsertFeedIfAbsent(ctx context.Context, feed Feed) (*Feed, bool, error)
	ListActiveFeeds(ctx context.Context) ([]Feed, error)
	ListFeeds(ctx context.Context) ([]Feed, error)
	SetFeedActive(ctx context.Context, id int64, active bool) error
}

type EntryStore interface {
	FindEntryByFeedAndGUID(ctx context.Context, feedID int64, guid string) (*Entry, error)
	InsertEntryIfAbsent(ctx context.Context, entry Entry) (*Entry, bool, error)
	ListEntriesForFeed(ctx context.Context, feedID int64) ([]Entry, error)
	CountEntriesForFeed(ctx context.Context, feedID int64) (int, error)
}

type SubscriptionStore interface {
	GetSubscription(ctx context.Context, id int64) (*Subscription, error)
	FindSubscription(ctx context.Context, userID, feedID int64) (*Subscription, error)
	InsertSubscriptionIfAbsent(ctx context.Context, sub Subscription) (*Subscription, bool, error)
	DeleteSubscription(ctx context.Context, id int64) error
	ListActiveSubscriptionsForFeed(ctx context.Context, feedID int64) ([]Subscription, error)
}

type UserEntryStore interface {
	FindUserEntry(ctx context.Context, subscriptionID, entryID int64) (*UserEntry, error)
	InsertUserEntryIfAbsent(ctx context.Context, userEntry UserEntry) (bool, error)
	ListUserEntries(ctx context.Context, subscriptionID int64) ([]UserEntryView, error)
	CountUserEntries(ctx context.Context, subscriptionID int64) (int, error)
	UpdateUserEntryState(ctx context.Context, subscriptionID, entryID int64, state EntryState) error
	DeleteUserEntriesForSubscription(ctx context.Context, subscriptionID int64) (int64, error)
}

// Store is the persistence collaborator of the sync pipeline. Every
// *IfAbsent method is atomic with respect to its unique key and reports
// created=false, not an error, when the row already exists.
type Store interface {
	FeedStore
	EntryStore
	SubscriptionStore
	UserEntryStore

	// WithTx runs fn against a Store bound to a single transaction. Calls
	// made on a Store that is already transactional join the outer one.
	WithTx(ctx context.Context, fn func(Store) error) error
}
