package ingest

import (
	"context"
	"fmt"

	"github.com/lysyi3m/rss-inbox/internal/database"
)

type Fanout struct {
	store database.Store
}

func NewFanout(store database.Store) *Fanout {
	return &Fanout{store: store}
}

// Materialize creates an unread UserEntry for every entry of the
// subscription's feed that the subscription does not track yet. Existing
// rows keep their state. The whole call is one transaction.
func (f *Fanout) Materialize(ctx context.Context, sub database.Subscription) (int, error) {
	added := 0

	err := f.store.WithTx(ctx, func(tx database.Store) error {
		entries, err := tx.ListEntriesForFeed(ctx, sub.FeedID)
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		for _, entry := range entries {
			if entry.FeedID != sub.FeedID {
				return fmt.Errorf("%w: entry %d has feed %d, subscription %d has feed %d",
					ErrIntegrityViolation, entry.ID, entry.FeedID, sub.ID, sub.FeedID)
			}

			existing, err := tx.FindUserEntry(ctx, sub.ID, entry.ID)
			if err != nil {
				return fmt.Errorf("failed to look up user entry: %w", err)
			}
			if existing != nil {
				continue
			}

			created, err := tx.InsertUserEntryIfAbsent(ctx, database.UserEntry{
				SubscriptionID: sub.ID,
				EntryID:        entry.ID,
			})
			if err != nil {
				return fmt.Errorf("failed to insert user entry: %w", err)
			}
			if created {
				added++
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return added, nil
}
