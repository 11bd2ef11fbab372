package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-inbox/internal/database"
	"github.com/lysyi3m/rss-inbox/internal/feed"
)

type Reconciler struct {
	store database.Store
}

func NewReconciler(store database.Store) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile stores every entry whose guid is not yet known for the feed and
// returns how many rows it created. Stored entries are never modified. An
// invalid entry stops the call; entries stored before it are kept.
func (r *Reconciler) Reconcile(ctx context.Context, f database.Feed, entries []feed.Entry) (int, error) {
	added := 0

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return added, err
		}

		existing, err := r.store.FindEntryByFeedAndGUID(ctx, f.ID, entry.GUID)
		if err != nil {
			return added, fmt.Errorf("failed to look up entry %q: %w", entry.GUID, err)
		}
		if existing != nil {
			continue
		}

		if err := validateEntry(entry); err != nil {
			return added, fmt.Errorf("entry at index %d: %w", i, err)
		}

		_, created, err := r.store.InsertEntryIfAbsent(ctx, database.Entry{
			FeedID:      f.ID,
			GUID:        entry.GUID,
			Title:       entry.Title,
			Link:        entry.Link,
			Description: entry.Description,
			Summary:     entry.Summary,
			PublishedAt: entry.PublishedAt,
		})
		if err != nil {
			return added, fmt.Errorf("failed to insert entry %q: %w", entry.GUID, err)
		}
		if created {
			added++
		} else {
			slog.Debug("Entry inserted concurrently, skipping", "feed_id", f.ID, "guid", entry.GUID)
		}
	}

	return added, nil
}

func validateEntry(entry feed.Entry) error {
	if entry.GUID == "" {
		return fmt.Errorf("%w: guid is required", ErrInvalidEntry)
	}
	return nil
}
