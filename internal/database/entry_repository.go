package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const entryColumns = `id, feed_id, guid, title, link, description, summary, published_at, created_at`

func scanEntry(row rowScanner) (*Entry, error) {
	var entry Entry
	var publishedAt sql.NullTime
	err := row.Scan(&entry.ID, &entry.FeedID, &entry.GUID, &entry.Title, &entry.Link,
		&entry.Description, &entry.Summary, &publishedAt, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	entry.PublishedAt = timePtr(publishedAt)
	return &entry, nil
}

// FindEntryByFeedAndGUID returns nil without error when the entry is unknown
func (s *SQLStore) FindEntryByFeedAndGUID(ctx context.Context, feedID int64, guid string) (*Entry, error) {
	entry, err := scanEntry(s.q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM feed_entries WHERE feed_id = $1 AND guid = $2`, feedID, guid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find entry: %w", err)
	}
	return entry, nil
}

// InsertEntryIfAbsent stores the entry unless (feed_id, guid) already exists.
// An existing row is never updated.
func (s *SQLStore) InsertEntryIfAbsent(ctx context.Context, entry Entry) (*Entry, bool, error) {
	ts := now()
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO feed_entries (feed_id, guid, title, link, description, summary, published_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (feed_id, guid) DO NOTHING
		RETURNING id
	`, entry.FeedID, entry.GUID, entry.Title, entry.Link, entry.Description, entry.Summary,
		nullTime(entry.PublishedAt), ts).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		existing, err := s.FindEntryByFeedAndGUID(ctx, entry.FeedID, entry.GUID)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("entry %q conflicted but is not visible", entry.GUID)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert entry: %w", err)
	}

	entry.ID = id
	entry.CreatedAt = ts
	return &entry, true, nil
}

// ListEntriesForFeed returns all entries of a feed in first-seen order
func (s *SQLStore) ListEntriesForFeed(ctx context.Context, feedID int64) ([]Entry, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM feed_entries WHERE feed_id = $1 ORDER BY id`, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}

	return entries, nil
}

func (s *SQLStore) CountEntriesForFeed(ctx context.Context, feedID int64) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM feed_entries WHERE feed_id = $1`, feedID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}
