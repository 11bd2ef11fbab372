package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const feedColumns = `id, url, title, description, active, created_at, updated_at`

func scanFeed(row rowScanner) (*Feed, error) {
	var feed Feed
	var description sql.NullString
	err := row.Scan(&feed.ID, &feed.URL, &feed.Title, &description, &feed.Active, &feed.CreatedAt, &feed.UpdatedAt)
	if err != nil {
		return nil, err
	}
	feed.Description = stringPtr(description)
	return &feed, nil
}

// GetFeed returns ErrNotFound when no feed has the given id
func (s *SQLStore) GetFeed(ctx context.Context, id int64) (*Feed, error) {
	feed, err := scanFeed(s.q.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}
	return feed, nil
}

// FindFeedByURL returns nil without error when the URL is unknown
func (s *SQLStore) FindFeedByURL(ctx context.Context, url string) (*Feed, error) {
	feed, err := scanFeed(s.q.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE url = $1`, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find feed by URL: %w", err)
	}
	return feed, nil
}

// InsertFeedIfAbsent inserts the feed unless its URL is already stored, in
// which case the stored row is returned untouched with created=false.
func (s *SQLStore) InsertFeedIfAbsent(ctx context.Context, feed Feed) (*Feed, bool, error) {
	ts := now()
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO feeds (url, title, description, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (url) DO NOTHING
		RETURNING id
	`, feed.URL, feed.Title, nullString(feed.Description), feed.Active, ts, ts).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		existing, err := s.FindFeedByURL(ctx, feed.URL)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("feed %s conflicted but is not visible", feed.URL)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert feed: %w", err)
	}

	feed.ID = id
	feed.CreatedAt = ts
	feed.UpdatedAt = ts
	return &feed, true, nil
}

func (s *SQLStore) ListActiveFeeds(ctx context.Context) ([]Feed, error) {
	return s.queryFeeds(ctx, `SELECT `+feedColumns+` FROM feeds WHERE active = $1 ORDER BY id`, true)
}

func (s *SQLStore) ListFeeds(ctx context.Context) ([]Feed, error) {
	return s.queryFeeds(ctx, `SELECT `+feedColumns+` FROM feeds ORDER BY id`)
}

// SetFeedActive sets the active status of a feed
func (s *SQLStore) SetFeedActive(ctx context.Context, id int64, active bool) error {
	res, err := s.q.ExecContext(ctx, `UPDATE feeds SET active = $2, updated_at = $3 WHERE id = $1`, id, active, now())
	if err != nil {
		return fmt.Errorf("failed to set feed active status: %w", err)
	}
	return expectAffected(res)
}

func (s *SQLStore) queryFeeds(ctx context.Context, query string, args ...any) ([]Feed, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
