package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const userEntryColumns = `id, subscription_id, feed_entry_id, is_read, is_favorite, is_archived, created_at, updated_at`

func scanUserEntry(row rowScanner) (*UserEntry, error) {
	var ue UserEntry
	err := row.Scan(&ue.ID, &ue.SubscriptionID, &ue.EntryID, &ue.IsRead, &ue.IsFavorite, &ue.IsArchived,
		&ue.CreatedAt, &ue.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ue, nil
}

// FindUserEntry returns nil without error when the subscription has no row for the entry
func (s *SQLStore) FindUserEntry(ctx context.Context, subscriptionID, entryID int64) (*UserEntry, error) {
	ue, err := scanUserEntry(s.q.QueryRowContext(ctx,
		`SELECT `+userEntryColumns+` FROM user_feed_entries WHERE subscription_id = $1 AND feed_entry_id = $2`,
		subscriptionID, entryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user entry: %w", err)
	}
	return ue, nil
}

// InsertUserEntryIfAbsent reports whether a row was created. An existing row
// keeps its state.
func (s *SQLStore) InsertUserEntryIfAbsent(ctx context.Context, ue UserEntry) (bool, error) {
	ts := now()
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO user_feed_entries (subscription_id, feed_entry_id, is_read, is_favorite, is_archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (subscription_id, feed_entry_id) DO NOTHING
	`, ue.SubscriptionID, ue.EntryID, ue.IsRead, ue.IsFavorite, ue.IsArchived, ts, ts)
	if err != nil {
		return false, fmt.Errorf("failed to insert user entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n > 0, nil
}

// ListUserEntries returns the subscription's entries newest first
func (s *SQLStore) ListUserEntries(ctx context.Context, subscriptionID int64) ([]UserEntryView, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT u.id, u.subscription_id, u.feed_entry_id, u.is_read, u.is_favorite, u.is_archived,
		       u.created_at, u.updated_at,
		       e.feed_id, e.guid, e.title, e.link, e.description, e.summary, e.published_at
		FROM user_feed_entries u
		JOIN feed_entries e ON e.id = u.feed_entry_id
		WHERE u.subscription_id = $1
		ORDER BY COALESCE(e.published_at, e.created_at) DESC, e.id DESC
	`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user entries: %w", err)
	}
	defer rows.Close()

	var views []UserEntryView
	for rows.Next() {
		var v UserEntryView
		var publishedAt sql.NullTime
		err := rows.Scan(
			&v.ID, &v.SubscriptionID, &v.EntryID, &v.IsRead, &v.IsFavorite, &v.IsArchived,
			&v.CreatedAt, &v.UpdatedAt,
			&v.FeedID, &v.GUID, &v.Title, &v.Link, &v.Description, &v.Summary, &publishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user entry row: %w", err)
		}
		v.PublishedAt = timePtr(publishedAt)
		views = append(views, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user entry rows: %w", err)
	}

	return views, nil
}

func (s *SQLStore) CountUserEntries(ctx context.Context, subscriptionID int64) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_feed_entries WHERE subscription_id = $1`, subscriptionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count user entries: %w", err)
	}
	return count, nil
}

// UpdateUserEntryState applies the non-nil fields of state. It returns
// ErrNotFound when the subscription has no row for the entry.
func (s *SQLStore) UpdateUserEntryState(ctx context.Context, subscriptionID, entryID int64, state EntryState) error {
	sets := []string{"updated_at = $1"}
	args := []any{now()}

	add := func(column string, value *bool) {
		if value == nil {
			return
		}
		args = append(args, *value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("is_read", state.IsRead)
	add("is_favorite", state.IsFavorite)
	add("is_archived", state.IsArchived)

	args = append(args, subscriptionID, entryID)
	query := fmt.Sprintf(`UPDATE user_feed_entries SET %s WHERE subscription_id = $%d AND feed_entry_id = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user entry state: %w", err)
	}
	return expectAffected(res)
}

func (s *SQLStore) DeleteUserEntriesForSubscription(ctx context.Context, subscriptionID int64) (int64, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM user_feed_entries WHERE subscription_id = $1`, subscriptionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
