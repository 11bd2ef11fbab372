package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const subscriptionColumns = `id, user_id, feed_id, created_at, updated_at`

func scanSubscription(row rowScanner) (*Subscription, error) {
	var sub Subscription
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.FeedID, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetSubscription returns ErrNotFound when no subscription has the given id
func (s *SQLStore) GetSubscription(ctx context.Context, id int64) (*Subscription, error) {
	sub, err := scanSubscription(s.q.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM feed_subscriptions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// FindSubscription returns nil without error when the user is not subscribed to the feed
func (s *SQLStore) FindSubscription(ctx context.Context, userID, feedID int64) (*Subscription, error) {
	sub, err := scanSubscription(s.q.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM feed_subscriptions WHERE user_id = $1 AND feed_id = $2`, userID, feedID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return sub, nil
}

func (s *SQLStore) InsertSubscriptionIfAbsent(ctx context.Context, sub Subscription) (*Subscription, bool, error) {
	ts := now()
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO feed_subscriptions (user_id, feed_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, feed_id) DO NOTHING
		RETURNING id
	`, sub.UserID, sub.FeedID, ts, ts).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		existing, err := s.FindSubscription(ctx, sub.UserID, sub.FeedID)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("subscription of user %d to feed %d conflicted but is not visible", sub.UserID, sub.FeedID)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert subscription: %w", err)
	}

	sub.ID = id
	sub.CreatedAt = ts
	sub.UpdatedAt = ts
	return &sub, true, nil
}

// DeleteSubscription removes the subscription row only; callers that need the
// user entries gone as well delete them in the same transaction.
func (s *SQLStore) DeleteSubscription(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM feed_subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return expectAffected(res)
}

// ListActiveSubscriptionsForFeed returns every subscription of the feed.
// Unsubscribing deletes the row, so each stored subscription is active.
func (s *SQLStore) ListActiveSubscriptionsForFeed(ctx context.Context, feedID int64) ([]Subscription, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM feed_subscriptions WHERE feed_id = $1 ORDER BY id`, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription row: %w", err)
		}
		subs = append(subs, *sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscription rows: %w", err)
	}

	return subs, nil
}
