package database

import (
	"database/sql"
	"fmt"
	"time"
)

// FeedSubscriptionRepo handles database operations for polled feed subscriptions
type FeedSubscriptionRepo struct {
	db *DB
}

// NewFeedSubscriptionRepository creates a new feed subscription repository
func NewFeedSubscriptionRepository(db *DB) *FeedSubscriptionRepo {
	return &FeedSubscriptionRepo{db: db}
}

func (r *FeedSubscriptionRepo) UpsertSubscription(subscription *FeedSubscription) error {
	_, err := r.db.Exec(`
		INSERT INTO feed_subscriptions (id, platform, feed_url, site_url, active, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, '', ?, ?)
		ON CONFLICT(feed_url) DO UPDATE SET
			platform = excluded.platform,
			site_url = excluded.site_url,
			active = excluded.active,
			updated_at = excluded.updated_at
	`, subscription.ID, subscription.Platform, subscription.FeedURL, subscription.SiteURL,
		subscription.Active, subscription.CreatedAt.UTC(), subscription.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (r *FeedSubscriptionRepo) GetActiveSubscriptions() ([]FeedSubscription, error) {
	rows, err := r.db.Query(`
		SELECT id, platform, feed_url, site_url, active, last_processed_at, last_error, created_at, updated_at
		FROM feed_subscriptions
		WHERE active = 1
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active subscriptions: %w", err)
	}
	defer rows.Close()

	var subscriptions []FeedSubscription
	for rows.Next() {
		subscription, err := scanFeedSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subscriptions = append(subscriptions, *subscription)
	}
	return subscriptions, rows.Err()
}

func (r *FeedSubscriptionRepo) GetSubscriptionByURL(feedURL string) (*FeedSubscription, error) {
	row := r.db.QueryRow(`
		SELECT id, platform, feed_url, site_url, active, last_processed_at, last_error, created_at, updated_at
		FROM feed_subscriptions
		WHERE feed_url = ?
	`, feedURL)

	subscription, err := scanFeedSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return subscription, nil
}

func (r *FeedSubscriptionRepo) UpdateLastProcessed(subscriptionID string, processedAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE feed_subscriptions
		SET last_processed_at = ?, last_error = '', updated_at = ?
		WHERE id = ?
	`, processedAt.UTC(), processedAt.UTC(), subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to update last processed: %w", err)
	}
	return nil
}

func (r *FeedSubscriptionRepo) UpdateSubscriptionError(subscriptionID string, errorMsg string, now time.Time) error {
	_, err := r.db.Exec(`
		UPDATE feed_subscriptions
		SET last_error = ?, updated_at = ?
		WHERE id = ?
	`, errorMsg, now.UTC(), subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to update subscription error: %w", err)
	}
	return nil
}

// DeactivateSubscription stops polling a feed. The row stays so that
// re-subscribing keeps the dedup history intact.
func (r *FeedSubscriptionRepo) DeactivateSubscription(subscriptionID string, now time.Time) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE feed_subscriptions
		SET active = 0, updated_at = ?
		WHERE id = ? AND active = 1
	`, now.UTC(), subscriptionID)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate subscription: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to deactivate subscription: %w", err)
	}
	return affected > 0, nil
}

func scanFeedSubscription(row rowScanner) (*FeedSubscription, error) {
	var subscription FeedSubscription
	err := row.Scan(&subscription.ID, &subscription.Platform, &subscription.FeedURL,
		&subscription.SiteURL, &subscription.Active, &subscription.LastProcessedAt,
		&subscription.LastError, &subscription.CreatedAt, &subscription.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}
