package database

import (
	"database/sql"
	"fmt"
)

// PublishedPostRepo handles database operations for successful publishes
type PublishedPostRepo struct {
	db *DB
}

// NewPublishedPostRepository creates a new published post repository
func NewPublishedPostRepository(db *DB) *PublishedPostRepo {
	return &PublishedPostRepo{db: db}
}

func (r *PublishedPostRepo) RecordPublished(published *PublishedPost) error {
	_, err := r.db.Exec(`
		INSERT INTO published_posts (id, queue_job_id, post_id, platform, platform_post_id, platform_url, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, published.ID, published.QueueJobID, published.PostID, published.Platform,
		published.PlatformPostID, published.PlatformURL, published.PublishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record published post: %w", err)
	}
	return nil
}

func (r *PublishedPostRepo) GetPublished(postID, platform string) (*PublishedPost, error) {
	row := r.db.QueryRow(`
		SELECT id, queue_job_id, post_id, platform, platform_post_id, platform_url, published_at
		FROM published_posts
		WHERE post_id = ? AND platform = ?
		ORDER BY published_at DESC
		LIMIT 1
	`, postID, platform)

	var published PublishedPost
	err := row.Scan(&published.ID, &published.QueueJobID, &published.PostID, &published.Platform,
		&published.PlatformPostID, &published.PlatformURL, &published.PublishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get published post: %w", err)
	}
	return &published, nil
}

func (r *PublishedPostRepo) GetPublishedByPost(postID string) ([]PublishedPost, error) {
	rows, err := r.db.Query(`
		SELECT id, queue_job_id, post_id, platform, platform_post_id, platform_url, published_at
		FROM published_posts
		WHERE post_id = ?
		ORDER BY published_at DESC
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query published posts: %w", err)
	}
	defer rows.Close()

	var results []PublishedPost
	for rows.Next() {
		var published PublishedPost
		err := rows.Scan(&published.ID, &published.QueueJobID, &published.PostID, &published.Platform,
			&published.PlatformPostID, &published.PlatformURL, &published.PublishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan published post: %w", err)
		}
		results = append(results, published)
	}
	return results, rows.Err()
}
