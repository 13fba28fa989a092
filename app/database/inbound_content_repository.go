package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// InboundContentRepo handles database operations for ingested content
type InboundContentRepo struct {
	db *DB
}

// NewInboundContentRepository creates a new inbound content repository
func NewInboundContentRepository(db *DB) *InboundContentRepo {
	return &InboundContentRepo{db: db}
}

// InsertContent stores a normalized item. Returns false when the same
// platform post was already ingested; the UNIQUE constraint on
// (platform, platform_post_id) makes the dedup atomic across workers.
func (r *InboundContentRepo) InsertContent(content *InboundContent) (bool, error) {
	tags, err := json.Marshal(content.Tags)
	if err != nil {
		return false, fmt.Errorf("failed to encode tags: %w", err)
	}
	topics, err := json.Marshal(content.Topics)
	if err != nil {
		return false, fmt.Errorf("failed to encode topics: %w", err)
	}
	mentions, err := json.Marshal(content.Mentions)
	if err != nil {
		return false, fmt.Errorf("failed to encode mentions: %w", err)
	}
	links, err := json.Marshal(content.Links)
	if err != nil {
		return false, fmt.Errorf("failed to encode links: %w", err)
	}
	media, err := json.Marshal(content.Media)
	if err != nil {
		return false, fmt.Errorf("failed to encode media: %w", err)
	}
	engagement, err := json.Marshal(content.Engagement)
	if err != nil {
		return false, fmt.Errorf("failed to encode engagement: %w", err)
	}

	result, err := r.db.Exec(`
		INSERT OR IGNORE INTO inbound_content (id, platform, platform_post_id, source, title, body, body_html, excerpt, author, url, tags, topics, mentions, links, media, engagement, word_count, reading_time, published_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, content.ID, content.Platform, content.PlatformPostID, content.Source, content.Title,
		content.Body, content.BodyHTML, content.Excerpt, content.Author, content.URL, string(tags), string(topics),
		string(mentions), string(links), string(media), string(engagement),
		content.WordCount, content.ReadingTime, utcOrNil(content.PublishedAt), content.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to insert content: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check insert result: %w", err)
	}
	return affected > 0, nil
}

func (r *InboundContentRepo) GetContent(contentID string) (*InboundContent, error) {
	row := r.db.QueryRow(`
		SELECT id, platform, platform_post_id, source, title, body, body_html, excerpt, author, url, tags, topics, mentions, links, media, engagement, word_count, reading_time, published_at, created_at
		FROM inbound_content
		WHERE id = ?
	`, contentID)

	content, err := scanInboundContent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content: %w", err)
	}
	return content, nil
}

func (r *InboundContentRepo) GetContentByPlatformPost(platform, platformPostID string) (*InboundContent, error) {
	row := r.db.QueryRow(`
		SELECT id, platform, platform_post_id, source, title, body, body_html, excerpt, author, url, tags, topics, mentions, links, media, engagement, word_count, reading_time, published_at, created_at
		FROM inbound_content
		WHERE platform = ? AND platform_post_id = ?
	`, platform, platformPostID)

	content, err := scanInboundContent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content by platform post: %w", err)
	}
	return content, nil
}

func (r *InboundContentRepo) GetRecentContent(limit int) ([]InboundContent, error) {
	rows, err := r.db.Query(`
		SELECT id, platform, platform_post_id, source, title, body, body_html, excerpt, author, url, tags, topics, mentions, links, media, engagement, word_count, reading_time, published_at, created_at
		FROM inbound_content
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent content: %w", err)
	}
	defer rows.Close()

	var results []InboundContent
	for rows.Next() {
		content, err := scanInboundContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content: %w", err)
		}
		results = append(results, *content)
	}
	return results, rows.Err()
}

func (r *InboundContentRepo) GetContentCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM inbound_content`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count content: %w", err)
	}
	return count, nil
}

func scanInboundContent(row rowScanner) (*InboundContent, error) {
	var content InboundContent
	var tags, topics, mentions, links, media, engagement string
	err := row.Scan(&content.ID, &content.Platform, &content.PlatformPostID, &content.Source,
		&content.Title, &content.Body, &content.BodyHTML, &content.Excerpt, &content.Author, &content.URL,
		&tags, &topics, &mentions, &links, &media, &engagement, &content.WordCount, &content.ReadingTime,
		&content.PublishedAt, &content.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &content.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(topics), &content.Topics); err != nil {
		return nil, fmt.Errorf("failed to decode topics: %w", err)
	}
	if err := json.Unmarshal([]byte(mentions), &content.Mentions); err != nil {
		return nil, fmt.Errorf("failed to decode mentions: %w", err)
	}
	if err := json.Unmarshal([]byte(links), &content.Links); err != nil {
		return nil, fmt.Errorf("failed to decode links: %w", err)
	}
	if err := json.Unmarshal([]byte(media), &content.Media); err != nil {
		return nil, fmt.Errorf("failed to decode media: %w", err)
	}
	if err := json.Unmarshal([]byte(engagement), &content.Engagement); err != nil {
		return nil, fmt.Errorf("failed to decode engagement: %w", err)
	}
	return &content, nil
}
