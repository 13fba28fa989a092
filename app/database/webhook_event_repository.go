package database

import (
	"fmt"
)

// WebhookEventRepo handles database operations for the webhook audit trail
type WebhookEventRepo struct {
	db *DB
}

// NewWebhookEventRepository creates a new webhook event repository
func NewWebhookEventRepository(db *DB) *WebhookEventRepo {
	return &WebhookEventRepo{db: db}
}

func (r *WebhookEventRepo) RecordEvent(event *WebhookEvent) error {
	_, err := r.db.Exec(`
		INSERT INTO webhook_events (id, platform, event_type, verified, status, detail, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.Platform, event.EventType, event.Verified, event.Status,
		event.Detail, event.ReceivedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record webhook event: %w", err)
	}
	return nil
}

func (r *WebhookEventRepo) GetRecentEvents(limit int) ([]WebhookEvent, error) {
	rows, err := r.db.Query(`
		SELECT id, platform, event_type, verified, status, detail, received_at
		FROM webhook_events
		ORDER BY received_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook events: %w", err)
	}
	defer rows.Close()

	var events []WebhookEvent
	for rows.Next() {
		var event WebhookEvent
		err := rows.Scan(&event.ID, &event.Platform, &event.EventType, &event.Verified,
			&event.Status, &event.Detail, &event.ReceivedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *WebhookEventRepo) GetEventStats() (map[string]int, error) {
	rows, err := r.db.Query(`
		SELECT status, COUNT(*) FROM webhook_events GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook stats: %w", err)
	}
	defer rows.Close()

	stats := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan webhook stats: %w", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
