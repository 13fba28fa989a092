package database

import (
	"testing"
	"time"
)

func TestInboundContentRepo_InsertDeduplicates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInboundContentRepository(db)

	now := time.Now().UTC()
	content := &InboundContent{
		ID:             "content-1",
		Platform:       "devto",
		PlatformPostID: "article-42",
		Source:         "webhook",
		Title:          "Understanding Channels",
		Body:           "Channels coordinate goroutines.",
		Tags:           []string{"go", "concurrency"},
		Topics:         []string{"programming"},
		WordCount:      4,
		ReadingTime:    1,
		CreatedAt:      now,
	}

	inserted, err := repo.InsertContent(content)
	if err != nil {
		t.Fatalf("InsertContent failed: %v", err)
	}
	if !inserted {
		t.Error("Expected first insert to succeed")
	}

	duplicate := *content
	duplicate.ID = "content-2"
	inserted, err = repo.InsertContent(&duplicate)
	if err != nil {
		t.Fatalf("Duplicate InsertContent failed: %v", err)
	}
	if inserted {
		t.Error("Expected duplicate platform post to be ignored")
	}

	count, err := repo.GetContentCount()
	if err != nil {
		t.Fatalf("GetContentCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 stored item after duplicate insert, got %d", count)
	}
}

func TestInboundContentRepo_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInboundContentRepository(db)

	now := time.Now().UTC()
	publishedAt := now.Add(-time.Hour)
	original := &InboundContent{
		ID:             "content-1",
		Platform:       "medium",
		PlatformPostID: "abc123",
		Source:         "rss",
		Title:          "Production SQLite",
		Body:           "WAL mode changes everything.",
		BodyHTML:       "<p>WAL mode changes everything.</p>",
		Excerpt:        "WAL mode changes...",
		Author:         "Jordan Reyes",
		URL:            "https://medium.com/@jordan/production-sqlite",
		Tags:           []string{"sqlite", "databases"},
		Topics:         []string{"programming"},
		Mentions:       []string{"jordan"},
		Links:          []string{"https://sqlite.org/wal.html"},
		Media:          []string{"https://cdn.example.com/wal-diagram.png"},
		Engagement:     Engagement{Likes: 10, Shares: 2, Comments: 1},
		WordCount:      4,
		ReadingTime:    1,
		PublishedAt:    &publishedAt,
		CreatedAt:      now,
	}

	if _, err := repo.InsertContent(original); err != nil {
		t.Fatalf("InsertContent failed: %v", err)
	}

	stored, err := repo.GetContentByPlatformPost("medium", "abc123")
	if err != nil {
		t.Fatalf("GetContentByPlatformPost failed: %v", err)
	}
	if stored == nil {
		t.Fatal("Expected stored content, got nil")
	}
	if stored.Title != original.Title {
		t.Errorf("Expected title '%s', got '%s'", original.Title, stored.Title)
	}
	if len(stored.Tags) != 2 || stored.Tags[0] != "sqlite" {
		t.Errorf("Expected tags preserved, got %v", stored.Tags)
	}
	if len(stored.Mentions) != 1 || stored.Mentions[0] != "jordan" {
		t.Errorf("Expected mentions preserved, got %v", stored.Mentions)
	}
	if len(stored.Links) != 1 || stored.Links[0] != "https://sqlite.org/wal.html" {
		t.Errorf("Expected links preserved, got %v", stored.Links)
	}
	if stored.BodyHTML != original.BodyHTML {
		t.Errorf("Expected HTML body preserved, got '%s'", stored.BodyHTML)
	}
	if len(stored.Media) != 1 || stored.Media[0] != original.Media[0] {
		t.Errorf("Expected media preserved, got %v", stored.Media)
	}
	if stored.Engagement.Likes != 10 || stored.Engagement.Shares != 2 {
		t.Errorf("Expected engagement preserved, got %+v", stored.Engagement)
	}
	if stored.PublishedAt == nil {
		t.Error("Expected published timestamp preserved")
	}
}
