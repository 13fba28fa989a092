package ingest

import (
	"testing"
)

func TestExtractGitHub_PushWithCommits(t *testing.T) {
	payload := []byte(`{
		"ref": "refs/heads/main",
		"repository": {"full_name": "example/blog"},
		"commits": [
			{
				"id": "abc123",
				"message": "Publish: why interfaces beat inheritance",
				"url": "https://github.com/example/blog/commit/abc123",
				"timestamp": "2026-08-20T10:00:00Z",
				"author": {"name": "Sam Okafor"}
			},
			{
				"id": "def456",
				"message": "Fix typo in last post",
				"url": "https://github.com/example/blog/commit/def456",
				"timestamp": "2026-08-20T11:00:00Z",
				"author": {"name": "Sam Okafor"}
			}
		]
	}`)

	eventType, items, err := extractGitHub(payload)
	if err != nil {
		t.Fatalf("extractGitHub failed: %v", err)
	}
	if eventType != "push" {
		t.Errorf("Expected event type 'push', got '%s'", eventType)
	}
	if len(items) != 2 {
		t.Fatalf("Expected one item per commit, got %d", len(items))
	}
	if items[0].PlatformPostID != "abc123" || items[0].Platform != "github" {
		t.Errorf("Unexpected first item identity: %+v", items[0])
	}
	if items[0].Author != "Sam Okafor" {
		t.Errorf("Expected commit author, got '%s'", items[0].Author)
	}
	if items[0].PublishedAt == nil {
		t.Error("Expected commit timestamp parsed")
	}
	if len(items[0].Tags) != 1 || items[0].Tags[0] != "example/blog" {
		t.Errorf("Expected repository name as tag, got %v", items[0].Tags)
	}
}

func TestExtractGitHub_EmptyPushIgnored(t *testing.T) {
	eventType, items, err := extractGitHub([]byte(`{"ref": "refs/heads/main", "commits": []}`))
	if err != nil {
		t.Fatalf("extractGitHub failed: %v", err)
	}
	if eventType != "push" || len(items) != 0 {
		t.Errorf("Expected empty push to produce no items, got %d", len(items))
	}
}

func TestExtractGeneric_Envelope(t *testing.T) {
	payload := []byte(`{
		"platform": "ghost",
		"event_type": "post.published",
		"post": {
			"id": "p-9",
			"title": "Release notes",
			"body": "Everything that changed this month.",
			"url": "https://blog.example.com/release-notes",
			"author": "Riley Chen",
			"tags": ["release"],
			"published_at": "2026-08-01T09:00:00Z"
		}
	}`)

	eventType, items, err := extractGeneric(payload)
	if err != nil {
		t.Fatalf("extractGeneric failed: %v", err)
	}
	if eventType != "post.published" {
		t.Errorf("Expected envelope event type, got '%s'", eventType)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if items[0].Platform != "ghost" || items[0].PlatformPostID != "p-9" {
		t.Errorf("Unexpected item identity: %+v", items[0])
	}
}

func TestExtractTwitter_TweetCreateEvents(t *testing.T) {
	payload := []byte(`{
		"tweet_create_events": [
			{
				"id_str": "17001",
				"text": "Shipping the new pipeline today #golang",
				"created_at": "Mon Jan 02 15:04:05 -0700 2006",
				"favorite_count": 12,
				"retweet_count": 3,
				"user": {"screen_name": "samokafor"}
			}
		]
	}`)

	eventType, items, err := extractTwitter(payload)
	if err != nil {
		t.Fatalf("extractTwitter failed: %v", err)
	}
	if eventType != "tweet_create" {
		t.Errorf("Expected event type 'tweet_create', got '%s'", eventType)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if items[0].URL != "https://twitter.com/samokafor/status/17001" {
		t.Errorf("Unexpected tweet URL: %s", items[0].URL)
	}
	if items[0].PublishedAt == nil {
		t.Error("Expected created_at parsed")
	}
	if items[0].Engagement.Likes != 12 || items[0].Engagement.Shares != 3 {
		t.Errorf("Expected engagement counts captured, got %+v", items[0].Engagement)
	}
}
