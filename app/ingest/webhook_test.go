package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"path/filepath"
	"testing"

	"github.com/postwire/postwire/app/database"
)

const testSecret = "whsec_test"

func signHex(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func signBase64(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"test"}`)

	if !VerifySignature(testSecret, body, signHex(testSecret, body)) {
		t.Error("Expected hex signature to verify")
	}
	if !VerifySignature(testSecret, body, signBase64(testSecret, body)) {
		t.Error("Expected base64 signature to verify")
	}
	if VerifySignature(testSecret, body, "") {
		t.Error("Expected missing signature to fail")
	}
	if VerifySignature(testSecret, body, signHex("wrong-secret", body)) {
		t.Error("Expected signature from wrong secret to fail")
	}
	if VerifySignature(testSecret, []byte(`{"event":"tampered"}`), signHex(testSecret, body)) {
		t.Error("Expected signature over different body to fail")
	}
}

func setupWebhookProcessor(t *testing.T) (*WebhookProcessor, *database.InboundContentRepo, *database.WebhookEventRepo) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	content := database.NewInboundContentRepository(db)
	events := database.NewWebhookEventRepository(db)
	processor := NewWebhookProcessor(NewNormalizer(), content, events,
		map[string]string{"devto": testSecret}, nil)
	return processor, content, events
}

const devtoPayload = `{
	"event_type": "article_published",
	"article": {
		"id": 42,
		"title": "Understanding Context Cancellation",
		"body_markdown": "Context values flow down the call tree. Cancellation flows with them.",
		"url": "https://dev.to/example/understanding-context",
		"tag_list": ["go", "concurrency"],
		"published_at": "2026-08-20T10:00:00Z",
		"user": {"name": "Sam Okafor"}
	}
}`

func TestProcess_ValidDeliveryIngested(t *testing.T) {
	processor, content, _ := setupWebhookProcessor(t)
	body := []byte(devtoPayload)

	result, err := processor.Process("devto", body, signHex(testSecret, body))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.Processed != 1 || result.Skipped != 0 {
		t.Errorf("Expected 1 processed and 0 skipped, got %d/%d", result.Processed, result.Skipped)
	}

	stored, err := content.GetContentByPlatformPost("devto", "42")
	if err != nil {
		t.Fatalf("GetContentByPlatformPost failed: %v", err)
	}
	if stored == nil {
		t.Fatal("Expected content stored")
	}
	if stored.Title != "Understanding Context Cancellation" {
		t.Errorf("Expected article title preserved, got '%s'", stored.Title)
	}
	if stored.Source != "webhook" {
		t.Errorf("Expected source 'webhook', got '%s'", stored.Source)
	}
}

func TestProcess_RedeliveryIsIdempotent(t *testing.T) {
	processor, content, _ := setupWebhookProcessor(t)
	body := []byte(devtoPayload)
	signature := signHex(testSecret, body)

	if _, err := processor.Process("devto", body, signature); err != nil {
		t.Fatalf("First delivery failed: %v", err)
	}

	result, err := processor.Process("devto", body, signature)
	if err != nil {
		t.Fatalf("Redelivery failed: %v", err)
	}
	if result.Processed != 0 || result.Skipped != 1 {
		t.Errorf("Expected redelivery skipped, got processed=%d skipped=%d", result.Processed, result.Skipped)
	}

	count, err := content.GetContentCount()
	if err != nil {
		t.Fatalf("GetContentCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 stored item after redelivery, got %d", count)
	}
}

func TestProcess_InvalidSignatureRejectedAndAudited(t *testing.T) {
	processor, content, events := setupWebhookProcessor(t)
	body := []byte(devtoPayload)

	_, err := processor.Process("devto", body, "sha256=deadbeef")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("Expected ErrInvalidSignature, got %v", err)
	}

	count, _ := content.GetContentCount()
	if count != 0 {
		t.Errorf("Expected no content stored for rejected delivery, got %d", count)
	}

	recent, err := events.GetRecentEvents(10)
	if err != nil {
		t.Fatalf("GetRecentEvents failed: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("Expected 1 audit record, got %d", len(recent))
	}
	if recent[0].Status != "rejected" || recent[0].Verified {
		t.Errorf("Expected unverified rejected audit record, got status='%s' verified=%t", recent[0].Status, recent[0].Verified)
	}
}

func TestProcess_UnknownPlatformRejected(t *testing.T) {
	processor, _, _ := setupWebhookProcessor(t)
	body := []byte(`{}`)

	_, err := processor.Process("friendster", body, signHex(testSecret, body))
	if !errors.Is(err, ErrUnknownPlatform) {
		t.Errorf("Expected ErrUnknownPlatform, got %v", err)
	}
}

func TestProcess_IngestedCallbackFires(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	var ingested []string
	processor := NewWebhookProcessor(NewNormalizer(),
		database.NewInboundContentRepository(db),
		database.NewWebhookEventRepository(db),
		map[string]string{"devto": testSecret},
		func(content *database.InboundContent) {
			ingested = append(ingested, content.PlatformPostID)
		})

	body := []byte(devtoPayload)
	if _, err := processor.Process("devto", body, signHex(testSecret, body)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(ingested) != 1 || ingested[0] != "42" {
		t.Errorf("Expected callback for item '42', got %v", ingested)
	}
}
