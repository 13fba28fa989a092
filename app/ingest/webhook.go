package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/postwire/postwire/app/database"
)

// ErrInvalidSignature rejects webhook deliveries that fail HMAC
// verification. Unsigned requests fail the same way: a missing signature is
// indistinguishable from a forged one.
var ErrInvalidSignature = errors.New("webhook signature verification failed")

// ErrUnknownPlatform rejects deliveries for platforms without a configured
// webhook secret.
var ErrUnknownPlatform = errors.New("no webhook secret configured for platform")

// WebhookResult summarizes one processed delivery.
type WebhookResult struct {
	EventType string `json:"event_type"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
}

// WebhookProcessor verifies, decodes and stores inbound webhook deliveries.
// Every delivery, accepted or not, leaves an audit record.
type WebhookProcessor struct {
	normalizer *Normalizer
	content    database.InboundContentRepository
	events     database.WebhookEventRepository
	secrets    map[string]string

	// onIngested runs for each newly stored item, feeding the
	// cross-posting rules
	onIngested func(content *database.InboundContent)
}

func NewWebhookProcessor(normalizer *Normalizer, content database.InboundContentRepository,
	events database.WebhookEventRepository, secrets map[string]string,
	onIngested func(content *database.InboundContent)) *WebhookProcessor {
	return &WebhookProcessor{
		normalizer: normalizer,
		content:    content,
		events:     events,
		secrets:    secrets,
		onIngested: onIngested,
	}
}

// Process handles one webhook delivery. The signature is verified against
// the raw body before any parsing happens.
func (p *WebhookProcessor) Process(platform string, body []byte, signature string) (*WebhookResult, error) {
	secret, ok := p.secrets[platform]
	if !ok {
		p.audit(platform, "", false, "rejected", "unknown platform")
		return nil, ErrUnknownPlatform
	}

	if !VerifySignature(secret, body, signature) {
		p.audit(platform, "", false, "rejected", "invalid signature")
		slog.Warn("Webhook rejected", "platform", platform, "reason", "invalid signature")
		return nil, ErrInvalidSignature
	}

	eventType, items, err := extractorFor(platform)(body)
	if err != nil {
		p.audit(platform, eventType, true, "rejected", err.Error())
		return nil, err
	}

	result := &WebhookResult{EventType: eventType}
	for _, item := range items {
		if item.Platform == "" {
			item.Platform = platform
		}

		content, err := p.normalizer.Normalize(item)
		if err != nil {
			slog.Warn("Skipping malformed webhook item", "platform", platform, "error", err)
			result.Skipped++
			continue
		}

		inserted, err := p.content.InsertContent(content)
		if err != nil {
			p.audit(platform, eventType, true, "rejected", err.Error())
			return nil, err
		}
		if !inserted {
			result.Skipped++
			continue
		}

		result.Processed++
		if p.onIngested != nil {
			p.onIngested(content)
		}
	}

	status := "processed"
	if result.Processed == 0 {
		status = "skipped"
	}
	p.audit(platform, eventType, true, status, "")

	slog.Info("Webhook processed", "platform", platform, "event_type", eventType, "processed", result.Processed, "skipped", result.Skipped)
	return result, nil
}

func (p *WebhookProcessor) audit(platform, eventType string, verified bool, status, detail string) {
	err := p.events.RecordEvent(&database.WebhookEvent{
		ID:         uuid.NewString(),
		Platform:   platform,
		EventType:  eventType,
		Verified:   verified,
		Status:     status,
		Detail:     detail,
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		slog.Error("Failed to record webhook event", "platform", platform, "error", err)
	}
}

// VerifySignature checks an HMAC-SHA256 signature over the raw body. Both
// common encodings are accepted: "sha256=<hex>" and plain base64. The
// comparison is constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	var provided []byte
	var err error
	if hexSig, found := strings.CutPrefix(signature, "sha256="); found {
		provided, err = hex.DecodeString(hexSig)
	} else {
		provided, err = base64.StdEncoding.DecodeString(signature)
	}
	if err != nil {
		return false
	}

	return hmac.Equal(expected, provided)
}
