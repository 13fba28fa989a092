package connector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
)

const devtoAPIBase = "https://dev.to/api"

type DevTo struct {
	client *apiClient

	mu     sync.Mutex
	apiKey string
}

func NewDevTo(httpClient *http.Client, userAgent string) *DevTo {
	return &DevTo{
		client: newAPIClient("devto", httpClient, userAgent),
	}
}

func (d *DevTo) Platform() string    { return "devto" }
func (d *DevTo) DisplayName() string { return "Dev.to" }
func (d *DevTo) Category() Category  { return CategoryBlogging }

func (d *DevTo) Capabilities() Capabilities {
	return Capabilities{
		MaxContentLength: 65000,
		SupportsImages:   true,
		SupportsHashtags: true,
		SupportsMarkdown: true,
		MaxHashtags:      4,
		ImageFormats:     []string{"jpg", "jpeg", "png", "gif"},
		MaxImagesPerPost: 10,
	}
}

func (d *DevTo) Authenticate(ctx context.Context, creds Credentials) error {
	if creds.APIKey == "" {
		return NewError(KindAuth, "devto", "API key is required")
	}

	var me struct {
		Username string `json:"username"`
	}
	headers := map[string]string{"api-key": creds.APIKey}
	if err := d.client.doJSON(ctx, http.MethodGet, devtoAPIBase+"/users/me", headers, nil, &me); err != nil {
		return err
	}

	d.mu.Lock()
	d.apiKey = creds.APIKey
	d.mu.Unlock()

	slog.Debug("Dev.to authenticated", "username", me.Username)
	return nil
}

func (d *DevTo) Publish(ctx context.Context, content AdaptedContent) (PublishResult, error) {
	d.mu.Lock()
	apiKey := d.apiKey
	d.mu.Unlock()
	if apiKey == "" {
		return PublishResult{}, NewError(KindAuth, "devto", "not authenticated")
	}

	article := map[string]any{
		"title":         content.Title,
		"published":     true,
		"body_markdown": content.Body,
		"tags":          content.Hashtags,
		"description":   content.Excerpt,
	}
	if canonical := content.Metadata["canonical_url"]; canonical != "" {
		article["canonical_url"] = canonical
	}

	var created struct {
		ID  int    `json:"id"`
		URL string `json:"url"`
	}
	headers := map[string]string{"api-key": apiKey}
	payload := map[string]any{"article": article}
	if err := d.client.doJSON(ctx, http.MethodPost, devtoAPIBase+"/articles", headers, payload, &created); err != nil {
		return PublishResult{}, err
	}

	return PublishResult{
		Success:        true,
		PlatformPostID: fmt.Sprintf("%d", created.ID),
		PlatformURL:    created.URL,
	}, nil
}

func (d *DevTo) Delete(ctx context.Context, externalID string) error {
	return Unsupported("devto", "delete")
}

func (d *DevTo) Health(ctx context.Context) Status {
	return probe(ctx, d.client, devtoAPIBase+"/articles?per_page=1")
}

func (d *DevTo) RateLimit() RateLimitState {
	return d.client.RateLimit()
}
