package connector

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Mastodon talks to a configurable instance. The server base URL comes from
// the platform configuration since there is no single Mastodon API host.
type Mastodon struct {
	client *apiClient
	server string

	mu          sync.Mutex
	accessToken string
}

func NewMastodon(httpClient *http.Client, userAgent, server string) *Mastodon {
	if server == "" {
		server = "https://mastodon.social"
	}
	return &Mastodon{
		client: newAPIClient("mastodon", httpClient, userAgent),
		server: strings.TrimSuffix(server, "/"),
	}
}

func (m *Mastodon) Platform() string    { return "mastodon" }
func (m *Mastodon) DisplayName() string { return "Mastodon" }
func (m *Mastodon) Category() Category  { return CategorySocial }

func (m *Mastodon) Capabilities() Capabilities {
	return Capabilities{
		MaxContentLength:   500,
		SupportsImages:     true,
		SupportsVideo:      true,
		SupportsHashtags:   true,
		SupportsMentions:   true,
		SupportsScheduling: true,
		SupportsDelete:     true,
		MaxHashtags:        5,
		ImageFormats:       []string{"jpg", "jpeg", "png", "gif", "webp"},
		VideoFormats:       []string{"mp4", "webm"},
		MaxImagesPerPost:   4,
		MaxVideosPerPost:   1,
	}
}

func (m *Mastodon) Authenticate(ctx context.Context, creds Credentials) error {
	if creds.AccessToken == "" {
		return NewError(KindAuth, "mastodon", "access token is required")
	}

	var account struct {
		Acct string `json:"acct"`
	}
	headers := map[string]string{"Authorization": "Bearer " + creds.AccessToken}
	if err := m.client.doJSON(ctx, http.MethodGet, m.server+"/api/v1/accounts/verify_credentials", headers, nil, &account); err != nil {
		return err
	}

	m.mu.Lock()
	m.accessToken = creds.AccessToken
	m.mu.Unlock()

	slog.Debug("Mastodon authenticated", "account", account.Acct, "server", m.server)
	return nil
}

func (m *Mastodon) Publish(ctx context.Context, content AdaptedContent) (PublishResult, error) {
	m.mu.Lock()
	token := m.accessToken
	m.mu.Unlock()
	if token == "" {
		return PublishResult{}, NewError(KindAuth, "mastodon", "not authenticated")
	}

	status := content.Body
	if len(content.Hashtags) > 0 {
		status += "\n\n" + hashtagLine(content.Hashtags)
	}

	payload := map[string]any{
		"status":     status,
		"visibility": "public",
	}
	if content.ScheduledFor != nil {
		payload["scheduled_at"] = content.ScheduledFor.UTC().Format(time.RFC3339)
	}

	headers := map[string]string{"Authorization": "Bearer " + token}
	if key := content.Metadata["idempotency_key"]; key != "" {
		headers["Idempotency-Key"] = key
	}

	var created struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := m.client.doJSON(ctx, http.MethodPost, m.server+"/api/v1/statuses", headers, payload, &created); err != nil {
		return PublishResult{}, err
	}

	return PublishResult{
		Success:        true,
		PlatformPostID: created.ID,
		PlatformURL:    created.URL,
	}, nil
}

func (m *Mastodon) Delete(ctx context.Context, externalID string) error {
	m.mu.Lock()
	token := m.accessToken
	m.mu.Unlock()
	if token == "" {
		return NewError(KindAuth, "mastodon", "not authenticated")
	}
	headers := map[string]string{"Authorization": "Bearer " + token}
	return m.client.doJSON(ctx, http.MethodDelete, m.server+"/api/v1/statuses/"+externalID, headers, nil, nil)
}

func (m *Mastodon) Health(ctx context.Context) Status {
	return probe(ctx, m.client, m.server+"/api/v1/instance")
}

func (m *Mastodon) RateLimit() RateLimitState {
	return m.client.RateLimit()
}
