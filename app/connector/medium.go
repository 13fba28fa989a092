package connector

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
)

const mediumAPIBase = "https://api.medium.com/v1"

type Medium struct {
	client *apiClient

	mu          sync.Mutex
	accessToken string
	userID      string
}

func NewMedium(httpClient *http.Client, userAgent string) *Medium {
	return &Medium{
		client: newAPIClient("medium", httpClient, userAgent),
	}
}

func (m *Medium) Platform() string    { return "medium" }
func (m *Medium) DisplayName() string { return "Medium" }
func (m *Medium) Category() Category  { return CategoryBlogging }

func (m *Medium) Capabilities() Capabilities {
	return Capabilities{
		MaxContentLength: 100000,
		SupportsImages:   true,
		SupportsHashtags: true,
		SupportsMarkdown: true,
		MaxHashtags:      5,
		ImageFormats:     []string{"jpg", "jpeg", "png", "gif"},
		MaxImagesPerPost: 20,
	}
}

func (m *Medium) Authenticate(ctx context.Context, creds Credentials) error {
	if creds.AccessToken == "" {
		return NewError(KindAuth, "medium", "integration token is required")
	}

	var me struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
	}
	headers := map[string]string{"Authorization": "Bearer " + creds.AccessToken}
	if err := m.client.doJSON(ctx, http.MethodGet, mediumAPIBase+"/me", headers, nil, &me); err != nil {
		return err
	}

	m.mu.Lock()
	m.accessToken = creds.AccessToken
	m.userID = me.Data.ID
	m.mu.Unlock()

	slog.Debug("Medium authenticated", "username", me.Data.Username)
	return nil
}

func (m *Medium) Publish(ctx context.Context, content AdaptedContent) (PublishResult, error) {
	m.mu.Lock()
	token, userID := m.accessToken, m.userID
	m.mu.Unlock()
	if token == "" {
		return PublishResult{}, NewError(KindAuth, "medium", "not authenticated")
	}

	payload := map[string]any{
		"title":         content.Title,
		"contentFormat": "markdown",
		"content":       content.Body,
		"tags":          content.Hashtags,
		"publishStatus": "public",
	}
	if canonical := content.Metadata["canonical_url"]; canonical != "" {
		payload["canonicalUrl"] = canonical
	}

	var created struct {
		Data struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"data"`
	}
	headers := map[string]string{"Authorization": "Bearer " + token}
	if err := m.client.doJSON(ctx, http.MethodPost, mediumAPIBase+"/users/"+userID+"/posts", headers, payload, &created); err != nil {
		return PublishResult{}, err
	}

	return PublishResult{
		Success:        true,
		PlatformPostID: created.Data.ID,
		PlatformURL:    created.Data.URL,
	}, nil
}

func (m *Medium) Delete(ctx context.Context, externalID string) error {
	return Unsupported("medium", "delete")
}

func (m *Medium) Health(ctx context.Context) Status {
	return probe(ctx, m.client, "https://medium.com")
}

func (m *Medium) RateLimit() RateLimitState {
	return m.client.RateLimit()
}
