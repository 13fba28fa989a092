package connector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const twitterAPIBase = "https://api.twitter.com/2"

// Twitter publishes via the v2 API. A publish is optionally two-step: the
// status itself, then a reply carrying the canonical link. The second step
// failing is reported as a partial success unless rollback is configured.
type Twitter struct {
	client            *apiClient
	rollbackOnPartial bool

	mu          sync.Mutex
	accessToken string
}

func NewTwitter(httpClient *http.Client, userAgent string, rollbackOnPartial bool) *Twitter {
	return &Twitter{
		client:            newAPIClient("twitter", httpClient, userAgent),
		rollbackOnPartial: rollbackOnPartial,
	}
}

func (t *Twitter) Platform() string    { return "twitter" }
func (t *Twitter) DisplayName() string { return "Twitter / X" }
func (t *Twitter) Category() Category  { return CategorySocial }

func (t *Twitter) Capabilities() Capabilities {
	return Capabilities{
		MaxContentLength: 280,
		SupportsImages:   true,
		SupportsVideo:    true,
		SupportsHashtags: true,
		SupportsMentions: true,
		SupportsDelete:   true,
		MaxHashtags:      3,
		ImageFormats:     []string{"jpg", "jpeg", "png", "gif", "webp"},
		VideoFormats:     []string{"mp4", "mov"},
		MaxImagesPerPost: 4,
		MaxVideosPerPost: 1,
	}
}

func (t *Twitter) Authenticate(ctx context.Context, creds Credentials) error {
	if creds.AccessToken == "" {
		return NewError(KindAuth, "twitter", "access token is required")
	}

	var me struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
	}
	headers := map[string]string{"Authorization": "Bearer " + creds.AccessToken}
	if err := t.client.doJSON(ctx, http.MethodGet, twitterAPIBase+"/users/me", headers, nil, &me); err != nil {
		return err
	}

	t.mu.Lock()
	t.accessToken = creds.AccessToken
	t.mu.Unlock()

	slog.Debug("Twitter authenticated", "username", me.Data.Username)
	return nil
}

func (t *Twitter) Publish(ctx context.Context, content AdaptedContent) (PublishResult, error) {
	token, err := t.token()
	if err != nil {
		return PublishResult{}, err
	}
	headers := map[string]string{"Authorization": "Bearer " + token}

	var created struct {
		Data struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"data"`
	}
	text := content.Body
	if len(content.Hashtags) > 0 {
		text += "\n\n" + hashtagLine(content.Hashtags)
	}
	payload := map[string]any{"text": text}
	if err := t.client.doJSON(ctx, http.MethodPost, twitterAPIBase+"/tweets", headers, payload, &created); err != nil {
		return PublishResult{}, err
	}

	result := PublishResult{
		Success:        true,
		PlatformPostID: created.Data.ID,
		PlatformURL:    fmt.Sprintf("https://twitter.com/i/status/%s", created.Data.ID),
		Metadata:       map[string]string{},
	}

	replyLink := content.Metadata["reply_link"]
	if replyLink == "" {
		return result, nil
	}

	var reply struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	replyPayload := map[string]any{
		"text":  replyLink,
		"reply": map[string]string{"in_reply_to_tweet_id": created.Data.ID},
	}
	if err := t.client.doJSON(ctx, http.MethodPost, twitterAPIBase+"/tweets", headers, replyPayload, &reply); err != nil {
		if t.rollbackOnPartial {
			if delErr := t.Delete(ctx, created.Data.ID); delErr != nil {
				slog.Warn("Failed to roll back partially published tweet", "tweet_id", created.Data.ID, "error", delErr)
			}
			return PublishResult{}, err
		}
		// Report the partial outcome rather than failing the whole publish.
		result.Metadata["partial"] = "true"
		result.Metadata["reply_error"] = err.Error()
		slog.Warn("Twitter link reply failed, keeping main tweet", "tweet_id", created.Data.ID, "error", err)
		return result, nil
	}

	result.Metadata["reply_id"] = reply.Data.ID
	return result, nil
}

func (t *Twitter) Delete(ctx context.Context, externalID string) error {
	token, err := t.token()
	if err != nil {
		return err
	}
	headers := map[string]string{"Authorization": "Bearer " + token}
	return t.client.doJSON(ctx, http.MethodDelete, twitterAPIBase+"/tweets/"+externalID, headers, nil, nil)
}

func (t *Twitter) Health(ctx context.Context) Status {
	return probe(ctx, t.client, twitterAPIBase+"/openapi.json")
}

func (t *Twitter) RateLimit() RateLimitState {
	return t.client.RateLimit()
}

func (t *Twitter) token() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.accessToken == "" {
		return "", NewError(KindAuth, "twitter", "not authenticated")
	}
	return t.accessToken, nil
}

// probe performs an unauthenticated reachability check against a platform
// endpoint and measures latency.
func probe(ctx context.Context, client *apiClient, url string) Status {
	started := time.Now()
	status := Status{CheckedAt: started.UTC()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	req.Header.Set("User-Agent", client.userAgent)

	resp, err := client.httpClient.Do(req)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer resp.Body.Close()

	status.Latency = time.Since(started)
	if resp.StatusCode >= 500 {
		status.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return status
	}

	status.Online = true
	return status
}
