package connector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

const linkedInAPIBase = "https://api.linkedin.com/v2"

type LinkedIn struct {
	client *apiClient

	mu          sync.Mutex
	accessToken string
	personURN   string
}

func NewLinkedIn(httpClient *http.Client, userAgent string) *LinkedIn {
	return &LinkedIn{
		client: newAPIClient("linkedin", httpClient, userAgent),
	}
}

func (l *LinkedIn) Platform() string    { return "linkedin" }
func (l *LinkedIn) DisplayName() string { return "LinkedIn" }
func (l *LinkedIn) Category() Category  { return CategoryProfessional }

func (l *LinkedIn) Capabilities() Capabilities {
	return Capabilities{
		MaxContentLength: 3000,
		SupportsImages:   true,
		SupportsVideo:    true,
		SupportsHashtags: true,
		SupportsMentions: true,
		MaxHashtags:      5,
		ImageFormats:     []string{"jpg", "jpeg", "png", "gif"},
		VideoFormats:     []string{"mp4", "mov", "avi"},
		MaxImagesPerPost: 1,
		MaxVideosPerPost: 1,
	}
}

func (l *LinkedIn) Authenticate(ctx context.Context, creds Credentials) error {
	if creds.AccessToken == "" {
		return NewError(KindAuth, "linkedin", "access token is required")
	}

	var userinfo struct {
		Sub  string `json:"sub"`
		Name string `json:"name"`
	}
	headers := map[string]string{"Authorization": "Bearer " + creds.AccessToken}
	if err := l.client.doJSON(ctx, http.MethodGet, linkedInAPIBase+"/userinfo", headers, nil, &userinfo); err != nil {
		return err
	}
	if userinfo.Sub == "" {
		return NewError(KindAuth, "linkedin", "userinfo response missing subject")
	}

	l.mu.Lock()
	l.accessToken = creds.AccessToken
	l.personURN = "urn:li:person:" + userinfo.Sub
	l.mu.Unlock()

	slog.Debug("LinkedIn authenticated", "name", userinfo.Name)
	return nil
}

func (l *LinkedIn) Publish(ctx context.Context, content AdaptedContent) (PublishResult, error) {
	l.mu.Lock()
	token, author := l.accessToken, l.personURN
	l.mu.Unlock()
	if token == "" {
		return PublishResult{}, NewError(KindAuth, "linkedin", "not authenticated")
	}

	commentary := content.Body
	if len(content.Hashtags) > 0 {
		commentary += "\n\n" + hashtagLine(content.Hashtags)
	}

	payload := map[string]any{
		"author":         author,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": map[string]any{
				"shareCommentary":    map[string]string{"text": commentary},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	var created struct {
		ID string `json:"id"`
	}
	headers := map[string]string{
		"Authorization":             "Bearer " + token,
		"X-Restli-Protocol-Version": "2.0.0",
	}
	if err := l.client.doJSON(ctx, http.MethodPost, linkedInAPIBase+"/ugcPosts", headers, payload, &created); err != nil {
		return PublishResult{}, err
	}

	return PublishResult{
		Success:        true,
		PlatformPostID: created.ID,
		PlatformURL:    fmt.Sprintf("https://www.linkedin.com/feed/update/%s", created.ID),
	}, nil
}

func (l *LinkedIn) Delete(ctx context.Context, externalID string) error {
	return Unsupported("linkedin", "delete")
}

func (l *LinkedIn) Health(ctx context.Context) Status {
	return probe(ctx, l.client, "https://www.linkedin.com")
}

func (l *LinkedIn) RateLimit() RateLimitState {
	return l.client.RateLimit()
}

func hashtagLine(hashtags []string) string {
	parts := make([]string, 0, len(hashtags))
	for _, tag := range hashtags {
		parts = append(parts, "#"+strings.TrimPrefix(tag, "#"))
	}
	return strings.Join(parts, " ")
}
