package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	readability "github.com/go-shiori/go-readability"
)

// Feed descriptions shorter than this are treated as stubs worth replacing
// with the full article body.
const stubWordThreshold = 50

const maxArticleBody = 2 << 20

// ArticleExtractor fetches an item's linked page and pulls the readable
// article body out of it. Feeds that only syndicate a teaser get their full
// content this way.
type ArticleExtractor struct {
	client    *http.Client
	userAgent string
}

func NewArticleExtractor(client *http.Client, userAgent string) *ArticleExtractor {
	return &ArticleExtractor{client: client, userAgent: userAgent}
}

// Extract returns the readable HTML content of the page at pageURL.
func (e *ArticleExtractor) Extract(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("article page returned status %d", resp.StatusCode)
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxArticleBody), parsed)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}
	if article.Content == "" {
		return "", fmt.Errorf("no content extracted from article page")
	}

	slog.Debug("Article content extracted",
		"url", pageURL,
		"title", article.Title,
		"content_length", len(article.Content))

	return article.Content, nil
}
