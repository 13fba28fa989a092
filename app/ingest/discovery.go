package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// wellKnownFeedPaths are probed when a page declares no feed links.
var wellKnownFeedPaths = []string{
	"/feed",
	"/feed.xml",
	"/rss",
	"/rss.xml",
	"/atom.xml",
	"/index.xml",
}

var feedMIMETypes = []string{
	"application/rss+xml",
	"application/atom+xml",
	"application/xml",
	"text/xml",
}

// DiscoverFeeds finds the RSS/Atom feeds a site advertises. It reads the
// page's <link rel="alternate"> declarations first and falls back to probing
// well-known feed paths.
func DiscoverFeeds(ctx context.Context, client *http.Client, userAgent, siteURL string) ([]string, error) {
	base, err := url.Parse(siteURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("invalid site URL: %s", siteURL)
	}

	doc, err := fetchDocument(ctx, client, userAgent, siteURL)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var feeds []string
	doc.Find(`link[rel="alternate"]`).Each(func(_ int, sel *goquery.Selection) {
		linkType, _ := sel.Attr("type")
		if !isFeedType(linkType) {
			return
		}
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		absolute := resolved.String()
		if !seen[absolute] {
			seen[absolute] = true
			feeds = append(feeds, absolute)
		}
	})

	if len(feeds) > 0 {
		return feeds, nil
	}

	// No declared feeds; probe the usual locations
	for _, path := range wellKnownFeedPaths {
		candidate, err := base.Parse(path)
		if err != nil {
			continue
		}
		if probeFeed(ctx, client, userAgent, candidate.String()) {
			feeds = append(feeds, candidate.String())
		}
	}
	return feeds, nil
}

func fetchDocument(ctx context.Context, client *http.Client, userAgent, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned status %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

func probeFeed(ctx context.Context, client *http.Client, userAgent, feedURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	return isFeedType(resp.Header.Get("Content-Type"))
}

func isFeedType(contentType string) bool {
	for _, feedType := range feedMIMETypes {
		if strings.Contains(contentType, feedType) {
			return true
		}
	}
	return false
}
