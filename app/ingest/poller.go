package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/postwire/postwire/app/database"
)

// FeedPoller fetches subscribed RSS/Atom feeds and runs their items through
// normalization and dedup. Polling the same feed twice is harmless: already
// ingested items are skipped, not duplicated.
type FeedPoller struct {
	subscriptions database.FeedSubscriptionRepository
	content       database.InboundContentRepository
	normalizer    *Normalizer
	articles      *ArticleExtractor

	maxItems     int
	fetchTimeout time.Duration
	userAgent    string

	onIngested func(content *database.InboundContent)
}

type PollerOptions struct {
	MaxItems     int
	FetchTimeout time.Duration
	UserAgent    string
	Articles     *ArticleExtractor
	OnIngested   func(content *database.InboundContent)
}

func NewFeedPoller(subscriptions database.FeedSubscriptionRepository, content database.InboundContentRepository,
	normalizer *Normalizer, opts PollerOptions) *FeedPoller {
	if opts.MaxItems <= 0 {
		opts.MaxItems = 50
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	return &FeedPoller{
		subscriptions: subscriptions,
		content:       content,
		normalizer:    normalizer,
		articles:      opts.Articles,
		maxItems:      opts.MaxItems,
		fetchTimeout:  opts.FetchTimeout,
		userAgent:     opts.UserAgent,
		onIngested:    opts.OnIngested,
	}
}

// PollAll processes every active subscription. A failing feed is recorded on
// its subscription and does not stop the rest.
func (p *FeedPoller) PollAll(ctx context.Context) {
	subscriptions, err := p.subscriptions.GetActiveSubscriptions()
	if err != nil {
		slog.Error("Failed to load feed subscriptions", "error", err)
		return
	}

	for _, subscription := range subscriptions {
		if ctx.Err() != nil {
			return
		}
		processed, skipped, err := p.Poll(ctx, &subscription)
		if err != nil {
			slog.Warn("Feed poll failed", "feed_url", subscription.FeedURL, "error", err)
			if updateErr := p.subscriptions.UpdateSubscriptionError(subscription.ID, err.Error(), time.Now().UTC()); updateErr != nil {
				slog.Error("Failed to record feed error", "feed_url", subscription.FeedURL, "error", updateErr)
			}
			continue
		}
		slog.Info("Feed polled", "feed_url", subscription.FeedURL, "processed", processed, "skipped", skipped)
	}
}

// Poll fetches one feed and ingests its new items. Items older than the
// subscription's last processed time are skipped without touching storage.
func (p *FeedPoller) Poll(ctx context.Context, subscription *database.FeedSubscription) (int, int, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	parser := gofeed.NewParser()
	parser.UserAgent = p.userAgent

	feed, err := parser.ParseURLWithContext(subscription.FeedURL, fetchCtx)
	if err != nil {
		return 0, 0, err
	}

	items := feed.Items
	if len(items) > p.maxItems {
		items = items[:p.maxItems]
	}

	processed, skipped := 0, 0
	for _, item := range items {
		raw, ok := p.rawFromFeedItem(subscription, item)
		if !ok {
			skipped++
			continue
		}
		p.fillStubBody(ctx, &raw)

		content, err := p.normalizer.Normalize(raw)
		if err != nil {
			slog.Warn("Skipping malformed feed item", "feed_url", subscription.FeedURL, "error", err)
			skipped++
			continue
		}

		inserted, err := p.content.InsertContent(content)
		if err != nil {
			return processed, skipped, err
		}
		if !inserted {
			skipped++
			continue
		}

		processed++
		if p.onIngested != nil {
			p.onIngested(content)
		}
	}

	if err := p.subscriptions.UpdateLastProcessed(subscription.ID, time.Now().UTC()); err != nil {
		return processed, skipped, err
	}
	return processed, skipped, nil
}

// fillStubBody replaces teaser-length descriptions with the full article
// pulled from the item's page, when an extractor is configured.
func (p *FeedPoller) fillStubBody(ctx context.Context, raw *RawItem) {
	if p.articles == nil || raw.URL == "" {
		return
	}
	if len(strings.Fields(raw.BodyHTML)) >= stubWordThreshold {
		return
	}

	extractCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	content, err := p.articles.Extract(extractCtx, raw.URL)
	if err != nil {
		slog.Debug("Full article extraction failed, keeping feed body", "url", raw.URL, "error", err)
		return
	}
	raw.BodyHTML = content
}

func (p *FeedPoller) rawFromFeedItem(subscription *database.FeedSubscription, item *gofeed.Item) (RawItem, bool) {
	guid := item.GUID
	if guid == "" {
		guid = item.Link
	}
	if guid == "" {
		return RawItem{}, false
	}

	publishedAt := item.PublishedParsed
	if publishedAt == nil {
		publishedAt = item.UpdatedParsed
	}

	// Anything published before the previous poll was either ingested
	// already or deliberately out of window
	if publishedAt != nil && subscription.LastProcessedAt != nil && publishedAt.Before(*subscription.LastProcessedAt) {
		return RawItem{}, false
	}

	raw := RawItem{
		Platform:       subscription.Platform,
		PlatformPostID: guid,
		Source:         "rss",
		Title:          item.Title,
		BodyHTML:       item.Content,
		URL:            item.Link,
		Tags:           item.Categories,
	}
	if raw.BodyHTML == "" {
		raw.BodyHTML = item.Description
	}
	if item.Image != nil && item.Image.URL != "" {
		raw.Media = append(raw.Media, item.Image.URL)
	}
	for _, enclosure := range item.Enclosures {
		if enclosure != nil && strings.HasPrefix(enclosure.Type, "image/") {
			raw.Media = append(raw.Media, enclosure.URL)
		}
	}
	if item.Author != nil {
		raw.Author = item.Author.Name
	}
	if publishedAt != nil {
		utc := publishedAt.UTC()
		raw.PublishedAt = &utc
	}
	return raw, true
}
