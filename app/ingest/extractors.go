package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/postwire/postwire/app/database"
)

// extractor pulls content items out of a platform's webhook payload. Every
// platform wraps its events differently, so each gets its own decoder.
type extractor func(payload []byte) (eventType string, items []RawItem, err error)

func extractorFor(platform string) extractor {
	switch platform {
	case "twitter":
		return extractTwitter
	case "linkedin":
		return extractLinkedIn
	case "medium":
		return extractMedium
	case "devto":
		return extractDevTo
	case "mastodon":
		return extractMastodon
	case "github":
		return extractGitHub
	default:
		return extractGeneric
	}
}

func extractTwitter(payload []byte) (string, []RawItem, error) {
	var event struct {
		TweetCreateEvents []struct {
			IDStr         string `json:"id_str"`
			Text          string `json:"text"`
			CreatedAt     string `json:"created_at"`
			FavoriteCount int    `json:"favorite_count"`
			RetweetCount  int    `json:"retweet_count"`
			ReplyCount    int    `json:"reply_count"`
			User          struct {
				ScreenName string `json:"screen_name"`
			} `json:"user"`
		} `json:"tweet_create_events"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", nil, fmt.Errorf("failed to decode twitter payload: %w", err)
	}
	if len(event.TweetCreateEvents) == 0 {
		return "unknown", nil, nil
	}

	items := make([]RawItem, 0, len(event.TweetCreateEvents))
	for _, tweet := range event.TweetCreateEvents {
		item := RawItem{
			Platform:       "twitter",
			PlatformPostID: tweet.IDStr,
			Source:         "webhook",
			Body:           tweet.Text,
			Author:         tweet.User.ScreenName,
			URL:            fmt.Sprintf("https://twitter.com/%s/status/%s", tweet.User.ScreenName, tweet.IDStr),
			Engagement: database.Engagement{
				Likes:    tweet.FavoriteCount,
				Shares:   tweet.RetweetCount,
				Comments: tweet.ReplyCount,
			},
		}
		if publishedAt, err := time.Parse(time.RubyDate, tweet.CreatedAt); err == nil {
			utc := publishedAt.UTC()
			item.PublishedAt = &utc
		}
		items = append(items, item)
	}
	return "tweet_create", items, nil
}

func extractLinkedIn(payload []byte) (string, []RawItem, error) {
	var event struct {
		EventType string `json:"eventType"`
		Share     struct {
			ID      string `json:"id"`
			Owner   string `json:"owner"`
			Text    struct {
				Text string `json:"text"`
			} `json:"text"`
			Created struct {
				Time int64 `json:"time"`
			} `json:"created"`
		} `json:"share"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", nil, fmt.Errorf("failed to decode linkedin payload: %w", err)
	}
	if event.EventType != "SHARE" || event.Share.ID == "" {
		return event.EventType, nil, nil
	}

	item := RawItem{
		Platform:       "linkedin",
		PlatformPostID: event.Share.ID,
		Source:         "webhook",
		Body:           event.Share.Text.Text,
		Author:         event.Share.Owner,
		URL:            "https://www.linkedin.com/feed/update/" + event.Share.ID,
	}
	if event.Share.Created.Time > 0 {
		publishedAt := time.UnixMilli(event.Share.Created.Time).UTC()
		item.PublishedAt = &publishedAt
	}
	return "SHARE", []RawItem{item}, nil
}

func extractMedium(payload []byte) (string, []RawItem, error) {
	var event struct {
		Event string `json:"event"`
		Post  struct {
			ID          string   `json:"id"`
			Title       string   `json:"title"`
			ContentHTML string   `json:"content"`
			URL         string   `json:"url"`
			Author      string   `json:"author"`
			Tags        []string `json:"tags"`
			PublishedAt int64    `json:"publishedAt"`
		} `json:"post"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", nil, fmt.Errorf("failed to decode medium payload: %w", err)
	}
	if event.Event != "post.published" || event.Post.ID == "" {
		return event.Event, nil, nil
	}

	item := RawItem{
		Platform:       "medium",
		PlatformPostID: event.Post.ID,
		Source:         "webhook",
		Title:          event.Post.Title,
		BodyHTML:       event.Post.ContentHTML,
		Author:         event.Post.Author,
		URL:            event.Post.URL,
		Tags:           event.Post.Tags,
	}
	if event.Post.PublishedAt > 0 {
		publishedAt := time.UnixMilli(event.Post.PublishedAt).UTC()
		item.PublishedAt = &publishedAt
	}
	return event.Event, []RawItem{item}, nil
}

func extractDevTo(payload []byte) (string, []RawItem, error) {
	var event struct {
		EventType string `json:"event_type"`
		Article   struct {
			ID             int      `json:"id"`
			Title          string   `json:"title"`
			BodyMarkdown   string   `json:"body_markdown"`
			URL            string   `json:"url"`
			TagList        []string `json:"tag_list"`
			PublishedAt    string   `json:"published_at"`
			ReactionsCount int      `json:"positive_reactions_count"`
			CommentsCount  int      `json:"comments_count"`
			User           struct {
				Name string `json:"name"`
			} `json:"user"`
		} `json:"article"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", nil, fmt.Errorf("failed to decode devto payload: %w", err)
	}
	if event.Article.ID == 0 {
		return event.EventType, nil, nil
	}

	item := RawItem{
		Platform:       "devto",
		PlatformPostID: strconv.Itoa(event.Article.ID),
		Source:         "webhook",
		Title:          event.Article.Title,
		BodyMarkdown:   event.Article.BodyMarkdown,
		Author:         event.Article.User.Name,
		URL:            event.Article.URL,
		Tags:           event.Article.TagList,
		Engagement: database.Engagement{
			Likes:    event.Article.ReactionsCount,
			Comments: event.Article.CommentsCount,
		},
	}
	if publishedAt, err := time.Parse(time.RFC3339, event.Article.PublishedAt); err == nil {
		utc := publishedAt.UTC()
		item.PublishedAt = &utc
	}
	return event.EventType, []RawItem{item}, nil
}

func extractMastodon(payload []byte) (string, []RawItem, error) {
	var event struct {
		Event  string `json:"event"`
		Status struct {
			ID      string `json:"id"`
			Content string `json:"content"`
			URL     string `json:"url"`
			Account struct {
				Acct string `json:"acct"`
			} `json:"account"`
			CreatedAt       string `json:"created_at"`
			FavouritesCount int    `json:"favourites_count"`
			ReblogsCount    int    `json:"reblogs_count"`
			RepliesCount    int    `json:"replies_count"`
			Tags            []struct {
				Name string `json:"name"`
			} `json:"tags"`
			MediaAttachments []struct {
				URL string `json:"url"`
			} `json:"media_attachments"`
		} `json:"status"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", nil, fmt.Errorf("failed to decode mastodon payload: %w", err)
	}
	if event.Status.ID == "" {
		return event.Event, nil, nil
	}

	tags := make([]string, 0, len(event.Status.Tags))
	for _, tag := range event.Status.Tags {
		tags = append(tags, tag.Name)
	}
	media := make([]string, 0, len(event.Status.MediaAttachments))
	for _, attachment := range event.Status.MediaAttachments {
		if attachment.URL != "" {
			media = append(media, attachment.URL)
		}
	}

	item := RawItem{
		Platform:       "mastodon",
		PlatformPostID: event.Status.ID,
		Source:         "webhook",
		BodyHTML:       event.Status.Content,
		Author:         event.Status.Account.Acct,
		URL:            event.Status.URL,
		Tags:           tags,
		Media:          media,
		Engagement: database.Engagement{
			Likes:    event.Status.FavouritesCount,
			Shares:   event.Status.ReblogsCount,
			Comments: event.Status.RepliesCount,
		},
	}
	if publishedAt, err := time.Parse(time.RFC3339, event.Status.CreatedAt); err == nil {
		utc := publishedAt.UTC()
		item.PublishedAt = &utc
	}
	return event.Event, []RawItem{item}, nil
}

// extractGitHub turns push events into one item per commit. Useful for
// repositories that publish posts as committed markdown.
func extractGitHub(payload []byte) (string, []RawItem, error) {
	var event struct {
		Ref        string `json:"ref"`
		Repository struct {
			FullName string `json:"full_name"`
		} `json:"repository"`
		Commits []struct {
			ID        string `json:"id"`
			Message   string `json:"message"`
			URL       string `json:"url"`
			Timestamp string `json:"timestamp"`
			Author    struct {
				Name string `json:"name"`
			} `json:"author"`
		} `json:"commits"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", nil, fmt.Errorf("failed to decode github payload: %w", err)
	}
	if len(event.Commits) == 0 {
		return "push", nil, nil
	}

	items := make([]RawItem, 0, len(event.Commits))
	for _, commit := range event.Commits {
		item := RawItem{
			Platform:       "github",
			PlatformPostID: commit.ID,
			Source:         "webhook",
			Body:           commit.Message,
			Author:         commit.Author.Name,
			URL:            commit.URL,
			Tags:           []string{event.Repository.FullName},
		}
		if publishedAt, err := time.Parse(time.RFC3339, commit.Timestamp); err == nil {
			utc := publishedAt.UTC()
			item.PublishedAt = &utc
		}
		items = append(items, item)
	}
	return "push", items, nil
}

// extractGeneric handles platforms without a dedicated decoder using a
// minimal envelope: {"event_type": "...", "post": {...}}.
func extractGeneric(payload []byte) (string, []RawItem, error) {
	var event struct {
		Platform  string `json:"platform"`
		EventType string `json:"event_type"`
		Post      struct {
			ID          string   `json:"id"`
			Title       string   `json:"title"`
			Body        string   `json:"body"`
			URL         string   `json:"url"`
			Author      string   `json:"author"`
			Tags        []string `json:"tags"`
			PublishedAt string   `json:"published_at"`
		} `json:"post"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}
	if event.Post.ID == "" {
		return event.EventType, nil, nil
	}

	item := RawItem{
		Platform:       event.Platform,
		PlatformPostID: event.Post.ID,
		Source:         "webhook",
		Title:          event.Post.Title,
		Body:           event.Post.Body,
		Author:         event.Post.Author,
		URL:            event.Post.URL,
		Tags:           event.Post.Tags,
	}
	if publishedAt, err := time.Parse(time.RFC3339, event.Post.PublishedAt); err == nil {
		utc := publishedAt.UTC()
		item.PublishedAt = &utc
	}
	return event.EventType, []RawItem{item}, nil
}
