package api

import (
	"time"

	"github.com/postwire/postwire/app/database"
)

type jobResponse struct {
	ID             string     `json:"id"`
	DistributionID string     `json:"distribution_id"`
	PostID         string     `json:"post_id"`
	Platform       string     `json:"platform"`
	Status         string     `json:"status"`
	Score          int        `json:"adaptation_score"`
	Attempts       int        `json:"attempts"`
	MaxAttempts    int        `json:"max_attempts"`
	NextAttemptAt  time.Time  `json:"next_attempt_at"`
	LastError      string     `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func toJobResponse(job database.QueueJob) jobResponse {
	return jobResponse{
		ID:             job.ID,
		DistributionID: job.DistributionID,
		PostID:         job.PostID,
		Platform:       job.Platform,
		Status:         job.Status,
		Score:          job.Score,
		Attempts:       job.Attempts,
		MaxAttempts:    job.MaxAttempts,
		NextAttemptAt:  job.NextAttemptAt,
		LastError:      job.LastError,
		CreatedAt:      job.CreatedAt,
		CompletedAt:    job.CompletedAt,
	}
}

func toJobResponses(jobs []database.QueueJob) []jobResponse {
	responses := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, toJobResponse(job))
	}
	return responses
}

type distributionResponse struct {
	ID          string     `json:"id"`
	PostID      string     `json:"post_id"`
	Platforms   []string   `json:"platforms"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func toDistributionResponses(distributions []database.DistributionJob) []distributionResponse {
	responses := make([]distributionResponse, 0, len(distributions))
	for _, distribution := range distributions {
		responses = append(responses, distributionResponse{
			ID:          distribution.ID,
			PostID:      distribution.PostID,
			Platforms:   distribution.Platforms,
			Status:      distribution.Status,
			CreatedAt:   distribution.CreatedAt,
			CompletedAt: distribution.CompletedAt,
		})
	}
	return responses
}

type engagementResponse struct {
	Likes    int `json:"likes"`
	Shares   int `json:"shares"`
	Comments int `json:"comments"`
}

type contentResponse struct {
	ID             string             `json:"id"`
	Platform       string             `json:"platform"`
	PlatformPostID string             `json:"platform_post_id"`
	Source         string             `json:"source"`
	Title          string             `json:"title"`
	Excerpt        string             `json:"excerpt"`
	Author         string             `json:"author,omitempty"`
	URL            string             `json:"url,omitempty"`
	Tags           []string           `json:"tags"`
	Topics         []string           `json:"topics"`
	Mentions       []string           `json:"mentions,omitempty"`
	Links          []string           `json:"links,omitempty"`
	Media          []string           `json:"media,omitempty"`
	Engagement     engagementResponse `json:"engagement"`
	WordCount      int                `json:"word_count"`
	ReadingTime    int                `json:"reading_time"`
	PublishedAt    *time.Time         `json:"published_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

func toContentResponses(items []database.InboundContent) []contentResponse {
	responses := make([]contentResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, contentResponse{
			ID:             item.ID,
			Platform:       item.Platform,
			PlatformPostID: item.PlatformPostID,
			Source:         item.Source,
			Title:          item.Title,
			Excerpt:        item.Excerpt,
			Author:         item.Author,
			URL:            item.URL,
			Tags:           item.Tags,
			Topics:         item.Topics,
			Mentions:       item.Mentions,
			Links:          item.Links,
			Media:          item.Media,
			Engagement: engagementResponse{
				Likes:    item.Engagement.Likes,
				Shares:   item.Engagement.Shares,
				Comments: item.Engagement.Comments,
			},
			WordCount:      item.WordCount,
			ReadingTime:    item.ReadingTime,
			PublishedAt:    item.PublishedAt,
			CreatedAt:      item.CreatedAt,
		})
	}
	return responses
}

type feedResponse struct {
	ID              string     `json:"id"`
	Platform        string     `json:"platform"`
	FeedURL         string     `json:"feed_url"`
	SiteURL         string     `json:"site_url,omitempty"`
	Active          bool       `json:"active"`
	LastProcessedAt *time.Time `json:"last_processed_at,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toFeedResponses(subscriptions []database.FeedSubscription) []feedResponse {
	responses := make([]feedResponse, 0, len(subscriptions))
	for _, subscription := range subscriptions {
		responses = append(responses, feedResponse{
			ID:              subscription.ID,
			Platform:        subscription.Platform,
			FeedURL:         subscription.FeedURL,
			SiteURL:         subscription.SiteURL,
			Active:          subscription.Active,
			LastProcessedAt: subscription.LastProcessedAt,
			LastError:       subscription.LastError,
			CreatedAt:       subscription.CreatedAt,
		})
	}
	return responses
}
