package database

import (
	"time"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)

type QueueJob struct {
	ID             string
	DistributionID string
	PostID         string
	Platform       string
	Payload        string // adapted content serialized as JSON
	Score          int
	Status         string
	Attempts       int
	MaxAttempts    int
	NextAttemptAt  time.Time
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

type DistributionJob struct {
	ID          string
	PostID      string
	Platforms   []string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

type PublishedPost struct {
	ID             string
	QueueJobID     string
	PostID         string
	Platform       string
	PlatformPostID string
	PlatformURL    string
	PublishedAt    time.Time
}

type InboundContent struct {
	ID             string
	Platform       string
	PlatformPostID string
	Source         string // webhook or rss
	Title          string
	Body           string
	BodyHTML       string
	Excerpt        string
	Author         string
	URL            string
	Tags           []string
	Topics         []string
	Mentions       []string
	Links          []string
	Media          []string
	Engagement     Engagement
	WordCount      int
	ReadingTime    int
	PublishedAt    *time.Time
	CreatedAt      time.Time
}

// Engagement is a best-effort snapshot of platform reaction counts at
// ingestion time. Zero values mean the platform did not report them.
type Engagement struct {
	Likes    int `json:"likes"`
	Shares   int `json:"shares"`
	Comments int `json:"comments"`
}

type FeedSubscription struct {
	ID              string
	Platform        string
	FeedURL         string
	SiteURL         string
	Active          bool
	LastProcessedAt *time.Time
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type WebhookEvent struct {
	ID         string
	Platform   string
	EventType  string
	Verified   bool
	Status     string // processed, skipped or rejected
	Detail     string
	ReceivedAt time.Time
}
