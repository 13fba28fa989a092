package database

import (
	"time"
)

type QueueJobRepository interface {
	Enqueue(job *QueueJob) error
	ClaimNext(now time.Time) (*QueueJob, error)
	MarkCompleted(jobID string, now time.Time) error
	MarkFailed(jobID string, errorMsg string, now time.Time) error
	Reschedule(jobID string, nextAttemptAt time.Time, errorMsg string, now time.Time) error
	Cancel(jobID string, now time.Time) (bool, error)

	GetJob(jobID string) (*QueueJob, error)
	GetJobsByDistribution(distributionID string) ([]QueueJob, error)
	GetJobs(status string, limit int) ([]QueueJob, error)

	RequeueStale(staleAfter time.Duration, now time.Time) (int, error)
	DeleteFinishedBefore(cutoff time.Time) (int, error)
	GetStats() (map[string]int, error)
}

type DistributionJobRepository interface {
	CreateDistribution(distribution *DistributionJob) error
	GetDistribution(distributionID string) (*DistributionJob, error)
	UpdateDistributionStatus(distributionID string, status string, completedAt *time.Time, now time.Time) error
	GetDistributions(limit int) ([]DistributionJob, error)
}

type PublishedPostRepository interface {
	RecordPublished(published *PublishedPost) error
	GetPublished(postID, platform string) (*PublishedPost, error)
	GetPublishedByPost(postID string) ([]PublishedPost, error)
}

type InboundContentRepository interface {
	InsertContent(content *InboundContent) (bool, error)
	GetContent(contentID string) (*InboundContent, error)
	GetContentByPlatformPost(platform, platformPostID string) (*InboundContent, error)
	GetRecentContent(limit int) ([]InboundContent, error)
	GetContentCount() (int, error)
}

type FeedSubscriptionRepository interface {
	UpsertSubscription(subscription *FeedSubscription) error
	GetActiveSubscriptions() ([]FeedSubscription, error)
	GetSubscriptionByURL(feedURL string) (*FeedSubscription, error)
	UpdateLastProcessed(subscriptionID string, processedAt time.Time) error
	UpdateSubscriptionError(subscriptionID string, errorMsg string, now time.Time) error
	DeactivateSubscription(subscriptionID string, now time.Time) (bool, error)
}

type WebhookEventRepository interface {
	RecordEvent(event *WebhookEvent) error
	GetRecentEvents(limit int) ([]WebhookEvent, error)
	GetEventStats() (map[string]int, error)
}
