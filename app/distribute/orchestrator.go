package distribute

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/postwire/postwire/app/adapt"
	"github.com/postwire/postwire/app/connector"
	"github.com/postwire/postwire/app/database"
)

// Status is the aggregated view of one fan-out.
type Status struct {
	DistributionID string           `json:"distribution_id"`
	PostID         string           `json:"post_id"`
	Status         string           `json:"status"`
	Platforms      []PlatformStatus `json:"platforms"`
	CreatedAt      time.Time        `json:"created_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}

type PlatformStatus struct {
	Platform       string   `json:"platform"`
	Status         string   `json:"status"`
	Attempts       int      `json:"attempts"`
	Score          int      `json:"adaptation_score"`
	Warnings       []string `json:"warnings,omitempty"`
	Error          string   `json:"error,omitempty"`
	PlatformPostID string   `json:"platform_post_id,omitempty"`
	PlatformURL    string   `json:"platform_url,omitempty"`
}

// Orchestrator fans a post out to multiple platforms. Each platform gets its
// own queue job, so one platform failing never blocks the others; the
// distribution status is an aggregate over those jobs.
type Orchestrator struct {
	distributions database.DistributionJobRepository
	jobs          database.QueueJobRepository
	published     database.PublishedPostRepository
	registry      *connector.Registry
	engine        *adapt.Engine
	posts         PostSource
	maxAttempts   int
}

func NewOrchestrator(distributions database.DistributionJobRepository, jobs database.QueueJobRepository,
	published database.PublishedPostRepository, registry *connector.Registry, engine *adapt.Engine,
	posts PostSource, maxAttempts int) *Orchestrator {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Orchestrator{
		distributions: distributions,
		jobs:          jobs,
		published:     published,
		registry:      registry,
		engine:        engine,
		posts:         posts,
		maxAttempts:   maxAttempts,
	}
}

// Distribute adapts the post for every requested platform and enqueues one
// publishing job per platform. A platform that cannot be resolved or adapted
// gets a failed result recorded while the rest proceed. A future scheduledFor
// holds the jobs back until that time.
func (o *Orchestrator) Distribute(ctx context.Context, postID string, platforms []string, scheduledFor *time.Time) (*Status, error) {
	post, err := o.posts.GetPost(postID)
	if err != nil {
		return nil, err
	}
	return o.DistributePost(ctx, post, platforms, scheduledFor)
}

// DistributePost fans out an already materialized post, used by the
// cross-posting rules for content that never lived in the posts directory.
func (o *Orchestrator) DistributePost(ctx context.Context, post *connector.CanonicalPost, platforms []string, scheduledFor *time.Time) (*Status, error) {
	if len(platforms) == 0 {
		return nil, fmt.Errorf("no platforms requested")
	}

	seen := map[string]bool{}
	requested := make([]string, 0, len(platforms))
	for _, platform := range platforms {
		if seen[platform] {
			continue
		}
		seen[platform] = true
		requested = append(requested, platform)
	}

	now := time.Now().UTC()
	firstAttemptAt := now
	if scheduledFor != nil && scheduledFor.After(now) {
		firstAttemptAt = scheduledFor.UTC()
	}
	distribution := &database.DistributionJob{
		ID:        uuid.NewString(),
		PostID:    post.ID,
		Platforms: requested,
		Status:    database.JobStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.distributions.CreateDistribution(distribution); err != nil {
		return nil, err
	}

	status := &Status{
		DistributionID: distribution.ID,
		PostID:         post.ID,
		Status:         database.JobStatusProcessing,
		CreatedAt:      now,
	}

	type adapted struct {
		platform string
		result   adapt.Result
		payload  string
	}
	items := make([]adapted, 0, len(requested))
	for _, platform := range requested {
		target, err := o.registry.Resolve(platform)
		if err != nil {
			o.recordPlatformFailure(status, post.ID, platform, err.Error(), now)
			continue
		}
		result := o.engine.Adapt(ctx, *post, platform, target.Capabilities())
		payload, err := json.Marshal(result.Content)
		if err != nil {
			o.recordPlatformFailure(status, post.ID, platform, fmt.Sprintf("failed to encode adapted content: %v", err), now)
			continue
		}
		items = append(items, adapted{platform: platform, result: result, payload: string(payload)})
	}

	// Best-adapted content publishes first
	sort.SliceStable(items, func(i, j int) bool { return items[i].result.Score > items[j].result.Score })

	enqueued := 0
	for _, item := range items {
		job := &database.QueueJob{
			ID:             uuid.NewString(),
			DistributionID: distribution.ID,
			PostID:         post.ID,
			Platform:       item.platform,
			Payload:        item.payload,
			Score:          item.result.Score,
			Status:         database.JobStatusPending,
			MaxAttempts:    o.maxAttempts,
			NextAttemptAt:  firstAttemptAt,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := o.jobs.Enqueue(job); err != nil {
			o.recordPlatformFailure(status, post.ID, item.platform, fmt.Sprintf("failed to enqueue: %v", err), now)
			continue
		}
		enqueued++
		status.Platforms = append(status.Platforms, PlatformStatus{
			Platform: item.platform,
			Status:   database.JobStatusPending,
			Score:    item.result.Score,
			Warnings: item.result.Warnings,
		})
	}

	if enqueued == 0 {
		status.Status = database.JobStatusFailed
		o.Refresh(distribution.ID)
	}

	slog.Info("Distribution created", "distribution_id", distribution.ID, "post_id", post.ID, "platforms", enqueued, "rejected", len(requested)-enqueued)
	return status, nil
}

// recordPlatformFailure settles one platform of a fan-out as failed without
// touching the others. The failure is persisted as a failed job row so status
// aggregation and retry see it like any worker-settled failure.
func (o *Orchestrator) recordPlatformFailure(status *Status, postID, platform, message string, now time.Time) {
	job := &database.QueueJob{
		ID:             uuid.NewString(),
		DistributionID: status.DistributionID,
		PostID:         postID,
		Platform:       platform,
		Payload:        "{}",
		Status:         database.JobStatusFailed,
		MaxAttempts:    o.maxAttempts,
		NextAttemptAt:  now,
		LastError:      message,
		CreatedAt:      now,
		UpdatedAt:      now,
		CompletedAt:    &now,
	}
	if err := o.jobs.Enqueue(job); err != nil {
		slog.Error("Failed to record platform failure", "distribution_id", status.DistributionID, "platform", platform, "error", err)
	}

	status.Platforms = append(status.Platforms, PlatformStatus{
		Platform: platform,
		Status:   database.JobStatusFailed,
		Error:    message,
	})
	slog.Warn("Platform rejected during fan-out", "distribution_id", status.DistributionID, "platform", platform, "error", message)
}

// ListDistributions returns the most recent fan-out records.
func (o *Orchestrator) ListDistributions(limit int) ([]database.DistributionJob, error) {
	return o.distributions.GetDistributions(limit)
}

// GetStatus aggregates the current state of a distribution from its jobs.
func (o *Orchestrator) GetStatus(distributionID string) (*Status, error) {
	distribution, err := o.distributions.GetDistribution(distributionID)
	if err != nil {
		return nil, err
	}
	if distribution == nil {
		return nil, &NotFoundError{Resource: "distribution", ID: distributionID}
	}

	jobs, err := o.jobs.GetJobsByDistribution(distributionID)
	if err != nil {
		return nil, err
	}

	status := &Status{
		DistributionID: distribution.ID,
		PostID:         distribution.PostID,
		Status:         aggregateStatus(jobs),
		CreatedAt:      distribution.CreatedAt,
		CompletedAt:    distribution.CompletedAt,
	}

	for _, job := range jobs {
		platformStatus := PlatformStatus{
			Platform: job.Platform,
			Status:   job.Status,
			Attempts: job.Attempts,
			Score:    job.Score,
			Error:    job.LastError,
		}
		if job.Status == database.JobStatusCompleted {
			published, err := o.published.GetPublished(distribution.PostID, job.Platform)
			if err == nil && published != nil {
				platformStatus.PlatformPostID = published.PlatformPostID
				platformStatus.PlatformURL = published.PlatformURL
			}
		}
		status.Platforms = append(status.Platforms, platformStatus)
	}
	return status, nil
}

// Refresh re-aggregates the distribution status from its jobs and persists
// the result. Called whenever a child job settles.
func (o *Orchestrator) Refresh(distributionID string) {
	distribution, err := o.distributions.GetDistribution(distributionID)
	if err != nil || distribution == nil {
		return
	}

	jobs, err := o.jobs.GetJobsByDistribution(distributionID)
	if err != nil {
		slog.Error("Failed to load distribution jobs", "distribution_id", distributionID, "error", err)
		return
	}

	aggregated := aggregateStatus(jobs)
	if aggregated == distribution.Status {
		return
	}

	now := time.Now().UTC()
	var completedAt *time.Time
	if aggregated == database.JobStatusCompleted || aggregated == database.JobStatusFailed || aggregated == database.JobStatusCancelled {
		completedAt = &now
	}
	if err := o.distributions.UpdateDistributionStatus(distributionID, aggregated, completedAt, now); err != nil {
		slog.Error("Failed to update distribution status", "distribution_id", distributionID, "error", err)
		return
	}
	slog.Debug("Distribution status updated", "distribution_id", distributionID, "status", aggregated)
}

// RetryFailedPlatforms re-enqueues fresh jobs for the platforms that failed,
// reusing the already adapted payload. Successful platforms are untouched.
func (o *Orchestrator) RetryFailedPlatforms(distributionID string) (*Status, error) {
	distribution, err := o.distributions.GetDistribution(distributionID)
	if err != nil {
		return nil, err
	}
	if distribution == nil {
		return nil, &NotFoundError{Resource: "distribution", ID: distributionID}
	}

	jobs, err := o.jobs.GetJobsByDistribution(distributionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	retried := 0
	latestFailed := map[string]database.QueueJob{}
	settled := map[string]bool{}
	for _, job := range jobs {
		switch job.Status {
		case database.JobStatusFailed:
			latestFailed[job.Platform] = job
		case database.JobStatusCompleted, database.JobStatusPending, database.JobStatusProcessing:
			// A later retry or the original job already covers this platform
			settled[job.Platform] = true
		}
	}

	for platform, job := range latestFailed {
		if settled[platform] {
			continue
		}
		retry := &database.QueueJob{
			ID:             uuid.NewString(),
			DistributionID: distributionID,
			PostID:         job.PostID,
			Platform:       platform,
			Payload:        job.Payload,
			Score:          job.Score,
			Status:         database.JobStatusPending,
			MaxAttempts:    o.maxAttempts,
			NextAttemptAt:  now,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := o.jobs.Enqueue(retry); err != nil {
			return nil, err
		}
		retried++
	}

	if retried > 0 {
		if err := o.distributions.UpdateDistributionStatus(distributionID, database.JobStatusProcessing, nil, now); err != nil {
			return nil, err
		}
		slog.Info("Retrying failed platforms", "distribution_id", distributionID, "platforms", retried)
	}
	return o.GetStatus(distributionID)
}

// Cancel stops the pending portion of a distribution. Jobs already being
// published run to their own conclusion.
func (o *Orchestrator) Cancel(distributionID string) (*Status, error) {
	distribution, err := o.distributions.GetDistribution(distributionID)
	if err != nil {
		return nil, err
	}
	if distribution == nil {
		return nil, &NotFoundError{Resource: "distribution", ID: distributionID}
	}

	jobs, err := o.jobs.GetJobsByDistribution(distributionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cancelled := 0
	for _, job := range jobs {
		if job.Status != database.JobStatusPending {
			continue
		}
		ok, err := o.jobs.Cancel(job.ID, now)
		if err != nil {
			return nil, err
		}
		if ok {
			cancelled++
		}
	}

	if cancelled > 0 {
		slog.Info("Distribution cancelled", "distribution_id", distributionID, "jobs", cancelled)
	}
	o.Refresh(distributionID)
	return o.GetStatus(distributionID)
}

// aggregateStatus folds child job states into one distribution state. Any
// live job keeps the distribution processing; once everything settles, a
// single failure marks the whole fan-out failed so callers notice the
// partial outcome.
func aggregateStatus(jobs []database.QueueJob) string {
	if len(jobs) == 0 {
		return database.JobStatusFailed
	}

	// Retries create multiple jobs per platform; judge each platform by
	// its best outcome
	byPlatform := map[string]string{}
	for _, job := range jobs {
		current := byPlatform[job.Platform]
		byPlatform[job.Platform] = betterOutcome(current, job.Status)
	}

	anyFailed := false
	anyCancelled := false
	for _, status := range byPlatform {
		switch status {
		case database.JobStatusPending, database.JobStatusProcessing:
			return database.JobStatusProcessing
		case database.JobStatusFailed:
			anyFailed = true
		case database.JobStatusCancelled:
			anyCancelled = true
		}
	}
	if anyFailed {
		return database.JobStatusFailed
	}
	if anyCancelled {
		return database.JobStatusCancelled
	}
	return database.JobStatusCompleted
}

var outcomeRank = map[string]int{
	database.JobStatusCancelled:  1,
	database.JobStatusFailed:     2,
	database.JobStatusPending:    3,
	database.JobStatusProcessing: 3,
	database.JobStatusCompleted:  4,
}

func betterOutcome(a, b string) string {
	if outcomeRank[b] > outcomeRank[a] {
		return b
	}
	return a
}
