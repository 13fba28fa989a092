package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/postwire/postwire/app/connector"
	"github.com/postwire/postwire/app/database"
)

// Queue runs the publishing worker pool. A dispatcher claims due jobs from
// the database on an interval and hands them to workers over a channel; each
// worker resolves the target connector, publishes and settles the job's
// terminal or retry state.
type Queue struct {
	jobs      database.QueueJobRepository
	published database.PublishedPostRepository
	registry  *connector.Registry

	workerCount    int
	claimInterval  time.Duration
	publishTimeout time.Duration

	// onSettled fires after a job reaches a terminal state so the
	// distribution layer can re-aggregate fan-out status
	onSettled func(distributionID string)

	jobCh  chan *database.QueueJob
	stopCh chan struct{}
	wg     sync.WaitGroup
}

type Options struct {
	WorkerCount    int
	ClaimInterval  time.Duration
	PublishTimeout time.Duration
	OnSettled      func(distributionID string)
}

func New(jobs database.QueueJobRepository, published database.PublishedPostRepository, registry *connector.Registry, opts Options) *Queue {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}
	if opts.ClaimInterval <= 0 {
		opts.ClaimInterval = 15 * time.Second
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 60 * time.Second
	}
	return &Queue{
		jobs:           jobs,
		published:      published,
		registry:       registry,
		workerCount:    opts.WorkerCount,
		claimInterval:  opts.ClaimInterval,
		publishTimeout: opts.PublishTimeout,
		onSettled:      opts.OnSettled,
		jobCh:          make(chan *database.QueueJob),
		stopCh:         make(chan struct{}),
	}
}

func (q *Queue) Start() {
	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker()
	}

	q.wg.Add(1)
	go q.dispatch()

	slog.Debug("Publishing queue started", "workers", q.workerCount, "claim_interval", q.claimInterval)
}

// Stop halts the dispatcher and waits for in-flight publishes to settle.
func (q *Queue) Stop() {
	close(q.stopCh)
	q.wg.Wait()
	slog.Debug("Publishing queue stopped")
}

func (q *Queue) dispatch() {
	defer q.wg.Done()
	defer close(q.jobCh)

	ticker := time.NewTicker(q.claimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ticker.C:
			q.claimDue()
		}
	}
}

func (q *Queue) claimDue() {
	for {
		job, err := q.jobs.ClaimNext(time.Now().UTC())
		if err != nil {
			slog.Error("Failed to claim job", "error", err)
			return
		}
		if job == nil {
			return
		}

		select {
		case q.jobCh <- job:
		case <-q.stopCh:
			// Shutting down with a claimed job in hand: put it back so
			// another run picks it up immediately
			if err := q.jobs.Reschedule(job.ID, time.Now().UTC(), "requeued on shutdown", time.Now().UTC()); err != nil {
				slog.Error("Failed to requeue job on shutdown", "job_id", job.ID, "error", err)
			}
			return
		}
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for job := range q.jobCh {
		q.process(job)
	}
}

func (q *Queue) process(job *database.QueueJob) {
	now := time.Now().UTC()

	var content connector.AdaptedContent
	if err := json.Unmarshal([]byte(job.Payload), &content); err != nil {
		q.fail(job, fmt.Sprintf("invalid payload: %v", err), now)
		return
	}

	c, err := q.registry.Resolve(job.Platform)
	if err != nil {
		q.fail(job, err.Error(), now)
		return
	}

	// An exhausted rate limit window means a guaranteed 429; defer to the
	// platform's own reset time instead of publishing into it
	if state := c.RateLimit(); state.Remaining == 0 && state.ResetAt.After(now) {
		if err := q.jobs.Reschedule(job.ID, state.ResetAt, "rate limit window exhausted", now); err != nil {
			slog.Error("Failed to defer rate-limited job", "job_id", job.ID, "error", err)
			return
		}
		slog.Warn("Rate limit exhausted, deferred", "platform", job.Platform, "job_id", job.ID, "retry_at", state.ResetAt)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.publishTimeout)
	result, err := c.Publish(ctx, content)
	cancel()

	if err == nil {
		q.complete(job, result, now)
		return
	}

	q.settle(job, err, now)
}

func (q *Queue) complete(job *database.QueueJob, result connector.PublishResult, now time.Time) {
	if err := q.jobs.MarkCompleted(job.ID, now); err != nil {
		slog.Error("Failed to mark job completed", "job_id", job.ID, "error", err)
		return
	}

	err := q.published.RecordPublished(&database.PublishedPost{
		ID:             uuid.NewString(),
		QueueJobID:     job.ID,
		PostID:         job.PostID,
		Platform:       job.Platform,
		PlatformPostID: result.PlatformPostID,
		PlatformURL:    result.PlatformURL,
		PublishedAt:    now,
	})
	if err != nil {
		slog.Error("Failed to record published post", "job_id", job.ID, "error", err)
	}

	slog.Info("Published", "platform", job.Platform, "post_id", job.PostID, "platform_post_id", result.PlatformPostID, "attempt", job.Attempts)
	q.notify(job.DistributionID)
}

// settle routes a publish error to its retry or terminal outcome based on
// the error kind.
func (q *Queue) settle(job *database.QueueJob, publishErr error, now time.Time) {
	kind := connector.KindOf(publishErr)

	switch kind {
	case connector.KindAuth, connector.KindValidation, connector.KindPermanent, connector.KindUnsupported:
		q.fail(job, publishErr.Error(), now)

	case connector.KindRateLimit:
		// Rate limiting is not the job's fault; wait out the window
		// without burning retry budget
		resetAt := connector.ResetTime(publishErr)
		if resetAt.IsZero() || resetAt.Before(now) {
			resetAt = now.Add(time.Minute)
		}
		if err := q.jobs.Reschedule(job.ID, resetAt, publishErr.Error(), now); err != nil {
			slog.Error("Failed to reschedule rate-limited job", "job_id", job.ID, "error", err)
			return
		}
		slog.Warn("Rate limited, deferred", "platform", job.Platform, "job_id", job.ID, "retry_at", resetAt)

	default:
		if job.Attempts >= job.MaxAttempts {
			q.fail(job, fmt.Sprintf("gave up after %d attempts: %v", job.Attempts, publishErr), now)
			return
		}
		retryAt := now.Add(Backoff(job.Attempts))
		if err := q.jobs.Reschedule(job.ID, retryAt, publishErr.Error(), now); err != nil {
			slog.Error("Failed to reschedule job", "job_id", job.ID, "error", err)
			return
		}
		slog.Warn("Publish failed, will retry", "platform", job.Platform, "job_id", job.ID, "attempt", job.Attempts, "retry_at", retryAt, "error", publishErr)
	}
}

func (q *Queue) fail(job *database.QueueJob, errorMsg string, now time.Time) {
	if err := q.jobs.MarkFailed(job.ID, errorMsg, now); err != nil {
		slog.Error("Failed to mark job failed", "job_id", job.ID, "error", err)
		return
	}
	slog.Error("Publish failed permanently", "platform", job.Platform, "job_id", job.ID, "error", errorMsg)
	q.notify(job.DistributionID)
}

func (q *Queue) notify(distributionID string) {
	if q.onSettled != nil && distributionID != "" {
		q.onSettled(distributionID)
	}
}
