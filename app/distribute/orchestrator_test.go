package distribute

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/postwire/postwire/app/adapt"
	"github.com/postwire/postwire/app/connector"
	"github.com/postwire/postwire/app/database"
)

type stubConnector struct {
	platform string
}

func (s *stubConnector) Platform() string             { return s.platform }
func (s *stubConnector) DisplayName() string          { return s.platform }
func (s *stubConnector) Category() connector.Category { return connector.CategorySocial }
func (s *stubConnector) Capabilities() connector.Capabilities {
	return connector.Capabilities{MaxContentLength: 280, SupportsHashtags: true, MaxHashtags: 3}
}
func (s *stubConnector) Authenticate(ctx context.Context, creds connector.Credentials) error {
	return nil
}
func (s *stubConnector) Publish(ctx context.Context, content connector.AdaptedContent) (connector.PublishResult, error) {
	return connector.PublishResult{Success: true, PlatformPostID: "stub-1"}, nil
}
func (s *stubConnector) Delete(ctx context.Context, externalID string) error { return nil }
func (s *stubConnector) Health(ctx context.Context) connector.Status {
	return connector.Status{Online: true}
}
func (s *stubConnector) RateLimit() connector.RateLimitState { return connector.RateLimitState{} }

type fixture struct {
	orchestrator *Orchestrator
	jobs         *database.QueueJobRepo
	published    *database.PublishedPostRepo
}

func setupOrchestrator(t *testing.T) *fixture {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	registry := connector.NewRegistry()
	registry.Register(&stubConnector{platform: "twitter"})
	registry.Register(&stubConnector{platform: "devto"})

	postsDir := t.TempDir()
	postYAML := []byte(`id: post-1
title: Testing in Production
body: Feature flags and gradual rollouts make testing in production safe when paired with good observability.
tags:
  - testing
  - observability
canonical_url: https://blog.example.com/testing-in-production
`)
	if err := os.WriteFile(filepath.Join(postsDir, "post-1.yml"), postYAML, 0644); err != nil {
		t.Fatalf("Failed to write post file: %v", err)
	}

	jobs := database.NewQueueJobRepository(db)
	published := database.NewPublishedPostRepository(db)
	orchestrator := NewOrchestrator(
		database.NewDistributionJobRepository(db),
		jobs,
		published,
		registry,
		adapt.NewEngine(nil),
		NewDirSource(postsDir),
		3,
	)
	return &fixture{orchestrator: orchestrator, jobs: jobs, published: published}
}

func TestDistribute_EnqueuesJobPerPlatform(t *testing.T) {
	f := setupOrchestrator(t)

	status, err := f.orchestrator.Distribute(context.Background(), "post-1", []string{"twitter", "devto"}, nil)
	if err != nil {
		t.Fatalf("Distribute failed: %v", err)
	}

	if len(status.Platforms) != 2 {
		t.Fatalf("Expected 2 platform jobs, got %d", len(status.Platforms))
	}
	if status.Status != database.JobStatusProcessing {
		t.Errorf("Expected initial status 'processing', got '%s'", status.Status)
	}

	jobs, err := f.jobs.GetJobsByDistribution(status.DistributionID)
	if err != nil {
		t.Fatalf("GetJobsByDistribution failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("Expected 2 queue jobs, got %d", len(jobs))
	}
}

func TestDistribute_ScheduledForHoldsJobs(t *testing.T) {
	f := setupOrchestrator(t)

	scheduledFor := time.Now().UTC().Add(2 * time.Hour)
	status, err := f.orchestrator.Distribute(context.Background(), "post-1", []string{"twitter"}, &scheduledFor)
	if err != nil {
		t.Fatalf("Distribute failed: %v", err)
	}

	claimed, err := f.jobs.ClaimNext(time.Now().UTC())
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed != nil {
		t.Errorf("Expected scheduled job to not be claimable yet, got job %s", claimed.ID)
	}

	jobs, _ := f.jobs.GetJobsByDistribution(status.DistributionID)
	if len(jobs) != 1 {
		t.Fatalf("Expected 1 job, got %d", len(jobs))
	}
	if !jobs[0].NextAttemptAt.After(time.Now().UTC().Add(time.Hour)) {
		t.Errorf("Expected next attempt near scheduled time, got %v", jobs[0].NextAttemptAt)
	}
}

func TestDistribute_UnknownPlatformDoesNotBlockOthers(t *testing.T) {
	f := setupOrchestrator(t)

	status, err := f.orchestrator.Distribute(context.Background(), "post-1", []string{"devto", "friendster"}, nil)
	if err != nil {
		t.Fatalf("Distribute failed: %v", err)
	}

	if len(status.Platforms) != 2 {
		t.Fatalf("Expected a result for every requested platform, got %d", len(status.Platforms))
	}
	outcomes := map[string]PlatformStatus{}
	for _, platform := range status.Platforms {
		outcomes[platform.Platform] = platform
	}
	if outcomes["devto"].Status != database.JobStatusPending {
		t.Errorf("Expected devto enqueued despite unknown sibling, got '%s'", outcomes["devto"].Status)
	}
	if outcomes["friendster"].Status != database.JobStatusFailed {
		t.Errorf("Expected friendster recorded as failed, got '%s'", outcomes["friendster"].Status)
	}
	if outcomes["friendster"].Error == "" {
		t.Error("Expected a resolution error on the failed platform")
	}

	pending, err := f.jobs.GetJobs(database.JobStatusPending, 10)
	if err != nil {
		t.Fatalf("GetJobs failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Platform != "devto" {
		t.Fatalf("Expected exactly the devto job pending, got %v", pending)
	}

	aggregated, err := f.orchestrator.GetStatus(status.DistributionID)
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if aggregated.Status != database.JobStatusProcessing {
		t.Errorf("Expected distribution still processing while devto is live, got '%s'", aggregated.Status)
	}
}

func TestDistribute_AllPlatformsUnknownFailsDistribution(t *testing.T) {
	f := setupOrchestrator(t)

	status, err := f.orchestrator.Distribute(context.Background(), "post-1", []string{"friendster", "myspace"}, nil)
	if err != nil {
		t.Fatalf("Distribute failed: %v", err)
	}
	if status.Status != database.JobStatusFailed {
		t.Errorf("Expected failed status when nothing could be enqueued, got '%s'", status.Status)
	}

	aggregated, err := f.orchestrator.GetStatus(status.DistributionID)
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if aggregated.Status != database.JobStatusFailed {
		t.Errorf("Expected persisted status 'failed', got '%s'", aggregated.Status)
	}
}

func TestDistribute_MissingPostRejected(t *testing.T) {
	f := setupOrchestrator(t)

	_, err := f.orchestrator.Distribute(context.Background(), "no-such-post", []string{"twitter"}, nil)
	if _, ok := err.(*NotFoundError); !ok {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
}

func TestDistribute_PartialFailureIsolated(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	status, err := f.orchestrator.Distribute(ctx, "post-1", []string{"twitter", "devto"}, nil)
	if err != nil {
		t.Fatalf("Distribute failed: %v", err)
	}

	// Settle the two jobs like workers would: one success, one exhausted
	now := time.Now().UTC()
	jobs, _ := f.jobs.GetJobsByDistribution(status.DistributionID)
	for _, job := range jobs {
		if _, err := f.jobs.ClaimNext(now); err != nil {
			t.Fatalf("ClaimNext failed: %v", err)
		}
		if job.Platform == "twitter" {
			if err := f.jobs.MarkFailed(job.ID, "auth token revoked", now); err != nil {
				t.Fatalf("MarkFailed failed: %v", err)
			}
		} else {
			if err := f.jobs.MarkCompleted(job.ID, now); err != nil {
				t.Fatalf("MarkCompleted failed: %v", err)
			}
		}
	}
	f.orchestrator.Refresh(status.DistributionID)

	aggregated, err := f.orchestrator.GetStatus(status.DistributionID)
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if aggregated.Status != database.JobStatusFailed {
		t.Errorf("Expected overall status 'failed' on partial failure, got '%s'", aggregated.Status)
	}

	outcomes := map[string]string{}
	for _, platform := range aggregated.Platforms {
		outcomes[platform.Platform] = platform.Status
	}
	if outcomes["twitter"] != database.JobStatusFailed {
		t.Errorf("Expected twitter failed, got '%s'", outcomes["twitter"])
	}
	if outcomes["devto"] != database.JobStatusCompleted {
		t.Errorf("Expected devto completed despite twitter failing, got '%s'", outcomes["devto"])
	}
}

func TestRetryFailedPlatforms_OnlyFailedReEnqueued(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	status, err := f.orchestrator.Distribute(ctx, "post-1", []string{"twitter", "devto"}, nil)
	if err != nil {
		t.Fatalf("Distribute failed: %v", err)
	}

	now := time.Now().UTC()
	jobs, _ := f.jobs.GetJobsByDistribution(status.DistributionID)
	for _, job := range jobs {
		if _, err := f.jobs.ClaimNext(now); err != nil {
			t.Fatalf("ClaimNext failed: %v", err)
		}
		if job.Platform == "twitter" {
			f.jobs.MarkFailed(job.ID, "upstream down", now)
		} else {
			f.jobs.MarkCompleted(job.ID, now)
		}
	}
	f.orchestrator.Refresh(status.DistributionID)

	retried, err := f.orchestrator.RetryFailedPlatforms(status.DistributionID)
	if err != nil {
		t.Fatalf("RetryFailedPlatforms failed: %v", err)
	}
	if retried.Status != database.JobStatusProcessing {
		t.Errorf("Expected status back to 'processing' after retry, got '%s'", retried.Status)
	}

	jobs, _ = f.jobs.GetJobsByDistribution(status.DistributionID)
	pendingPlatforms := map[string]int{}
	for _, job := range jobs {
		if job.Status == database.JobStatusPending {
			pendingPlatforms[job.Platform]++
		}
	}
	if pendingPlatforms["twitter"] != 1 {
		t.Errorf("Expected 1 new pending twitter job, got %d", pendingPlatforms["twitter"])
	}
	if pendingPlatforms["devto"] != 0 {
		t.Errorf("Expected no new job for completed platform, got %d", pendingPlatforms["devto"])
	}
}

func TestCancel_PendingJobsCancelled(t *testing.T) {
	f := setupOrchestrator(t)

	status, err := f.orchestrator.Distribute(context.Background(), "post-1", []string{"twitter", "devto"}, nil)
	if err != nil {
		t.Fatalf("Distribute failed: %v", err)
	}

	cancelled, err := f.orchestrator.Cancel(status.DistributionID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.Status != database.JobStatusCancelled {
		t.Errorf("Expected status 'cancelled', got '%s'", cancelled.Status)
	}
	for _, platform := range cancelled.Platforms {
		if platform.Status != database.JobStatusCancelled {
			t.Errorf("Expected platform '%s' cancelled, got '%s'", platform.Platform, platform.Status)
		}
	}
}

func TestAggregateStatus_RetryJobsJudgedByBestOutcome(t *testing.T) {
	jobs := []database.QueueJob{
		{Platform: "twitter", Status: database.JobStatusFailed},
		{Platform: "twitter", Status: database.JobStatusCompleted},
		{Platform: "devto", Status: database.JobStatusCompleted},
	}
	if got := aggregateStatus(jobs); got != database.JobStatusCompleted {
		t.Errorf("Expected completed when the retry succeeded, got '%s'", got)
	}
}
