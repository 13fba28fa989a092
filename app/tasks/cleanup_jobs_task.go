package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/postwire/postwire/app/database"
)

// CleanupJobsTask deletes finished queue jobs past the retention window.
type CleanupJobsTask struct {
	jobs      database.QueueJobRepository
	retention time.Duration
}

func NewCleanupJobsTask(jobs database.QueueJobRepository, retention time.Duration) *CleanupJobsTask {
	return &CleanupJobsTask{jobs: jobs, retention: retention}
}

func (t *CleanupJobsTask) Name() string {
	return "cleanup_jobs"
}

func (t *CleanupJobsTask) Run(ctx context.Context) error {
	count, err := t.jobs.DeleteFinishedBefore(time.Now().UTC().Add(-t.retention))
	if err != nil {
		return err
	}
	if count > 0 {
		slog.Info("Deleted old jobs", "count", count)
	}
	return nil
}
