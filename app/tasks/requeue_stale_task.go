package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/postwire/postwire/app/database"
)

// RequeueStaleTask returns jobs abandoned mid-publish to the pending pool.
type RequeueStaleTask struct {
	jobs       database.QueueJobRepository
	staleAfter time.Duration
}

func NewRequeueStaleTask(jobs database.QueueJobRepository, staleAfter time.Duration) *RequeueStaleTask {
	return &RequeueStaleTask{jobs: jobs, staleAfter: staleAfter}
}

func (t *RequeueStaleTask) Name() string {
	return "requeue_stale"
}

func (t *RequeueStaleTask) Run(ctx context.Context) error {
	count, err := t.jobs.RequeueStale(t.staleAfter, time.Now().UTC())
	if err != nil {
		return err
	}
	if count > 0 {
		slog.Info("Requeued stale jobs", "count", count)
	}
	return nil
}
