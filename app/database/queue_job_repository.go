package database

import (
	"database/sql"
	"fmt"
	"time"
)

// QueueJobRepo handles database operations for publishing queue jobs
type QueueJobRepo struct {
	db *DB
}

// NewQueueJobRepository creates a new queue job repository
func NewQueueJobRepository(db *DB) *QueueJobRepo {
	return &QueueJobRepo{db: db}
}

// Enqueue inserts a job in whatever state the caller built it. The
// orchestrator uses this for pending work and for rows born failed, e.g. a
// platform that could not be resolved during fan-out.
func (r *QueueJobRepo) Enqueue(job *QueueJob) error {
	_, err := r.db.Exec(`
		INSERT INTO queue_jobs (id, distribution_id, post_id, platform, payload, score, status, attempts, max_attempts, next_attempt_at, last_error, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.DistributionID, job.PostID, job.Platform, job.Payload, job.Score,
		job.Status, job.Attempts, job.MaxAttempts, job.NextAttemptAt.UTC(), job.LastError,
		job.CreatedAt.UTC(), job.UpdatedAt.UTC(), utcOrNil(job.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// ClaimNext atomically moves the most eligible pending job to processing.
// Eligibility is due jobs ordered by adaptation score, then age. The
// conditional UPDATE guards against two workers claiming the same row.
func (r *QueueJobRepo) ClaimNext(now time.Time) (*QueueJob, error) {
	for {
		var jobID string
		err := r.db.QueryRow(`
			SELECT id FROM queue_jobs
			WHERE status = 'pending' AND next_attempt_at <= ?
			ORDER BY score DESC, created_at ASC
			LIMIT 1
		`, now.UTC()).Scan(&jobID)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to select pending job: %w", err)
		}

		result, err := r.db.Exec(`
			UPDATE queue_jobs
			SET status = 'processing', attempts = attempts + 1, updated_at = ?
			WHERE id = ? AND status = 'pending'
		`, now.UTC(), jobID)
		if err != nil {
			return nil, fmt.Errorf("failed to claim job: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to check claim result: %w", err)
		}
		if affected == 0 {
			// Another worker won the race, pick the next candidate
			continue
		}

		return r.GetJob(jobID)
	}
}

func (r *QueueJobRepo) MarkCompleted(jobID string, now time.Time) error {
	_, err := r.db.Exec(`
		UPDATE queue_jobs
		SET status = 'completed', completed_at = ?, updated_at = ?
		WHERE id = ?
	`, now.UTC(), now.UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	return nil
}

func (r *QueueJobRepo) MarkFailed(jobID string, errorMsg string, now time.Time) error {
	_, err := r.db.Exec(`
		UPDATE queue_jobs
		SET status = 'failed', last_error = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`, errorMsg, now.UTC(), now.UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

// Reschedule returns a processing job to pending with a future attempt time,
// keeping the attempt counter incremented by the claim.
func (r *QueueJobRepo) Reschedule(jobID string, nextAttemptAt time.Time, errorMsg string, now time.Time) error {
	_, err := r.db.Exec(`
		UPDATE queue_jobs
		SET status = 'pending', next_attempt_at = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`, nextAttemptAt.UTC(), errorMsg, now.UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to reschedule job: %w", err)
	}
	return nil
}

// Cancel marks a job cancelled. Only pending jobs can be cancelled; a job
// already picked up by a worker runs to its own conclusion.
func (r *QueueJobRepo) Cancel(jobID string, now time.Time) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE queue_jobs
		SET status = 'cancelled', completed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'
	`, now.UTC(), now.UTC(), jobID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check cancel result: %w", err)
	}
	return affected > 0, nil
}

func (r *QueueJobRepo) GetJob(jobID string) (*QueueJob, error) {
	row := r.db.QueryRow(`
		SELECT id, distribution_id, post_id, platform, payload, score, status, attempts, max_attempts, next_attempt_at, last_error, created_at, updated_at, completed_at
		FROM queue_jobs
		WHERE id = ?
	`, jobID)

	job, err := scanQueueJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (r *QueueJobRepo) GetJobsByDistribution(distributionID string) ([]QueueJob, error) {
	rows, err := r.db.Query(`
		SELECT id, distribution_id, post_id, platform, payload, score, status, attempts, max_attempts, next_attempt_at, last_error, created_at, updated_at, completed_at
		FROM queue_jobs
		WHERE distribution_id = ?
		ORDER BY created_at ASC
	`, distributionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query distribution jobs: %w", err)
	}
	defer rows.Close()

	return collectQueueJobs(rows)
}

func (r *QueueJobRepo) GetJobs(status string, limit int) ([]QueueJob, error) {
	query := `
		SELECT id, distribution_id, post_id, platform, payload, score, status, attempts, max_attempts, next_attempt_at, last_error, created_at, updated_at, completed_at
		FROM queue_jobs
	`
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	return collectQueueJobs(rows)
}

// RequeueStale returns jobs stuck in processing to pending. A job goes stale
// when its worker died mid-publish, e.g. on an unclean shutdown.
func (r *QueueJobRepo) RequeueStale(staleAfter time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-staleAfter).UTC()
	result, err := r.db.Exec(`
		UPDATE queue_jobs
		SET status = 'pending', next_attempt_at = ?, last_error = 'requeued after stale processing', updated_at = ?
		WHERE status = 'processing' AND updated_at < ?
	`, now.UTC(), now.UTC(), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale jobs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check requeue result: %w", err)
	}
	return int(affected), nil
}

func (r *QueueJobRepo) DeleteFinishedBefore(cutoff time.Time) (int, error) {
	result, err := r.db.Exec(`
		DELETE FROM queue_jobs
		WHERE status IN ('completed', 'failed', 'cancelled') AND completed_at < ?
	`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete finished jobs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check delete result: %w", err)
	}
	return int(affected), nil
}

func (r *QueueJobRepo) GetStats() (map[string]int, error) {
	rows, err := r.db.Query(`
		SELECT status, COUNT(*) FROM queue_jobs GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query job stats: %w", err)
	}
	defer rows.Close()

	stats := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job stats: %w", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueueJob(row rowScanner) (*QueueJob, error) {
	var job QueueJob
	err := row.Scan(&job.ID, &job.DistributionID, &job.PostID, &job.Platform, &job.Payload,
		&job.Score, &job.Status, &job.Attempts, &job.MaxAttempts, &job.NextAttemptAt,
		&job.LastError, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func collectQueueJobs(rows *sql.Rows) ([]QueueJob, error) {
	var jobs []QueueJob
	for rows.Next() {
		job, err := scanQueueJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}
