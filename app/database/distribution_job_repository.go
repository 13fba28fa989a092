package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DistributionJobRepo handles database operations for distribution fan-out records
type DistributionJobRepo struct {
	db *DB
}

// NewDistributionJobRepository creates a new distribution job repository
func NewDistributionJobRepository(db *DB) *DistributionJobRepo {
	return &DistributionJobRepo{db: db}
}

func (r *DistributionJobRepo) CreateDistribution(distribution *DistributionJob) error {
	platforms, err := json.Marshal(distribution.Platforms)
	if err != nil {
		return fmt.Errorf("failed to encode platforms: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO distribution_jobs (id, post_id, platforms, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, distribution.ID, distribution.PostID, string(platforms), distribution.Status,
		distribution.CreatedAt.UTC(), distribution.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create distribution: %w", err)
	}
	return nil
}

func (r *DistributionJobRepo) GetDistribution(distributionID string) (*DistributionJob, error) {
	row := r.db.QueryRow(`
		SELECT id, post_id, platforms, status, created_at, updated_at, completed_at
		FROM distribution_jobs
		WHERE id = ?
	`, distributionID)

	distribution, err := scanDistributionJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get distribution: %w", err)
	}
	return distribution, nil
}

func (r *DistributionJobRepo) UpdateDistributionStatus(distributionID string, status string, completedAt *time.Time, now time.Time) error {
	_, err := r.db.Exec(`
		UPDATE distribution_jobs
		SET status = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`, status, utcOrNil(completedAt), now.UTC(), distributionID)
	if err != nil {
		return fmt.Errorf("failed to update distribution status: %w", err)
	}
	return nil
}

func (r *DistributionJobRepo) GetDistributions(limit int) ([]DistributionJob, error) {
	rows, err := r.db.Query(`
		SELECT id, post_id, platforms, status, created_at, updated_at, completed_at
		FROM distribution_jobs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query distributions: %w", err)
	}
	defer rows.Close()

	var distributions []DistributionJob
	for rows.Next() {
		distribution, err := scanDistributionJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan distribution: %w", err)
		}
		distributions = append(distributions, *distribution)
	}
	return distributions, rows.Err()
}

func scanDistributionJob(row rowScanner) (*DistributionJob, error) {
	var distribution DistributionJob
	var platforms string
	err := row.Scan(&distribution.ID, &distribution.PostID, &platforms, &distribution.Status,
		&distribution.CreatedAt, &distribution.UpdatedAt, &distribution.CompletedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(platforms), &distribution.Platforms); err != nil {
		return nil, fmt.Errorf("failed to decode platforms: %w", err)
	}
	return &distribution, nil
}

func utcOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
