package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/crewdeskhq/crewdesk/internal/util"
)

// Compile-time check that PostgresStore implements JobRepo.
var _ JobRepo = (*PostgresStore)(nil)

const jobColumns = `id, job_type, payload, status, attempts, run_after, locked_at, locked_by, last_error, fingerprint, created_at, updated_at`

func (s *PostgresStore) EnqueueJob(jobType string, payload map[string]any) (*Job, error) {
	canonical, err := canonicalizePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("enqueue job failed: %w", err)
	}
	fingerprint := jobFingerprint(jobType, canonical)
	id := util.GenerateRandomID("job_", 32)
	now := time.Now()

	// The partial unique index on fingerprint covers PENDING rows only, so
	// concurrent duplicate enqueues collapse while completed work stays
	// re-enqueueable.
	result, err := s.db.Exec(
		`INSERT INTO jobs (id, job_type, payload, status, attempts, run_after, fingerprint, created_at, updated_at)
		 VALUES ($1, $2, $3, 'PENDING', 0, $4, $5, $6, $7)
		 ON CONFLICT (fingerprint) WHERE status = 'PENDING' DO NOTHING`,
		id, jobType, canonical, now, fingerprint, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("enqueue job failed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("enqueue job rows affected failed: %w", err)
	}
	if n == 0 {
		slog.Debug("PostgresStore.EnqueueJob: duplicate pending job", "jobType", jobType, "fingerprint", fingerprint)
		return nil, nil
	}

	slog.Debug("PostgresStore.EnqueueJob", "id", id, "jobType", jobType)
	return &Job{
		ID:          id,
		JobType:     jobType,
		Payload:     canonical,
		Status:      JobStatusPending,
		RunAfter:    now,
		Fingerprint: fingerprint,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *PostgresStore) ClaimJobs(workerID string, batchSize int, leaseTTL time.Duration) ([]Job, error) {
	now := time.Now()
	staleBefore := now.Add(-leaseTTL)

	rows, err := s.db.Query(
		`UPDATE jobs
		 SET status = 'RUNNING', locked_by = $1, locked_at = $2, attempts = attempts + 1, updated_at = $2
		 WHERE id IN (
		   SELECT id FROM jobs
		   WHERE (status = 'PENDING' AND run_after <= $2)
		      OR (status = 'RUNNING' AND locked_at < $3)
		   ORDER BY run_after ASC, created_at ASC
		   LIMIT $4
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+jobColumns,
		workerID, now, staleBefore, batchSize,
	)
	if err != nil {
		return nil, fmt.Errorf("claim jobs failed: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim jobs iteration failed: %w", err)
	}

	// RETURNING does not preserve the subselect ordering.
	sort.Slice(jobs, func(i, k int) bool {
		if !jobs[i].RunAfter.Equal(jobs[k].RunAfter) {
			return jobs[i].RunAfter.Before(jobs[k].RunAfter)
		}
		return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
	})
	return jobs, nil
}

func (s *PostgresStore) MarkJobDone(id string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE jobs SET status = 'DONE', locked_at = NULL, locked_by = NULL, updated_at = $1
		 WHERE id = $2 AND status = 'RUNNING'`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("mark job done failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkJobRetry(id string, errMsg string, backoff time.Duration) error {
	now := time.Now()

	var attempts int
	err := s.db.QueryRow(`SELECT attempts FROM jobs WHERE id = $1 AND status = 'RUNNING'`, id).Scan(&attempts)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore.MarkJobRetry: job not running", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark job retry lookup failed: %w", err)
	}

	if attempts >= s.maxAttempts {
		_, err = s.db.Exec(
			`UPDATE jobs SET status = 'FAILED', last_error = $1, locked_at = NULL, locked_by = NULL, updated_at = $2
			 WHERE id = $3 AND status = 'RUNNING'`,
			errMsg, now, id,
		)
	} else {
		_, err = s.db.Exec(
			`UPDATE jobs SET status = 'PENDING', last_error = $1, run_after = $2, locked_at = NULL, locked_by = NULL, updated_at = $3
			 WHERE id = $4 AND status = 'RUNNING'`,
			errMsg, now.Add(backoff), now, id,
		)
	}
	if err != nil {
		return fmt.Errorf("mark job retry update failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkJobFailed(id string, errMsg string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE jobs SET status = 'FAILED', last_error = $1, locked_at = NULL, locked_by = NULL, updated_at = $2
		 WHERE id = $3 AND status = 'RUNNING'`,
		errMsg, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark job failed failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListJobs(f JobFilter) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var conds []string
	var args []any

	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.JobType != "" {
		args = append(args, f.JobType)
		conds = append(conds, fmt.Sprintf("job_type = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs failed: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs iteration failed: %w", err)
	}
	return jobs, nil
}

func (s *PostgresStore) GetJob(id string) (*Job, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJobRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job failed: %w", err)
	}
	return &j, nil
}

func (s *PostgresStore) ForceRetryJob(id string) error {
	now := time.Now()
	result, err := s.db.Exec(
		`UPDATE jobs SET status = 'PENDING', attempts = 0, last_error = NULL, run_after = $1, updated_at = $1
		 WHERE id = $2 AND status = 'FAILED'`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("force retry job failed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("force retry job rows affected failed: %w", err)
	}
	if n == 0 {
		job, err := s.GetJob(id)
		if err != nil {
			return err
		}
		if job == nil {
			return ErrJobNotFound
		}
		return ErrJobNotFailed
	}
	slog.Info("PostgresStore.ForceRetryJob", "id", id)
	return nil
}
