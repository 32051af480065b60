package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/crewdeskhq/crewdesk/internal/util"
)

// Compile-time check that SQLiteStore implements JobRepo.
var _ JobRepo = (*SQLiteStore)(nil)

func (s *SQLiteStore) EnqueueJob(jobType string, payload map[string]any) (*Job, error) {
	canonical, err := canonicalizePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("enqueue job failed: %w", err)
	}
	fingerprint := jobFingerprint(jobType, canonical)
	id := util.GenerateRandomID("job_", 32)
	now := time.Now()

	result, err := s.db.Exec(
		`INSERT INTO jobs (id, job_type, payload, status, attempts, run_after, fingerprint, created_at, updated_at)
		 VALUES (?, ?, ?, 'PENDING', 0, ?, ?, ?, ?)
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
		slog.Debug("SQLiteStore.EnqueueJob: duplicate pending job", "jobType", jobType, "fingerprint", fingerprint)
		return nil, nil
	}

	slog.Debug("SQLiteStore.EnqueueJob", "id", id, "jobType", jobType)
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

func (s *SQLiteStore) ClaimJobs(workerID string, batchSize int, leaseTTL time.Duration) ([]Job, error) {
	now := time.Now()
	staleBefore := now.Add(-leaseTTL)

	// A single UPDATE runs under SQLite's write lock, so concurrent claimers
	// cannot grab the same rows. The claimed set is read back by the exact
	// lock timestamp.
	_, err := s.db.Exec(
		`UPDATE jobs
		 SET status = 'RUNNING', locked_by = ?, locked_at = ?, attempts = attempts + 1, updated_at = ?
		 WHERE id IN (
		   SELECT id FROM jobs
		   WHERE (status = 'PENDING' AND run_after <= ?)
		      OR (status = 'RUNNING' AND locked_at < ?)
		   ORDER BY run_after ASC, created_at ASC
		   LIMIT ?
		 )`,
		workerID, now, now, now, staleBefore, batchSize,
	)
	if err != nil {
		return nil, fmt.Errorf("claim jobs failed: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT `+jobColumns+` FROM jobs WHERE locked_by = ? AND locked_at = ?
		 ORDER BY run_after ASC, created_at ASC`,
		workerID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("claim jobs readback failed: %w", err)
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
	return jobs, nil
}

func (s *SQLiteStore) MarkJobDone(id string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE jobs SET status = 'DONE', locked_at = NULL, locked_by = NULL, updated_at = ?
		 WHERE id = ? AND status = 'RUNNING'`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("mark job done failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) MarkJobRetry(id string, errMsg string, backoff time.Duration) error {
	now := time.Now()

	var attempts int
	err := s.db.QueryRow(`SELECT attempts FROM jobs WHERE id = ? AND status = 'RUNNING'`, id).Scan(&attempts)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore.MarkJobRetry: job not running", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark job retry lookup failed: %w", err)
	}

	if attempts >= s.maxAttempts {
		_, err = s.db.Exec(
			`UPDATE jobs SET status = 'FAILED', last_error = ?, locked_at = NULL, locked_by = NULL, updated_at = ?
			 WHERE id = ? AND status = 'RUNNING'`,
			errMsg, now, id,
		)
	} else {
		_, err = s.db.Exec(
			`UPDATE jobs SET status = 'PENDING', last_error = ?, run_after = ?, locked_at = NULL, locked_by = NULL, updated_at = ?
			 WHERE id = ? AND status = 'RUNNING'`,
			errMsg, now.Add(backoff), now, id,
		)
	}
	if err != nil {
		return fmt.Errorf("mark job retry update failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) MarkJobFailed(id string, errMsg string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE jobs SET status = 'FAILED', last_error = ?, locked_at = NULL, locked_by = NULL, updated_at = ?
		 WHERE id = ? AND status = 'RUNNING'`,
		errMsg, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark job failed failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListJobs(f JobFilter) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var conds []string
	var args []any

	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.JobType != "" {
		conds = append(conds, "job_type = ?")
		args = append(args, f.JobType)
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
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

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

func (s *SQLiteStore) GetJob(id string) (*Job, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJobRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job failed: %w", err)
	}
	return &j, nil
}

func (s *SQLiteStore) ForceRetryJob(id string) error {
	now := time.Now()
	result, err := s.db.Exec(
		`UPDATE jobs SET status = 'PENDING', attempts = 0, last_error = NULL, run_after = ?, updated_at = ?
		 WHERE id = ? AND status = 'FAILED'`,
		now, now, id,
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
	slog.Info("SQLiteStore.ForceRetryJob", "id", id)
	return nil
}
