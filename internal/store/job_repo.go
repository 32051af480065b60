// Package store provides the JobRepo interface and model for durable background jobs.
package store

import (
	"errors"
	"time"
)

// JobStatus represents the lifecycle state of a background job.
type JobStatus string

const (
	// JobStatusPending means the job is waiting to become eligible and be claimed.
	JobStatusPending JobStatus = "PENDING"
	// JobStatusRunning means a worker holds the job under an active lease.
	JobStatusRunning JobStatus = "RUNNING"
	// JobStatusDone means the job completed successfully. Terminal.
	JobStatusDone JobStatus = "DONE"
	// JobStatusFailed means the job exhausted its attempts or hit a permanent error. Terminal.
	JobStatusFailed JobStatus = "FAILED"
)

// IsValidJobStatus checks if the given job status is supported.
func IsValidJobStatus(s JobStatus) bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusDone, JobStatusFailed:
		return true
	default:
		return false
	}
}

// Job represents a durable background job record.
type Job struct {
	ID          string     `json:"id"`
	JobType     string     `json:"job_type"`
	Payload     string     `json:"payload"` // canonical JSON text
	Status      JobStatus  `json:"status"`
	Attempts    int        `json:"attempts"`
	RunAfter    time.Time  `json:"run_after"`
	LockedAt    *time.Time `json:"locked_at"`
	LockedBy    *string    `json:"locked_by"`
	LastError   *string    `json:"last_error"`
	Fingerprint string     `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// JobFilter narrows ListJobs results. Zero values mean "any".
type JobFilter struct {
	Status  JobStatus
	JobType string
	Limit   int
	Offset  int
}

const (
	// DefaultListLimit is applied when a filter does not set a limit.
	DefaultListLimit = 50
	// MaxListLimit caps the page size of job listings.
	MaxListLimit = 200
)

var (
	// ErrJobNotFound is returned by operations that require an existing job.
	ErrJobNotFound = errors.New("store: job not found")
	// ErrJobNotFailed is returned when a retry is forced on a job that is not FAILED.
	ErrJobNotFailed = errors.New("store: job is not in FAILED state")
)

// JobRepo defines the interface for durable job persistence.
type JobRepo interface {
	// EnqueueJob inserts a PENDING job with the given type and payload. The
	// payload is canonicalized and fingerprinted; if a PENDING job with the
	// same fingerprint already exists, EnqueueJob returns (nil, nil).
	EnqueueJob(jobType string, payload map[string]any) (*Job, error)

	// ClaimJobs atomically claims up to batchSize eligible jobs for workerID:
	// PENDING jobs whose run_after has passed, plus RUNNING jobs whose lease
	// (locked_at + leaseTTL) has expired. Claimed jobs transition to RUNNING
	// with attempts incremented, ordered by run_after then created_at.
	// Concurrent claimers receive disjoint sets.
	ClaimJobs(workerID string, batchSize int, leaseTTL time.Duration) ([]Job, error)

	// MarkJobDone transitions a RUNNING job to DONE and clears its lock.
	MarkJobDone(id string) error

	// MarkJobRetry records a transient failure. If the job has attempts left
	// it returns to PENDING with run_after pushed out by backoff; otherwise
	// it transitions to FAILED. No-op unless the job is RUNNING.
	MarkJobRetry(id string, errMsg string, backoff time.Duration) error

	// MarkJobFailed transitions a RUNNING job directly to FAILED for
	// permanent errors that must not be retried.
	MarkJobFailed(id string, errMsg string) error

	// ListJobs returns jobs matching the filter, newest first.
	ListJobs(f JobFilter) ([]Job, error)

	// GetJob retrieves a single job by ID, or (nil, nil) if it does not exist.
	GetJob(id string) (*Job, error)

	// ForceRetryJob resets a FAILED job to PENDING with zero attempts and a
	// cleared error, making it immediately eligible. Returns ErrJobNotFound
	// or ErrJobNotFailed when the job cannot be reset.
	ForceRetryJob(id string) error
}

// Store aggregates all repositories backed by a single database.
type Store interface {
	JobRepo
	CustomerRepo
	ProjectRepo
	TimeEntryRepo
	CredentialRepo
	EntityMapRepo
	Close() error
}
