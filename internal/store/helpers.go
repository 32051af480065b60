package store

import (
	"database/sql"
	"fmt"
)

// scanJob scans a Job from sql.Rows.
func scanJob(rows *sql.Rows) (Job, error) {
	var j Job
	var lockedBy, lastError sql.NullString
	var lockedAt sql.NullTime
	err := rows.Scan(
		&j.ID, &j.JobType, &j.Payload, &j.Status, &j.Attempts, &j.RunAfter,
		&lockedAt, &lockedBy, &lastError, &j.Fingerprint, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return j, fmt.Errorf("scan job failed: %w", err)
	}
	if lockedAt.Valid {
		j.LockedAt = &lockedAt.Time
	}
	if lockedBy.Valid {
		j.LockedBy = &lockedBy.String
	}
	if lastError.Valid {
		j.LastError = &lastError.String
	}
	return j, nil
}

// scanJobRow scans a Job from a single sql.Row.
func scanJobRow(row *sql.Row) (Job, error) {
	var j Job
	var lockedBy, lastError sql.NullString
	var lockedAt sql.NullTime
	err := row.Scan(
		&j.ID, &j.JobType, &j.Payload, &j.Status, &j.Attempts, &j.RunAfter,
		&lockedAt, &lockedBy, &lastError, &j.Fingerprint, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return j, err
	}
	if lockedAt.Valid {
		j.LockedAt = &lockedAt.Time
	}
	if lockedBy.Valid {
		j.LockedBy = &lockedBy.String
	}
	if lastError.Valid {
		j.LastError = &lastError.String
	}
	return j, nil
}
