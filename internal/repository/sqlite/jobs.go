// FilePath: internal/repository/sqlite/jobs.go
package sqlite

import (
	"context"
	"time"

	"github.com/residential-power/outagewatch/internal/models"
	"github.com/residential-power/outagewatch/internal/store"
)

// JobRepo manages the admin control-plane job queue: FIFO by
// (created_at, id), leased by owner with a bounded TTL.
type JobRepo struct {
	db *store.DB
}

// NewJobRepo constructs a JobRepo.
func NewJobRepo(db *store.DB) *JobRepo {
	return &JobRepo{db: db}
}

func (r *JobRepo) BeginTx(ctx context.Context) (store.Transaction, error) {
	return beginTx(ctx, r.db)
}

func (r *JobRepo) Enqueue(ctx context.Context, j *models.AdminJob) error {
	return r.db.WithRetry(ctx, func() error {
		_, err := r.db.SQLX().ExecContext(ctx, `
			INSERT INTO admin_jobs (id, kind, payload, status, created_by, created_at, updated_at, progress_total)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, j.ID, j.Kind, j.Payload, models.JobPending, j.CreatedBy, j.CreatedAt, j.CreatedAt, j.ProgressTotal)
		return err
	})
}

// Claim leases the oldest pending job for owner. Expired running jobs are
// not claimed here; Reclaim returns them to pending first.
func (r *JobRepo) Claim(ctx context.Context, owner string, leaseTTL time.Duration, now time.Time) (*models.AdminJob, error) {
	var job *models.AdminJob
	// BeginTx already holds the write gate and retries a busy begin;
	// WithRetry takes the same gate, so it does not wrap this transaction.
	err := func() error {
		tx, err := r.db.BeginTx(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var candidate models.AdminJob
		err = tx.GetContext(ctx, &candidate, `
			SELECT id, kind, payload, status, created_by, created_at, started_at, finished_at, updated_at,
			       attempts, progress_current, progress_total, last_error, lease_owner, lease_expires_at
			FROM admin_jobs
			WHERE status = 'pending'
			ORDER BY created_at, id
			LIMIT 1
		`)
		if err != nil {
			job = nil
			return err
		}

		leaseExp := now.Add(leaseTTL)
		_, err = tx.ExecContext(ctx, `
			UPDATE admin_jobs SET status = 'running', started_at = ?, updated_at = ?, attempts = attempts + 1,
				lease_owner = ?, lease_expires_at = ?
			WHERE id = ? AND status = 'pending'
		`, now, now, owner, leaseExp, candidate.ID)
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		candidate.Status = models.JobRunning
		candidate.LeaseOwner = owner
		candidate.LeaseExpiresAt = &leaseExp
		job = &candidate
		return nil
	}()
	if err != nil {
		return nil, mapNotFound(err)
	}
	return job, nil
}

func (r *JobRepo) Heartbeat(ctx context.Context, id, owner string, leaseTTL time.Duration, now time.Time, progressCurrent int) error {
	leaseExp := now.Add(leaseTTL)
	return r.db.WithRetry(ctx, func() error {
		_, err := r.db.SQLX().ExecContext(ctx, `
			UPDATE admin_jobs SET lease_expires_at = ?, updated_at = ?, progress_current = ?
			WHERE id = ? AND lease_owner = ? AND status = 'running'
		`, leaseExp, now, progressCurrent, id, owner)
		return err
	})
}

// Finish moves a pending or running job to its terminal status. Calling it
// on a job that is already done, failed or canceled changes nothing.
func (r *JobRepo) Finish(ctx context.Context, id string, status models.JobStatus, lastError string, now time.Time) error {
	return r.db.WithRetry(ctx, func() error {
		_, err := r.db.SQLX().ExecContext(ctx, `
			UPDATE admin_jobs SET status = ?, finished_at = ?, updated_at = ?, last_error = ?, lease_owner = '', lease_expires_at = NULL
			WHERE id = ? AND status IN ('pending', 'running')
		`, status, now, now, lastError, id)
		return err
	})
}

// Reclaim moves expired running jobs back to pending, or to failed once
// max attempts is reached. Returns the number of jobs reclaimed.
func (r *JobRepo) Reclaim(ctx context.Context, maxAttempts int, now time.Time) (int, error) {
	var n int
	err := r.db.WithRetry(ctx, func() error {
		res, err := r.db.SQLX().ExecContext(ctx, `
			UPDATE admin_jobs SET status = 'failed', finished_at = ?, updated_at = ?, last_error = 'lease expired', lease_owner = '', lease_expires_at = NULL
			WHERE status = 'running' AND lease_expires_at < ? AND attempts >= ?
		`, now, now, now, maxAttempts)
		if err != nil {
			return err
		}
		failed, err := res.RowsAffected()
		if err != nil {
			return err
		}

		res, err = r.db.SQLX().ExecContext(ctx, `
			UPDATE admin_jobs SET status = 'pending', updated_at = ?, lease_owner = '', lease_expires_at = NULL
			WHERE status = 'running' AND lease_expires_at < ?
		`, now, now)
		if err != nil {
			return err
		}
		reclaimed, err := res.RowsAffected()
		if err != nil {
			return err
		}
		n = int(failed + reclaimed)
		return nil
	})
	return n, err
}

func (r *JobRepo) Get(ctx context.Context, id string) (*models.AdminJob, error) {
	var j models.AdminJob
	err := r.db.SQLX().GetContext(ctx, &j, `
		SELECT id, kind, payload, status, created_by, created_at, started_at, finished_at, updated_at,
		       attempts, progress_current, progress_total, last_error, lease_owner, lease_expires_at
		FROM admin_jobs WHERE id = ?`, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &j, nil
}

func (r *JobRepo) List(ctx context.Context, filters models.JobFilters, offset, limit int) ([]*models.AdminJob, error) {
	query := `
		SELECT id, kind, payload, status, created_by, created_at, started_at, finished_at, updated_at,
		       attempts, progress_current, progress_total, last_error, lease_owner, lease_expires_at
		FROM admin_jobs WHERE 1=1
	`
	var args []interface{}
	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}
	if filters.Kind != "" {
		query += " AND kind = ?"
		args = append(args, filters.Kind)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var out []*models.AdminJob
	err := r.db.SQLX().SelectContext(ctx, &out, query, args...)
	return out, err
}
