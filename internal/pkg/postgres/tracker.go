package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/credentio/bulkissue/internal/pkg/persistence"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RunTracker counts processed jobs of a dispatch run in the same postgres
// instance the job queue lives in, so the last-job test stays correct when
// worker pools span several processes.
// The increment is deduplicated per (job_id, file_data_id) - a redelivered
// job never double-counts
type RunTracker struct {
	pool *pgxpool.Pool
}

// NewRunTracker creates RunTracker instance
func NewRunTracker(pool *pgxpool.Pool) (*RunTracker, error) {
	res := &RunTracker{pool: pool}
	return res, nil
}

// InsertRun registers a dispatch run before its first job is enqueued
func (t *RunTracker) InsertRun(ctx context.Context, run *persistence.DispatchRun) error {
	_, err := t.pool.Exec(ctx, `INSERT INTO dispatch_runs(job_id, file_upload_id, total_jobs, processed,
	is_retry, client_id, created, updated)
	VALUES($1, $2, $3, 0, $4, $5, $6, $7) ON CONFLICT (job_id) DO NOTHING`,
		run.JobID, run.FileUploadID, run.TotalJobs, run.IsRetry, run.ClientID, run.Created, run.Updated)
	if err != nil {
		return fmt.Errorf("can't insert dispatch_run: %w", err)
	}
	return nil
}

// MarkProcessed registers one processed job of a run.
// Returns true for exactly one job of a run - the one bringing the count to total
func (t *RunTracker) MarkProcessed(ctx context.Context, jobID, rowID string, total int) (bool, error) {
	if total < 1 {
		return false, fmt.Errorf("wrong total %d", total)
	}
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("can't start tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// run row may be missing if the dispatcher process died right after enqueue
	if _, err := tx.Exec(ctx, `INSERT INTO dispatch_runs(job_id, file_upload_id, total_jobs, processed, is_retry, created, updated)
	VALUES($1, '', $2, 0, FALSE, $3, $3) ON CONFLICT (job_id) DO NOTHING`, jobID, total, time.Now()); err != nil {
		return false, fmt.Errorf("can't init dispatch_run: %w", err)
	}
	ct, err := tx.Exec(ctx, `INSERT INTO dispatch_run_items(job_id, file_data_id)
	VALUES($1, $2) ON CONFLICT DO NOTHING`, jobID, rowID)
	if err != nil {
		return false, fmt.Errorf("can't insert dispatch_run_item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		goapp.Log.Warn().Str("jobID", jobID).Str("rowID", rowID).Msg("duplicate delivery, skip count")
		return false, tx.Commit(ctx)
	}
	var processed, totalJobs int
	err = tx.QueryRow(ctx, `UPDATE dispatch_runs SET processed = processed + 1, updated = $2
	WHERE job_id = $1 RETURNING processed, total_jobs`, jobID, time.Now()).Scan(&processed, &totalJobs)
	if err != nil {
		return false, fmt.Errorf("can't increment dispatch_run: %w", err)
	}
	last := processed >= totalJobs
	if last {
		if _, err := tx.Exec(ctx, `DELETE FROM dispatch_run_items WHERE job_id = $1`, jobID); err != nil {
			return false, fmt.Errorf("can't clean dispatch_run_items: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM dispatch_runs WHERE job_id = $1`, jobID); err != nil {
			return false, fmt.Errorf("can't clean dispatch_run: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("can't commit: %w", err)
	}
	return last, nil
}

// LoadStaleRuns returns unfinished runs without a counter increment for the provided duration.
// A slow run still making progress keeps bumping updated and is never reported
func (t *RunTracker) LoadStaleRuns(ctx context.Context, olderThan time.Duration) ([]*persistence.DispatchRun, error) {
	exp := time.Now().Add(-olderThan)
	rows, err := t.pool.Query(ctx, `SELECT job_id, file_upload_id, total_jobs, processed, is_retry, client_id, created, updated
	FROM dispatch_runs WHERE updated < $1`, exp)
	if err != nil {
		return nil, fmt.Errorf("can't select dispatch_runs: %w", err)
	}
	defer rows.Close()
	res := []*persistence.DispatchRun{}
	for rows.Next() {
		var r persistence.DispatchRun
		if err := rows.Scan(&r.JobID, &r.FileUploadID, &r.TotalJobs, &r.Processed, &r.IsRetry,
			&r.ClientID, &r.Created, &r.Updated); err != nil {
			return nil, fmt.Errorf("can't retrieve dispatch_run: %w", err)
		}
		res = append(res, &r)
	}
	return res, nil
}

// DeleteRun drops a run and its dedup items
func (t *RunTracker) DeleteRun(ctx context.Context, jobID string) error {
	if _, err := t.pool.Exec(ctx, `DELETE FROM dispatch_run_items WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("can't delete dispatch_run_items: %w", err)
	}
	if _, err := t.pool.Exec(ctx, `DELETE FROM dispatch_runs WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("can't delete dispatch_run: %w", err)
	}
	return nil
}
