package postgres

import (
	"context"
	"fmt"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/jackc/pgx/v5/pgxpool"
)

type tableRef struct {
	name, column string
}

// Cleaner deletes all records related with a submission ID
type Cleaner struct {
	pool   *pgxpool.Pool
	tables []tableRef
}

// NewCleaner creates Cleaner instance
func NewCleaner(pool *pgxpool.Pool) (*Cleaner, error) {
	res := &Cleaner{pool: pool, tables: []tableRef{
		{name: "file_data", column: "file_upload_id"},
		{name: "file_audit", column: "file_upload_id"},
		{name: "dispatch_runs", column: "file_upload_id"},
		{name: "email_lock", column: "id"},
		{name: "file_uploads", column: "id"},
	}}
	return res, nil
}

// Clean removes submission data across all tables
func (db *Cleaner) Clean(ctx context.Context, id string) error {
	// dedup items are keyed by run, drop them before the runs go
	cmd, err := db.pool.Exec(ctx, `DELETE FROM dispatch_run_items WHERE job_id IN
	(SELECT job_id FROM dispatch_runs WHERE file_upload_id = $1)`, id)
	if err != nil {
		return fmt.Errorf("can't delete %s(dispatch_run_items): %w", id, err)
	}
	goapp.Log.Info().Str("ID", id).Str("table", "dispatch_run_items").Int64("rows", cmd.RowsAffected()).Msg("deleted")
	for _, t := range db.tables {
		cmd, err := db.pool.Exec(ctx, `DELETE FROM `+t.name+` WHERE `+t.column+` = $1`, id)
		if err != nil {
			return fmt.Errorf("can't delete %s(%s): %w", id, t.name, err)
		}
		goapp.Log.Info().Str("ID", id).Str("table", t.name).Int64("rows", cmd.RowsAffected()).Msg("deleted")
	}
	return nil
}
