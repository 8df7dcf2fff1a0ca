package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/credentio/bulkissue/internal/pkg/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB provides operations with postgresql
type DB struct {
	pool *pgxpool.Pool
}

// NewDB creates DB instance
func NewDB(pool *pgxpool.Pool) (*DB, error) {
	res := &DB{pool: pool}
	return res, nil
}

// InsertFileUpload inserts submission into DB
func (db *DB) InsertFileUpload(ctx context.Context, item *persistence.FileUpload) error {
	_, err := db.pool.Exec(ctx, `INSERT INTO file_uploads(id, org_id, uploader_id, email, credential_type,
	template_id, status, request_id, created, updated)
	VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, item.ID, item.OrgID, item.UploaderID, item.Email,
		item.CredentialType, item.TemplateID, item.Status, item.RequestID, item.Created, item.Updated)
	if err != nil {
		return fmt.Errorf("can't insert file_upload: %w", err)
	}
	return nil
}

// LoadFileUpload loads submission from DB, returns nil if not found
func (db *DB) LoadFileUpload(ctx context.Context, id string) (*persistence.FileUpload, error) {
	var res persistence.FileUpload
	err := db.pool.QueryRow(ctx, `SELECT id, org_id, uploader_id, email, credential_type, template_id,
	status, request_id, created, updated FROM file_uploads
		WHERE id = $1`, id).Scan(&res.ID, &res.OrgID, &res.UploaderID, &res.Email, &res.CredentialType,
		&res.TemplateID, &res.Status, &res.RequestID, &res.Created, &res.Updated)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("can't load file_upload: %w", err)
	}
	return &res, nil
}

// UpdateFileUploadStatus sets the submission status
func (db *DB) UpdateFileUploadStatus(ctx context.Context, id, status string) error {
	rows, err := db.pool.Exec(ctx, `UPDATE file_uploads SET status = $2, updated = $3 WHERE id = $1`,
		id, status, time.Now())
	if err != nil {
		return fmt.Errorf("can't update file_upload status: %w", err)
	}
	if rows.RowsAffected() != 1 {
		return fmt.Errorf("can't update file_upload status, no records found")
	}
	return nil
}

// InsertFileData inserts one row into DB
func (db *DB) InsertFileData(ctx context.Context, item *persistence.FileData) error {
	_, err := db.pool.Exec(ctx, `INSERT INTO file_data(id, file_upload_id, reference_id, payload,
	schema_id, cred_def_id, is_error, created)
	VALUES($1, $2, $3, $4, $5, $6, $7, $8)`, item.ID, item.FileUploadID, item.ReferenceID,
		item.Payload, item.SchemaID, item.CredDefID, item.IsError, item.Created)
	if err != nil {
		return fmt.Errorf("can't insert file_data: %w", err)
	}
	return nil
}

// DeleteFileData removes the row after successful issuance.
// Deleting an already removed row is a no-op
func (db *DB) DeleteFileData(ctx context.Context, id string) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM file_data WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("can't delete file_data: %w", err)
	}
	return nil
}

// MarkFileDataError records row level issuance failure
func (db *DB) MarkFileDataError(ctx context.Context, id, errStr, errDetail string) error {
	_, err := db.pool.Exec(ctx, `UPDATE file_data SET is_error = TRUE, error = $2, error_detail = $3
	WHERE id = $1`, id, errStr, errDetail)
	if err != nil {
		return fmt.Errorf("can't mark file_data error: %w", err)
	}
	return nil
}

// LoadErrorFileData loads rows still flagged as errored for a submission
func (db *DB) LoadErrorFileData(ctx context.Context, fileUploadID string) ([]*persistence.FileData, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, file_upload_id, reference_id, payload, schema_id, cred_def_id,
	is_error, error, error_detail, created FROM file_data
		WHERE file_upload_id = $1 AND is_error = TRUE ORDER BY created, id`, fileUploadID)
	if err != nil {
		return nil, fmt.Errorf("can't load file_data: %w", err)
	}
	defer rows.Close()
	res := []*persistence.FileData{}
	for rows.Next() {
		var d persistence.FileData
		if err := rows.Scan(&d.ID, &d.FileUploadID, &d.ReferenceID, &d.Payload, &d.SchemaID, &d.CredDefID,
			&d.IsError, &d.Error, &d.ErrorDetail, &d.Created); err != nil {
			return nil, fmt.Errorf("can't retrieve file_data: %w", err)
		}
		res = append(res, &d)
	}
	return res, nil
}

// CountFileData returns remaining row count for a submission
func (db *DB) CountFileData(ctx context.Context, fileUploadID string) (int64, error) {
	var res int64
	err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM file_data WHERE file_upload_id = $1`,
		fileUploadID).Scan(&res)
	if err != nil {
		return 0, fmt.Errorf("can't count file_data: %w", err)
	}
	return res, nil
}

// CountErrorFileData returns errored row count for a submission
func (db *DB) CountErrorFileData(ctx context.Context, fileUploadID string) (int64, error) {
	var res int64
	err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM file_data WHERE file_upload_id = $1 AND is_error = TRUE`,
		fileUploadID).Scan(&res)
	if err != nil {
		return 0, fmt.Errorf("can't count file_data: %w", err)
	}
	return res, nil
}

// InsertFileAudit records one row attempt
func (db *DB) InsertFileAudit(ctx context.Context, item *persistence.FileAudit) error {
	_, err := db.pool.Exec(ctx, `INSERT INTO file_audit(id, file_upload_id, file_data_id, reference_id,
	is_error, error, error_detail, created)
	VALUES($1, $2, $3, $4, $5, $6, $7, $8)`, item.ID, item.FileUploadID, item.FileDataID, item.ReferenceID,
		item.IsError, item.Error, item.ErrorDetail, item.Created)
	if err != nil {
		return fmt.Errorf("can't insert file_audit: %w", err)
	}
	return nil
}

// LoadTemplate loads schema/template attribute definitions
func (db *DB) LoadTemplate(ctx context.Context, id string) (*persistence.Template, error) {
	var res persistence.Template
	err := db.pool.QueryRow(ctx, `SELECT id, name, schema_id, cred_def_id, attributes, logo, created
	FROM templates WHERE id = $1`, id).Scan(&res.ID, &res.Name, &res.SchemaID, &res.CredDefID,
		&res.Attributes, &res.Logo, &res.Created)
	if err != nil {
		return nil, fmt.Errorf("can't load template: %w", err)
	}
	return &res, nil
}

// Live returns no error if db is reachable and initialized
func (db *DB) Live(ctx context.Context) error {
	var exists bool
	if err := db.pool.QueryRow(ctx, `SELECT EXISTS (SELECT FROM pg_tables WHERE tablename = 'gue_jobs')`).Scan(&exists); err != nil {
		return fmt.Errorf("can't check table: %w", err)
	}
	if !exists {
		return fmt.Errorf("no migration done")
	}
	return nil
}
