package persistence

import (
	"database/sql"
	"time"
)

type (

	// FileUpload table - one bulk issuance submission
	FileUpload struct {
		ID             string
		OrgID          string
		UploaderID     string
		Email          sql.NullString
		CredentialType string
		TemplateID     sql.NullString
		Status         string
		RequestID      sql.NullString
		Created        time.Time
		Updated        time.Time
	}

	// FileData table - one recipient row of a submission.
	// Deleted on successful issuance, kept with error fields on failure
	FileData struct {
		ID           string
		FileUploadID string
		ReferenceID  string
		Payload      map[string]string
		SchemaID     sql.NullString
		CredDefID    sql.NullString
		IsError      bool
		Error        sql.NullString
		ErrorDetail  sql.NullString
		Created      time.Time
	}

	// FileAudit table - durable evidence one row was attempted, success or failure
	FileAudit struct {
		ID           string
		FileUploadID string
		FileDataID   string
		ReferenceID  string
		IsError      bool
		Error        sql.NullString
		ErrorDetail  sql.NullString
		Created      time.Time
	}

	// DispatchRun table - durable completion counter for one dispatch run
	DispatchRun struct {
		JobID        string
		FileUploadID string
		TotalJobs    int
		Processed    int
		IsRetry      bool
		ClientID     sql.NullString
		Created      time.Time
		Updated      time.Time
	}

	// Template table - cached schema/template attribute definitions
	Template struct {
		ID         string
		Name       string
		SchemaID   string
		CredDefID  string
		Attributes []string
		Logo       sql.NullString
		Created    time.Time
	}
)
