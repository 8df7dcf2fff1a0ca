package messages

import (
	amessages "github.com/airenas/async-api/pkg/messages"

	"github.com/credentio/bulkissue/internal/pkg/api"
)

const (
	st = "BULK/"
	// Issue queue name - one job per recipient row
	Issue = st + "Issue"
	// Progress queue name - events for the websocket progress service
	Progress = st + "Progress"
	// Inform queue name - email notification events
	Inform = st + "Inform"
)

// IssueMessage wraps one recipient row for one dispatch attempt.
// QueueMessage.ID is the file data row id.
// Every job of one dispatch run shares JobID and TotalJobs
type IssueMessage struct {
	amessages.QueueMessage
	JobID        string            `json:"jobID"`
	FileUploadID string            `json:"fileUploadID"`
	TotalJobs    int               `json:"totalJobs"`
	IsRetry      bool              `json:"isRetry,omitempty"`
	ClientID     string            `json:"clientID,omitempty"`
	OrgID        string            `json:"orgID,omitempty"`
	ReferenceID  string            `json:"referenceID,omitempty"`
	Payload      map[string]string `json:"payload,omitempty"`
	SchemaID     string            `json:"schemaID,omitempty"`
	CredDefID    string            `json:"credDefID,omitempty"`
	TemplateID   string            `json:"templateID,omitempty"`
	Logo         string            `json:"logo,omitempty"`
}

// ProgressMessage is pushed to the progress queue on submission completion
type ProgressMessage struct {
	amessages.QueueMessage
	Event        string `json:"event"`
	FileUploadID string `json:"fileUploadID"`
	ClientID     string `json:"clientID,omitempty"`
}

// NewMessageFrom creates a copy of a message
func NewMessageFrom(m *IssueMessage) *IssueMessage {
	res := *m
	return &res
}

// EventCompleted returns completion event name for first attempt or retry
func EventCompleted(isRetry bool) string {
	if isRetry {
		return api.EvRetryCompleted
	}
	return api.EvCompleted
}

// EventError returns failure event name for first attempt or retry
func EventError(isRetry bool) string {
	if isRetry {
		return api.EvRetryError
	}
	return api.EvError
}
