package mocks

import (
	"context"
	"io"
	"time"

	"github.com/airenas/async-api/pkg/messages"
	aapi "github.com/credentio/bulkissue/internal/pkg/agent/api"
	"github.com/credentio/bulkissue/internal/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// Filer is minio mock
type Filer struct{ mock.Mock }

func (m *Filer) SaveFile(ctx context.Context, name string, r io.Reader, fileSize int64) error {
	args := m.Called(ctx, name, r, fileSize)
	return args.Error(0)
}

// LoadFile func mock
func (m *Filer) LoadFile(ctx context.Context, fileName string) (io.ReadSeekCloser, error) {
	args := m.Called(ctx, fileName)
	return To[io.ReadSeekCloser](args.Get(0)), args.Error(1)
}

// DB is postgres DB mock
type DB struct{ mock.Mock }

func (m *DB) InsertFileUpload(ctx context.Context, item *persistence.FileUpload) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *DB) LoadFileUpload(ctx context.Context, id string) (*persistence.FileUpload, error) {
	args := m.Called(ctx, id)
	return To[*persistence.FileUpload](args.Get(0)), args.Error(1)
}

func (m *DB) UpdateFileUploadStatus(ctx context.Context, id, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *DB) InsertFileData(ctx context.Context, item *persistence.FileData) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *DB) DeleteFileData(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *DB) MarkFileDataError(ctx context.Context, id, errStr, errDetail string) error {
	args := m.Called(ctx, id, errStr, errDetail)
	return args.Error(0)
}

func (m *DB) LoadErrorFileData(ctx context.Context, fileUploadID string) ([]*persistence.FileData, error) {
	args := m.Called(ctx, fileUploadID)
	return To[[]*persistence.FileData](args.Get(0)), args.Error(1)
}

func (m *DB) CountFileData(ctx context.Context, fileUploadID string) (int64, error) {
	args := m.Called(ctx, fileUploadID)
	return To[int64](args.Get(0)), args.Error(1)
}

func (m *DB) CountErrorFileData(ctx context.Context, fileUploadID string) (int64, error) {
	args := m.Called(ctx, fileUploadID)
	return To[int64](args.Get(0)), args.Error(1)
}

func (m *DB) InsertFileAudit(ctx context.Context, item *persistence.FileAudit) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *DB) LoadTemplate(ctx context.Context, id string) (*persistence.Template, error) {
	args := m.Called(ctx, id)
	return To[*persistence.Template](args.Get(0)), args.Error(1)
}

func (m *DB) LockEmailTable(ctx context.Context, id, key string) error {
	args := m.Called(ctx, id, key)
	return args.Error(0)
}

func (m *DB) UnLockEmailTable(ctx context.Context, id, key string, value *int) error {
	args := m.Called(ctx, id, key, value)
	return args.Error(0)
}

// Sender is postgres queue mock
type Sender struct{ mock.Mock }

func (m *Sender) SendMessage(ctx context.Context, msg messages.Message, queue string) error {
	args := m.Called(ctx, msg, queue)
	return args.Error(0)
}

// RunTracker is dispatch run counter mock
type RunTracker struct{ mock.Mock }

func (m *RunTracker) InsertRun(ctx context.Context, run *persistence.DispatchRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *RunTracker) MarkProcessed(ctx context.Context, jobID, rowID string, total int) (bool, error) {
	args := m.Called(ctx, jobID, rowID, total)
	return args.Bool(0), args.Error(1)
}

func (m *RunTracker) LoadStaleRuns(ctx context.Context, olderThan time.Duration) ([]*persistence.DispatchRun, error) {
	args := m.Called(ctx, olderThan)
	return To[[]*persistence.DispatchRun](args.Get(0)), args.Error(1)
}

func (m *RunTracker) DeleteRun(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

// Issuer is wallet agent client mock
type Issuer struct{ mock.Mock }

func (m *Issuer) IssueCredential(ctx context.Context, data *aapi.IssueData) error {
	args := m.Called(ctx, data)
	return args.Error(0)
}

// AgentProvider is agent registry mock
type AgentProvider struct{ mock.Mock }

func (m *AgentProvider) Get(srv string, allowNew bool) (aapi.Issuer, string, error) {
	args := m.Called(srv, allowNew)
	return To[aapi.Issuer](args.Get(0)), args.String(1), args.Error(2)
}

// TemplateProvider is template cache mock
type TemplateProvider struct{ mock.Mock }

func (m *TemplateProvider) Get(ctx context.Context, id string) (*persistence.Template, error) {
	args := m.Called(ctx, id)
	return To[*persistence.Template](args.Get(0)), args.Error(1)
}

// ReqCache is parsed upload cache mock
type ReqCache struct{ mock.Mock }

func (m *ReqCache) Save(ctx context.Context, id string, rows []map[string]string) error {
	args := m.Called(ctx, id, rows)
	return args.Error(0)
}

func (m *ReqCache) Load(ctx context.Context, id string) ([]map[string]string, error) {
	args := m.Called(ctx, id)
	return To[[]map[string]string](args.Get(0)), args.Error(1)
}

func (m *ReqCache) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// To casts a mock arg allowing nil value
func To[T interface{}](val interface{}) T {
	if val == nil {
		var res T
		return res
	}
	return val.(T)
}
