package worker

import (
	"fmt"
	"testing"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/credentio/bulkissue/internal/pkg/api"
	"github.com/credentio/bulkissue/internal/pkg/messages"
	"github.com/credentio/bulkissue/internal/pkg/persistence"
	"github.com/credentio/bulkissue/internal/pkg/test"
	"github.com/credentio/bulkissue/internal/pkg/test/mocks"
	"github.com/credentio/bulkissue/internal/pkg/tracker"
	"github.com/credentio/bulkissue/internal/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vgarvardt/gue/v5"

	aapi "github.com/credentio/bulkissue/internal/pkg/agent/api"
)

var (
	dbMock       *mocks.DB
	senderMock   *mocks.Sender
	issuerMock   *mocks.Issuer
	agentsMock   *mocks.AgentProvider
	templateMock *mocks.TemplateProvider
	reqCacheMock *mocks.ReqCache
	srvData      *ServiceData
)

func initTest(t *testing.T) {
	dbMock = &mocks.DB{}
	senderMock = &mocks.Sender{}
	issuerMock = &mocks.Issuer{}
	agentsMock = &mocks.AgentProvider{}
	templateMock = &mocks.TemplateProvider{}
	reqCacheMock = &mocks.ReqCache{}
	srvData = &ServiceData{DB: dbMock, GueClient: &gue.Client{}, WorkerCount: 10, MsgSender: senderMock,
		Tracker: tracker.New(), Agents: agentsMock, Templates: templateMock, ReqCache: reqCacheMock}
	dbMock.On("LoadFileUpload", mock.Anything, mock.Anything).Return(&persistence.FileUpload{ID: "fu1",
		OrgID: "org", CredentialType: api.CredTypeJSONLD, RequestID: utils.ToSQLStr("req1")}, nil)
	dbMock.On("DeleteFileData", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("MarkFileDataError", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	dbMock.On("InsertFileAudit", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("CountErrorFileData", mock.Anything, mock.Anything).Return(int64(0), nil)
	dbMock.On("UpdateFileUploadStatus", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	senderMock.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	issuerMock.On("IssueCredential", mock.Anything, mock.Anything).Return(nil)
	agentsMock.On("Get", mock.Anything, mock.Anything).Return(issuerMock, "http://agent:8080", nil)
	templateMock.On("Get", mock.Anything, mock.Anything).Return(&persistence.Template{ID: "t1", Name: "diploma",
		SchemaID: "sch-t", CredDefID: "cd-t", Logo: utils.ToSQLStr("logo-t"),
		Attributes: []string{"name", "date"}}, nil)
	reqCacheMock.On("Delete", mock.Anything, mock.Anything).Return(nil)
}

func newTestMsg(rowID string, total int) *messages.IssueMessage {
	return &messages.IssueMessage{QueueMessage: amessages.QueueMessage{ID: rowID}, JobID: "job1",
		FileUploadID: "fu1", TotalJobs: total, ClientID: "cl",
		ReferenceID: "a@a.lt", Payload: map[string]string{"name": "olia", "date": "2026"}}
}

func Test_handleIssue(t *testing.T) {
	initTest(t)
	err := handleIssue(test.Ctx(t), newTestMsg("r1", 2), srvData)
	assert.Nil(t, err)
	dbMock.AssertNumberOfCalls(t, "DeleteFileData", 1)
	dbMock.AssertNumberOfCalls(t, "MarkFileDataError", 0)
	dbMock.AssertNumberOfCalls(t, "InsertFileAudit", 1)
	dbMock.AssertNumberOfCalls(t, "UpdateFileUploadStatus", 0)
	senderMock.AssertNumberOfCalls(t, "SendMessage", 0)
}

func Test_handleIssue_Last(t *testing.T) {
	initTest(t)
	err := handleIssue(test.Ctx(t), newTestMsg("r1", 1), srvData)
	assert.Nil(t, err)
	dbMock.AssertNumberOfCalls(t, "UpdateFileUploadStatus", 1)
	assert.Equal(t, "COMPLETED", dbMock.Calls[len(dbMock.Calls)-1].Arguments[2])
	require.Equal(t, 2, len(senderMock.Calls))
	msg := mocks.To[*messages.ProgressMessage](senderMock.Calls[0].Arguments[1])
	assert.Equal(t, "bulk-issuance-process-completed", msg.Event)
	assert.Equal(t, "cl", msg.ClientID)
	assert.Equal(t, messages.Progress, senderMock.Calls[0].Arguments[2])
	assert.Equal(t, messages.Inform, senderMock.Calls[1].Arguments[2])
	reqCacheMock.AssertNumberOfCalls(t, "Delete", 1)
	assert.Equal(t, "req1", reqCacheMock.Calls[0].Arguments[1])
}

func Test_handleIssue_LastWithErrors(t *testing.T) {
	initTest(t)
	dbMock.ExpectedCalls = nil
	dbMock.On("LoadFileUpload", mock.Anything, mock.Anything).Return(&persistence.FileUpload{ID: "fu1",
		CredentialType: api.CredTypeJSONLD}, nil)
	dbMock.On("DeleteFileData", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("InsertFileAudit", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("CountErrorFileData", mock.Anything, mock.Anything).Return(int64(2), nil)
	dbMock.On("UpdateFileUploadStatus", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	err := handleIssue(test.Ctx(t), newTestMsg("r1", 1), srvData)
	assert.Nil(t, err)
	assert.Equal(t, "PARTIALLY_COMPLETED", dbMock.Calls[len(dbMock.Calls)-1].Arguments[2])
}

func Test_handleIssue_RowFails(t *testing.T) {
	initTest(t)
	issuerMock.ExpectedCalls = nil
	issuerMock.On("IssueCredential", mock.Anything, mock.Anything).
		Return(utils.NewErrIssuance(fmt.Errorf("rejected"), "no such schema"))
	err := handleIssue(test.Ctx(t), newTestMsg("r1", 2), srvData)
	assert.Nil(t, err)
	dbMock.AssertNumberOfCalls(t, "DeleteFileData", 0)
	dbMock.AssertNumberOfCalls(t, "MarkFileDataError", 1)
	assert.Equal(t, "no such schema", dbMock.Calls[1].Arguments[3])
	dbMock.AssertNumberOfCalls(t, "InsertFileAudit", 1)
	audit := mocks.To[*persistence.FileAudit](dbMock.Calls[2].Arguments[1])
	assert.True(t, audit.IsError)
	assert.Equal(t, "no such schema", audit.ErrorDetail.String)
}

func Test_handleIssue_TransientFail(t *testing.T) {
	initTest(t)
	issuerMock.ExpectedCalls = nil
	issuerMock.On("IssueCredential", mock.Anything, mock.Anything).Return(fmt.Errorf("connection refused"))
	err := handleIssue(test.Ctx(t), newTestMsg("r1", 2), srvData)
	assert.NotNil(t, err)
	dbMock.AssertNumberOfCalls(t, "DeleteFileData", 0)
	dbMock.AssertNumberOfCalls(t, "MarkFileDataError", 0)
	dbMock.AssertNumberOfCalls(t, "InsertFileAudit", 0)
}

func Test_handleIssue_NoAgent(t *testing.T) {
	initTest(t)
	agentsMock.ExpectedCalls = nil
	agentsMock.On("Get", mock.Anything, mock.Anything).Return(nil, "", nil)
	err := handleIssue(test.Ctx(t), newTestMsg("r1", 2), srvData)
	assert.NotNil(t, err)
}

func Test_handleIssue_SubmissionGone(t *testing.T) {
	initTest(t)
	dbMock.ExpectedCalls = nil
	dbMock.On("LoadFileUpload", mock.Anything, mock.Anything).Return(nil, nil)
	err := handleIssue(test.Ctx(t), newTestMsg("r1", 2), srvData)
	assert.Nil(t, err)
	issuerMock.AssertNumberOfCalls(t, "IssueCredential", 0)
}

func Test_handleIssue_Duplicate(t *testing.T) {
	initTest(t)
	err := handleIssue(test.Ctx(t), newTestMsg("r1", 2), srvData)
	require.Nil(t, err)
	err = handleIssue(test.Ctx(t), newTestMsg("r1", 2), srvData)
	require.Nil(t, err)
	// second delivery of the same row must not finish the run
	dbMock.AssertNumberOfCalls(t, "UpdateFileUploadStatus", 0)
}

func Test_handleIssue_Retry(t *testing.T) {
	initTest(t)
	msg := newTestMsg("r1", 1)
	msg.IsRetry = true
	err := handleIssue(test.Ctx(t), msg, srvData)
	assert.Nil(t, err)
	require.Equal(t, 1, len(senderMock.Calls))
	pMsg := mocks.To[*messages.ProgressMessage](senderMock.Calls[0].Arguments[1])
	assert.Equal(t, "bulk-issuance-process-retry-completed", pMsg.Event)
	reqCacheMock.AssertNumberOfCalls(t, "Delete", 0)
}

func Test_handleIssue_FinalizeFails(t *testing.T) {
	initTest(t)
	dbMock.ExpectedCalls = nil
	dbMock.On("LoadFileUpload", mock.Anything, mock.Anything).Return(&persistence.FileUpload{ID: "fu1",
		CredentialType: api.CredTypeJSONLD}, nil)
	dbMock.On("DeleteFileData", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("InsertFileAudit", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("CountErrorFileData", mock.Anything, mock.Anything).Return(int64(0), fmt.Errorf("olia err"))
	err := handleIssue(test.Ctx(t), newTestMsg("r1", 1), srvData)
	assert.NotNil(t, err)
	require.Equal(t, 1, len(senderMock.Calls))
	pMsg := mocks.To[*messages.ProgressMessage](senderMock.Calls[0].Arguments[1])
	assert.Equal(t, "error-in-bulk-issuance-process", pMsg.Event)
}

func Test_makeIssueData_Indy(t *testing.T) {
	initTest(t)
	fu := &persistence.FileUpload{ID: "fu1", OrgID: "org", CredentialType: api.CredTypeIndy,
		TemplateID: utils.ToSQLStr("t1")}
	msg := newTestMsg("r1", 1)
	res, err := makeIssueData(test.Ctx(t), msg, fu, srvData)
	require.Nil(t, err)
	assert.Equal(t, "diploma", res.Template)
	assert.Equal(t, "sch-t", res.SchemaID)
	assert.Equal(t, "cd-t", res.CredDefID)
	assert.Equal(t, "logo-t", res.Logo)
	assert.Equal(t, []aapi.Attribute{{Name: "name", Value: "olia"}, {Name: "date", Value: "2026"}}, res.Attributes)
}

func Test_makeIssueData_IndyMessageValuesWin(t *testing.T) {
	initTest(t)
	fu := &persistence.FileUpload{ID: "fu1", CredentialType: api.CredTypeIndy, TemplateID: utils.ToSQLStr("t1")}
	msg := newTestMsg("r1", 1)
	msg.SchemaID, msg.CredDefID, msg.Logo = "sch-m", "cd-m", "logo-m"
	res, err := makeIssueData(test.Ctx(t), msg, fu, srvData)
	require.Nil(t, err)
	assert.Equal(t, "sch-m", res.SchemaID)
	assert.Equal(t, "cd-m", res.CredDefID)
	assert.Equal(t, "logo-m", res.Logo)
}

func Test_makeIssueData_JSONLD(t *testing.T) {
	initTest(t)
	fu := &persistence.FileUpload{ID: "fu1", CredentialType: api.CredTypeJSONLD}
	res, err := makeIssueData(test.Ctx(t), newTestMsg("r1", 1), fu, srvData)
	require.Nil(t, err)
	assert.Equal(t, []aapi.Attribute{{Name: "date", Value: "2026"}, {Name: "name", Value: "olia"}}, res.Attributes)
	templateMock.AssertNumberOfCalls(t, "Get", 0)
}

func Test_handleIssue_FiveRows(t *testing.T) {
	initTest(t)
	issuerMock.ExpectedCalls = nil
	issuerMock.On("IssueCredential", mock.Anything, mock.MatchedBy(func(d *aapi.IssueData) bool {
		return d.ReferenceID == "a3@a.lt"
	})).Return(utils.NewErrIssuance(fmt.Errorf("rejected"), "bad row"))
	issuerMock.On("IssueCredential", mock.Anything, mock.Anything).Return(nil)
	dbMock.ExpectedCalls = nil
	dbMock.On("LoadFileUpload", mock.Anything, mock.Anything).Return(&persistence.FileUpload{ID: "fu1",
		CredentialType: api.CredTypeJSONLD}, nil)
	dbMock.On("DeleteFileData", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("MarkFileDataError", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	dbMock.On("InsertFileAudit", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("CountErrorFileData", mock.Anything, mock.Anything).Return(int64(1), nil)
	dbMock.On("UpdateFileUploadStatus", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	for i := 1; i <= 5; i++ {
		msg := newTestMsg(fmt.Sprintf("r%d", i), 5)
		msg.ReferenceID = fmt.Sprintf("a%d@a.lt", i)
		require.Nil(t, handleIssue(test.Ctx(t), msg, srvData))
	}
	dbMock.AssertNumberOfCalls(t, "DeleteFileData", 4)
	dbMock.AssertNumberOfCalls(t, "MarkFileDataError", 1)
	dbMock.AssertNumberOfCalls(t, "UpdateFileUploadStatus", 1)
	assert.Equal(t, "PARTIALLY_COMPLETED", dbMock.Calls[len(dbMock.Calls)-1].Arguments[2])
	progressSent := 0
	for _, c := range senderMock.Calls {
		if c.Arguments[2] == messages.Progress {
			progressSent++
		}
	}
	assert.Equal(t, 1, progressSent)
}

func TestStartWorkerService_Fail(t *testing.T) {
	initTest(t)
	srvData.GueClient = nil
	_, err := StartWorkerService(test.Ctx(t), srvData)
	assert.NotNil(t, err)
	initTest(t)
	srvData.DB = nil
	_, err = StartWorkerService(test.Ctx(t), srvData)
	assert.NotNil(t, err)
	initTest(t)
	srvData.Tracker = nil
	_, err = StartWorkerService(test.Ctx(t), srvData)
	assert.NotNil(t, err)
}
