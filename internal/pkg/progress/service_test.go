package progress

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/credentio/bulkissue/internal/pkg/persistence"
	"github.com/credentio/bulkissue/internal/pkg/test"
	"github.com/credentio/bulkissue/internal/pkg/test/mocks"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var (
	dbMock  *mocks.DB
	wsMock  *mockWSConnHandler
	tData   *Data
	tEcho   *echo.Echo
)

func initTest(t *testing.T) {
	dbMock = &mocks.DB{}
	wsMock = &mockWSConnHandler{}
	tData = &Data{DB: dbMock, WSHandler: wsMock}
	tEcho = initRoutes(tData)
	dbMock.On("LoadFileUpload", mock.Anything, "fu1").Return(&persistence.FileUpload{ID: "fu1",
		Status: "PARTIALLY_COMPLETED"}, nil)
	dbMock.On("CountFileData", mock.Anything, "fu1").Return(int64(3), nil)
	dbMock.On("CountErrorFileData", mock.Anything, "fu1").Return(int64(1), nil)
}

func TestWrongPath(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodGet, "/invalid", nil)
	test.Code(t, tEcho, req, http.StatusNotFound)
}

func Test_Live(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	test.Code(t, tEcho, req, http.StatusOK)
}

func Test_Status(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodGet, "/status/fu1", nil)
	resp := test.Code(t, tEcho, req, http.StatusOK)
	res := test.Decode[statusResult](t, resp.Result())
	assert.Equal(t, "fu1", res.ID)
	assert.Equal(t, "PARTIALLY_COMPLETED", res.Status)
	assert.Equal(t, int64(2), res.RemainingRows)
	assert.Equal(t, int64(1), res.ErrorRows)
}

func Test_Status_NotFound(t *testing.T) {
	initTest(t)
	dbMock.On("LoadFileUpload", mock.Anything, "fu2").Return(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/status/fu2", nil)
	resp := test.Code(t, tEcho, req, http.StatusOK)
	res := test.Decode[statusResult](t, resp.Result())
	assert.Equal(t, "NOT_FOUND", res.Status)
}

func Test_Status_DBFails(t *testing.T) {
	initTest(t)
	dbMock.On("LoadFileUpload", mock.Anything, "fu3").Return(nil, fmt.Errorf("olia err"))
	req := httptest.NewRequest(http.MethodGet, "/status/fu3", nil)
	test.Code(t, tEcho, req, http.StatusInternalServerError)
}

func Test_validate(t *testing.T) {
	initTest(t)
	assert.Nil(t, validate(tData))
	tData.DB = nil
	assert.NotNil(t, validate(tData))
	initTest(t)
	tData.WSHandler = nil
	assert.NotNil(t, validate(tData))
}

type mockWSConnHandler struct{ mock.Mock }

func (m *mockWSConnHandler) HandleConnection(wc WsConn) error {
	args := m.Called(wc)
	return args.Error(0)
}

func (m *mockWSConnHandler) GetConnections(id string) ([]WsConn, bool) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).([]WsConn), args.Bool(1)
}
