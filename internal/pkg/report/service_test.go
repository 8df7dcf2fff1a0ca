package report

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/credentio/bulkissue/internal/pkg/persistence"
	"github.com/credentio/bulkissue/internal/pkg/test"
	"github.com/credentio/bulkissue/internal/pkg/test/mocks"
	"github.com/credentio/bulkissue/internal/pkg/utils"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var (
	dbMock *mocks.DB
	tData  *Data
	tEcho  *echo.Echo
)

func initTest(t *testing.T) {
	dbMock = &mocks.DB{}
	tData = &Data{DB: dbMock}
	tEcho = initRoutes(tData)
	dbMock.On("LoadFileUpload", mock.Anything, "fu1").Return(&persistence.FileUpload{ID: "fu1",
		Status: "PARTIALLY_COMPLETED"}, nil)
	dbMock.On("LoadErrorFileData", mock.Anything, "fu1").Return([]*persistence.FileData{
		{ID: "r1", ReferenceID: "a@a.lt", Error: utils.ToSQLStr("rejected"),
			ErrorDetail: utils.ToSQLStr("no such schema"), Payload: map[string]string{"name": "olia"}},
	}, nil)
}

func TestWrongPath(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodGet, "/invalid", nil)
	test.Code(t, tEcho, req, http.StatusNotFound)
}

func TestWrongMethod(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodPost, "/report/fu1", nil)
	test.Code(t, tEcho, req, 405)
}

func Test_Report(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodGet, "/report/fu1", nil)
	resp := test.Code(t, tEcho, req, http.StatusOK)
	assert.Equal(t, "attachment; filename=fu1-errors.csv", resp.Header().Get("Content-Disposition"))
	assert.Equal(t, "referenceId,error,errorDetail,name\na@a.lt,rejected,no such schema,olia\n",
		test.RStr(t, resp.Body))
}

func Test_Report_Head(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodHead, "/report/fu1", nil)
	resp := test.Code(t, tEcho, req, http.StatusOK)
	assert.Equal(t, "", test.RStr(t, resp.Body))
}

func Test_Report_NotFound(t *testing.T) {
	initTest(t)
	dbMock.On("LoadFileUpload", mock.Anything, "fu2").Return(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/report/fu2", nil)
	test.Code(t, tEcho, req, http.StatusNotFound)
}

func Test_Report_DBFails(t *testing.T) {
	initTest(t)
	dbMock.On("LoadFileUpload", mock.Anything, "fu3").Return(nil, fmt.Errorf("olia err"))
	req := httptest.NewRequest(http.MethodGet, "/report/fu3", nil)
	test.Code(t, tEcho, req, http.StatusInternalServerError)
}

func Test_Live(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	test.Code(t, tEcho, req, http.StatusOK)
}
