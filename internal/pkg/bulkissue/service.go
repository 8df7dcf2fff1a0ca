package bulkissue

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/credentio/bulkissue/internal/pkg/api"
	"github.com/credentio/bulkissue/internal/pkg/dispatch"
	"github.com/credentio/bulkissue/internal/pkg/persistence"
	"github.com/credentio/bulkissue/internal/pkg/status"
	"github.com/credentio/bulkissue/internal/pkg/store"
	"github.com/credentio/bulkissue/internal/pkg/utils"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// FileSaver provides save file functionality for raw uploads
type FileSaver interface {
	SaveFile(ctx context.Context, name string, r io.Reader, fileSize int64) error
}

// DB provides submission persistence
type DB interface {
	InsertFileUpload(ctx context.Context, item *persistence.FileUpload) error
	LoadFileUpload(ctx context.Context, id string) (*persistence.FileUpload, error)
	UpdateFileUploadStatus(ctx context.Context, id, status string) error
	LoadErrorFileData(ctx context.Context, fileUploadID string) ([]*persistence.FileData, error)
}

// ReqCache keeps parsed rows between the upload and issue calls
type ReqCache interface {
	Save(ctx context.Context, id string, rows []map[string]string) error
	Load(ctx context.Context, id string) ([]map[string]string, error)
}

// Store persists rows before dispatch
type Store interface {
	Store(ctx context.Context, rows []map[string]string, meta store.Meta) ([]*persistence.FileData, error)
}

// Dispatcher fans rows out to the issue queue
type Dispatcher interface {
	Dispatch(ctx context.Context, rows []*persistence.FileData, opts dispatch.Opts)
}

// Data keeps data required for service work
type Data struct {
	Port       int
	Saver      FileSaver
	DB         DB
	ReqCache   ReqCache
	Store      Store
	Dispatcher Dispatcher
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) error {
	goapp.Log.Info().Msgf("Starting HTTP bulk issuance service at %d", data.Port)
	if err := validate(data); err != nil {
		return err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 180 * time.Second
	e.Server.WriteTimeout = 30 * time.Second

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	return gracehttp.Serve(e.Server)
}

func validate(data *Data) error {
	if data.Saver == nil {
		return errors.New("no file saver")
	}
	if data.DB == nil {
		return fmt.Errorf("no DB")
	}
	if data.ReqCache == nil {
		return fmt.Errorf("no request cache")
	}
	if data.Store == nil {
		return fmt.Errorf("no store")
	}
	if data.Dispatcher == nil {
		return fmt.Errorf("no dispatcher")
	}
	return nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("bulkissue", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	promMdlw.Use(e)

	e.POST("/upload", upload(data))
	e.POST("/issue", issue(data))
	e.POST("/retry/:id", retry(data))
	e.GET("/live", live(data))

	goapp.Log.Info().Msg("Routes:")
	for _, r := range e.Routes() {
		goapp.Log.Info().Msgf("  %s %s", r.Method, r.Path)
	}
	return e
}

func live(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`{"service":"OK"}`))
	}
}

type uploadResult struct {
	RequestID string `json:"requestId"`
	Rows      int    `json:"rows"`
}

type result struct {
	ID   string `json:"id"`
	Rows int    `json:"rows"`
}

func upload(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("upload method")()
		ctx := c.Request().Context()

		fHeader, err := c.FormFile(api.PrmFile)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "no file")
		}
		file, err := fHeader.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "can't open file")
		}
		defer file.Close()

		rows, err := parseCSV(file)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if len(rows) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "empty file")
		}

		reqID := uuid.NewString()
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		if err := data.Saver.SaveFile(ctx, reqID+".csv", file, fHeader.Size); err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		if err := data.ReqCache.Save(ctx, reqID, rows); err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, uploadResult{RequestID: reqID, Rows: len(rows)})
	}
}

func issue(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("issue method")()
		ctx := c.Request().Context()

		reqID := c.Request().Header.Get(api.HdrRequestID)
		if reqID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "no "+api.HdrRequestID+" header")
		}
		rows, err := data.ReqCache.Load(ctx, reqID)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusBadRequest, "no data for request")
		}
		if len(rows) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "no data for request")
		}

		credType, err := validateCredType(c.FormValue(api.PrmCredentialType))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}

		fu := &persistence.FileUpload{
			ID:             uuid.NewString(),
			OrgID:          c.Request().Header.Get(api.HdrOrgID),
			UploaderID:     c.Request().Header.Get(api.HdrUploaderID),
			Email:          utils.ToSQLStr(c.FormValue(api.PrmEmail)),
			CredentialType: credType,
			TemplateID:     utils.ToSQLStr(c.FormValue(api.PrmTemplateID)),
			Status:         status.Started.String(),
			RequestID:      utils.ToSQLStr(reqID),
			Created:        time.Now(),
			Updated:        time.Now(),
		}
		if err := data.DB.InsertFileUpload(ctx, fu); err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}

		items, err := data.Store.Store(ctx, rows, store.Meta{FileUploadID: fu.ID,
			SchemaID: c.FormValue(api.PrmSchemaID), CredDefID: c.FormValue(api.PrmCredDefID)})
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			if errU := data.DB.UpdateFileUploadStatus(ctx, fu.ID, status.Interrupted.String()); errU != nil {
				goapp.Log.Error().Err(errU).Send()
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "can't store rows")
		}

		opts := dispatch.Opts{FileUploadID: fu.ID, OrgID: fu.OrgID,
			ClientID:   c.FormValue(api.PrmClientID),
			TemplateID: utils.FromSQLStr(fu.TemplateID)}
		go data.Dispatcher.Dispatch(context.Background(), items, opts)

		return c.JSON(http.StatusOK, result{ID: fu.ID, Rows: len(items)})
	}
}

func retry(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("retry method")()
		ctx := c.Request().Context()
		id := c.Param("id")
		if id == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "No ID")
		}
		fu, err := data.DB.LoadFileUpload(ctx, id)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		if fu == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "no submission by ID")
		}
		rows, err := data.DB.LoadErrorFileData(ctx, id)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		if len(rows) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "nothing to retry")
		}

		opts := dispatch.Opts{FileUploadID: fu.ID, OrgID: fu.OrgID, IsRetry: true,
			ClientID:   c.FormValue(api.PrmClientID),
			TemplateID: utils.FromSQLStr(fu.TemplateID)}
		go data.Dispatcher.Dispatch(context.Background(), rows, opts)

		return c.JSON(http.StatusOK, result{ID: fu.ID, Rows: len(rows)})
	}
}

func validateCredType(v string) (string, error) {
	if v == "" {
		return api.CredTypeDefault, nil
	}
	if v != api.CredTypeIndy && v != api.CredTypeJSONLD {
		return "", errors.Errorf("unknown credentialType '%s'", v)
	}
	return v, nil
}

func parseCSV(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "can't read header")
	}
	var res []map[string]string
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "can't read line %d", line)
		}
		row := map[string]string{}
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		res = append(res, row)
	}
	return res, nil
}
