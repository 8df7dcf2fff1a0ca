package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/pkg/errors"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/credentio/bulkissue/internal/pkg/persistence"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// DB loads errored rows of a submission
type DB interface {
	LoadFileUpload(ctx context.Context, id string) (*persistence.FileUpload, error)
	LoadErrorFileData(ctx context.Context, fileUploadID string) ([]*persistence.FileData, error)
}

// Data keeps data required for service work
type Data struct {
	Port int
	DB   DB
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) error {
	goapp.Log.Info().Int("port", data.Port).Msg("Starting bulk issuance report service")

	if err := validate(data); err != nil {
		return err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 5 * time.Minute

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	return gracehttp.Serve(e.Server)
}

func validate(data *Data) error {
	if data.DB == nil {
		return errors.New("no DB")
	}
	return nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("bulkissue_report", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	promMdlw.Use(e)

	e.GET("/report/:id", download(data))
	e.HEAD("/report/:id", download(data))
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

func download(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("download method")()

		id := c.Param("id")
		if id == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "No ID")
		}
		ctx := c.Request().Context()
		fu, err := data.DB.LoadFileUpload(ctx, id)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError, "Can't load submission")
		}
		if fu == nil {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		rows, err := data.DB.LoadErrorFileData(ctx, id)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError, "Can't load rows")
		}

		w := c.Response()
		w.Header().Set(echo.HeaderContentType, "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s-errors.csv", id))
		w.WriteHeader(http.StatusOK)
		if c.Request().Method == http.MethodHead {
			return nil
		}
		return writeCSV(w, rows)
	}
}

func writeCSV(w http.ResponseWriter, rows []*persistence.FileData) error {
	cw := csv.NewWriter(w)
	header := []string{"referenceId", "error", "errorDetail"}
	payloadKeys := collectKeys(rows)
	header = append(header, payloadKeys...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("can't write csv: %w", err)
	}
	for _, r := range rows {
		rec := []string{r.ReferenceID, r.Error.String, r.ErrorDetail.String}
		for _, k := range payloadKeys {
			rec = append(rec, r.Payload[k])
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("can't write csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func collectKeys(rows []*persistence.FileData) []string {
	km := map[string]struct{}{}
	for _, r := range rows {
		for k := range r.Payload {
			km[k] = struct{}{}
		}
	}
	res := make([]string, 0, len(km))
	for k := range km {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}
