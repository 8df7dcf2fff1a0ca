package main

import (
	"context"
	"time"

	"github.com/airenas/async-api/pkg/miniofs"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/credentio/bulkissue/internal/pkg/bulkissue"
	"github.com/credentio/bulkissue/internal/pkg/dispatch"
	"github.com/credentio/bulkissue/internal/pkg/postgres"
	"github.com/credentio/bulkissue/internal/pkg/reqcache"
	"github.com/credentio/bulkissue/internal/pkg/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/gommon/color"
)

func main() {
	goapp.StartWithDefault()

	printBanner()

	cfg := goapp.Config
	data := &bulkissue.Data{}
	data.Port = cfg.GetInt("port")
	var err error

	ctx := context.Background()

	dbConfig, err := pgxpool.ParseConfig(cfg.GetString("db.url"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	addDBLog(dbConfig)

	dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	defer dbPool.Close()

	db, err := postgres.NewDB(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db")
	}

	data.DB = db

	data.Saver, err = miniofs.NewFiler(ctx, miniofs.Options{Bucket: cfg.GetString("filer.bucket"),
		URL: cfg.GetString("filer.url"), User: cfg.GetString("filer.user"), Key: cfg.GetString("filer.key")})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init file saver")
	}

	data.ReqCache, err = reqcache.NewCache(ctx, reqcache.Options{Bucket: cfg.GetString("reqCache.bucket"),
		URL: cfg.GetString("reqCache.url"), User: cfg.GetString("reqCache.user"), Key: cfg.GetString("reqCache.key"),
		Secure: cfg.GetBool("reqCache.https")})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init request cache")
	}

	data.Store, err = store.NewService(db, defaultV(cfg.GetInt("store.batchSize"), 100),
		defaultV(cfg.GetInt64("store.concurrency"), 50))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init store")
	}

	sender, err := postgres.NewSender(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init gue sender")
	}

	runs, err := postgres.NewRunTracker(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init run tracker")
	}

	data.Dispatcher, err = dispatch.NewService(sender, db, runs, defaultV(cfg.GetInt("dispatch.batchSize"), 2000),
		defaultV(cfg.GetDuration("dispatch.batchDelay"), time.Minute),
		defaultV(cfg.GetInt64("dispatch.concurrency"), 1000))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init dispatcher")
	}

	err = bulkissue.StartWebServer(data)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}
}

func addDBLog(dbConfig *pgxpool.Config) {
	logFunc := goapp.Log.Info().Msg
	dbConfig.BeforeConnect = func(ctx context.Context, cc *pgx.ConnConfig) error {
		logFunc("before connect")
		return nil
	}
	dbConfig.AfterConnect = func(ctx context.Context, c *pgx.Conn) error {
		logFunc("after connect")
		return nil
	}
	dbConfig.BeforeAcquire = func(ctx context.Context, c *pgx.Conn) bool {
		logFunc("before acquire")
		return true
	}
	dbConfig.AfterRelease = func(c *pgx.Conn) bool {
		logFunc("after release")
		return true
	}
}

func defaultV[T comparable](v, d T) T {
	var zero T
	if v == zero {
		return d
	}
	return v
}

var (
	version = "DEV"
)

func printBanner() {
	banner := `
    __          ____   _
   / /_  __  __/ / /__(_)________ __  _____
  / __ \/ / / / / //_/ / ___/ ___/ / / / _ \
 / /_/ / /_/ / / ,< / (__  |__  ) /_/ /  __/
/_.___/\__,_/_/_/|_/_/____/____/\__,_/\___/

   ____ _____  (_)
  / __ ` + "`" + `/ __ \/ /
 / /_/ / /_/ / /
 \__,_/ .___/_/   v: %s
     /_/

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/credentio/bulkissue"))
}
