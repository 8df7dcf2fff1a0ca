package main

import (
	"context"
	"time"

	aclean "github.com/airenas/async-api/pkg/clean"
	"github.com/airenas/async-api/pkg/miniofs"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/credentio/bulkissue/internal/pkg/clean"
	"github.com/credentio/bulkissue/internal/pkg/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/gommon/color"
)

func main() {
	goapp.StartWithDefault()
	cfg := goapp.Config

	data := &clean.Data{}
	data.Port = cfg.GetInt("port")

	ctx := context.Background()

	dbConfig, err := pgxpool.ParseConfig(cfg.GetString("db.url"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}

	dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	defer dbPool.Close()

	dbCleaner, err := postgres.NewCleaner(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db cleaner")
	}

	fsCleaner, err := miniofs.NewFiler(ctx, miniofs.Options{Bucket: cfg.GetString("filer.bucket"),
		URL: cfg.GetString("filer.url"), User: cfg.GetString("filer.user"), Key: cfg.GetString("filer.key"),
		Secure: cfg.GetBool("filer.https")})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init file cleaner")
	}

	cleaner := &aclean.CleanerGroup{}
	cleaner.Jobs = append(cleaner.Jobs, fsCleaner)
	cleaner.Jobs = append(cleaner.Jobs, dbCleaner)

	data.Cleaner = cleaner

	sData := &clean.SweeperData{}
	sData.Cleaner = cleaner
	sData.CleanSchedule = cfg.GetString("sweep.cleanSchedule")
	sData.ReconcileSchedule = cfg.GetString("sweep.reconcileSchedule")
	sData.StaleAfter = cfg.GetDuration("sweep.staleAfter")
	sData.IDsProvider, err = postgres.NewDBIdsProvider(dbPool, cfg.GetDuration("sweep.expire"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init IDs provider")
	}
	sData.Runs, err = postgres.NewRunTracker(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init run tracker")
	}
	sData.DB, err = postgres.NewDB(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db")
	}
	sData.MsgSender, err = postgres.NewSender(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init gue sender")
	}

	printBanner()

	goapp.Log.Info().Dur("duration", cfg.GetDuration("sweep.expire")).Msg("expire")

	ctxSweep, cancelFunc := context.WithCancel(ctx)
	doneCh, err := clean.StartSweeps(ctxSweep, sData)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start sweeps")
	}
	err = clean.StartWebServer(data)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}
	cancelFunc()
	select {
	case <-doneCh:
		goapp.Log.Info().Msg("All code returned. Now exit. Bye")
	case <-time.After(time.Second * 15):
		goapp.Log.Warn().Msg("Timeout gracefull shutdown")
	}
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

        __
  _____/ /__  ____ _____
 / ___/ / _ \/ __ ` + "`" + `/ __ \
/ /__/ /  __/ /_/ / / / /
\___/_/\___/\__,_/_/ /_/   v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/credentio/bulkissue"))
}
