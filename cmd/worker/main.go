package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/credentio/bulkissue/internal/pkg/consul"
	"github.com/credentio/bulkissue/internal/pkg/postgres"
	"github.com/credentio/bulkissue/internal/pkg/reqcache"
	"github.com/credentio/bulkissue/internal/pkg/template"
	"github.com/credentio/bulkissue/internal/pkg/tracker"
	"github.com/credentio/bulkissue/internal/pkg/utils"
	"github.com/credentio/bulkissue/internal/pkg/worker"
	"github.com/hashicorp/consul/api"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/gommon/color"
	"github.com/vgarvardt/gue/v5"
	"github.com/vgarvardt/gue/v5/adapter/pgxv5"
)

func main() {
	goapp.StartWithDefault()
	cfg := goapp.Config

	data := &worker.ServiceData{}
	ctx := context.Background()

	dbConfig, err := pgxpool.ParseConfig(cfg.GetString("db.url"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}

	goapp.Log.Info().Int32("max_conn", dbConfig.MaxConns).Int32("min_conn", dbConfig.MinConns).Msg("db info")

	dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	defer dbPool.Close()

	data.GueClient, err = gue.NewClient(pgxv5.NewConnPool(dbPool))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init gue")
	}
	data.WorkerCount = defaultV(cfg.GetInt("worker.count"), 5)
	data.Testing = cfg.GetBool("worker.testing")
	data.MsgSender, err = postgres.NewSender(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init gue sender")
	}
	db, err := postgres.NewDB(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db")
	}

	data.DB = db

	if cfg.GetString("tracker.type") == "local" {
		goapp.Log.Warn().Msg("in memory run tracker, counters do not survive restarts")
		data.Tracker = tracker.New()
	} else {
		data.Tracker, err = postgres.NewRunTracker(dbPool)
		if err != nil {
			goapp.Log.Fatal().Err(err).Msg("can't init run tracker")
		}
	}

	data.Templates, err = template.NewProvider(db)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init template provider")
	}

	data.ReqCache, err = reqcache.NewCache(ctx, reqcache.Options{Bucket: cfg.GetString("reqCache.bucket"),
		URL: cfg.GetString("reqCache.url"), User: cfg.GetString("reqCache.user"), Key: cfg.GetString("reqCache.key"),
		Secure: cfg.GetBool("reqCache.https")})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init request cache")
	}

	consulCfg := api.DefaultConfig()
	if url := cfg.GetString("consul.url"); url != "" {
		consulCfg.Address = url
	}
	agents, err := consul.NewProvider(consulCfg, defaultV(cfg.GetString("consul.agentService"), "wallet-agent"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init agent provider")
	}
	data.Agents = agents

	printBanner()

	go utils.RunPerfEndpoint()

	ctx, cancelFunc := context.WithCancel(context.Background())
	registryCh, err := agents.StartRegistryLoop(ctx, defaultV(cfg.GetDuration("consul.checkInterval"), time.Second*30))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start agent registry loop")
	}
	doneCh, err := worker.StartWorkerService(ctx, data)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start worker service")
	}
	/////////////////////// Waiting for terminate
	waitCh := make(chan os.Signal, 2)
	signal.Notify(waitCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-waitCh:
		goapp.Log.Info().Msg("Got exit signal")
	case <-doneCh:
		goapp.Log.Info().Msg("Service exit")
	}
	cancelFunc()
	select {
	case <-doneCh:
		<-registryCh
		goapp.Log.Info().Msg("All code returned. Now exit. Bye")
	case <-time.After(time.Second * 15):
		goapp.Log.Warn().Msg("Timeout gracefull shutdown")
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

                      __
 _      ______  _____/ /_____  _____
| | /| / / __ \/ ___/ //_/ _ \/ ___/
| |/ |/ / /_/ / /  / ,< /  __/ /
|__/|__/\____/_/  /_/|_|\___/_/   v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/credentio/bulkissue"))
}
