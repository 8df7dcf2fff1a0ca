package main

import (
	"context"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/credentio/bulkissue/internal/pkg/postgres"
	"github.com/credentio/bulkissue/internal/pkg/report"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/gommon/color"
)

func main() {
	goapp.StartWithDefault()

	printBanner()

	cfg := goapp.Config
	data := &report.Data{}
	data.Port = cfg.GetInt("port")
	var err error

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

	data.DB, err = postgres.NewDB(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db")
	}

	err = report.StartWebServer(data)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
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

   ________  ____  ____  _____/ /_
   / ___/ _ \/ __ \/ __ \/ ___/ __/
  / /  /  __/ /_/ / /_/ / /  / /_
 /_/   \___/ .___/\____/_/   \__/   v: %s
          /_/

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/credentio/bulkissue"))
}
