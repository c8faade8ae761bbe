package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"yacht-platform/config"
	"yacht-platform/utils"
)

const usage = `yacht-platform: yacht listing deduplication and scoring

Usage:
  yacht-platform <command> [args]

Commands:
  serve                 Run the HTTP API
  dedupe                Flag duplicate listings
  score                 Score every active listing
  run                   Deduplicate, score, then print insights
  seed <file.csv>       Clean and import listings from a CSV file
  export                Write active listings to CSV_OUTPUT_PATH
  explain <id1> <id2>   Show how two listings compare

Environment:
  DB_DRIVER       sqlite (default) or postgres
  SQLITE_PATH     SQLite database file (default: ./yacht_platform.db)
  POSTGRES_*      Postgres connection settings
  REDIS_ADDR      Shares the run lock and last run report through Redis
  HTTP_ADDR       Listen address for serve (default: :8000)
  RULES_PATH      YAML file overriding the matching and scoring rules
  LOG_LEVEL       debug, info, warn or error (default: info)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}
	cmd, args := os.Args[1], os.Args[2:]

	switch cmd {
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	case "serve", "dedupe", "score", "run", "seed", "export", "explain":
	default:
		fmt.Fprintf(os.Stderr, "yacht-platform: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}

	logger := utils.NewLogger()
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Startup failed: %v", err)
		os.Exit(1)
	}

	switch cmd {
	case "serve":
		err = app.serve(ctx)
	case "dedupe":
		err = app.dedupe(ctx)
	case "score":
		err = app.score(ctx)
	case "run":
		err = app.run(ctx)
	case "seed":
		err = app.seed(ctx, args)
	case "export":
		err = app.export(ctx)
	case "explain":
		err = app.explain(ctx, args)
	}
	app.close()

	if err != nil {
		logger.Error("%s failed: %v", cmd, err)
		os.Exit(1)
	}
}
