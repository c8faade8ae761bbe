package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"yacht-platform/api"
	"yacht-platform/config"
	"yacht-platform/services"
	"yacht-platform/storage"
	"yacht-platform/utils"
)

const (
	runLockTTL      = 10 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *utils.Logger
	store    *storage.SQLStore
	rdb      *redis.Client
	dedup    *services.Deduplicator
	runner   *services.Runner
	insights *services.InsightService
	cleaner  *services.Cleaner
}

func newApp(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*app, error) {
	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, err
	}
	if cfg.RulesPath != "" {
		logger.Info("Loaded rules from %s", cfg.RulesPath)
	}
	logger.Debug("Scoring %d premium brands; sailing hubs: %s",
		rules.Scoring.PremiumBrands.Len(), strings.Join(rules.Scoring.SailingHubs.Words(), ", "))

	retry := utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: 2 * time.Second, Logger: logger}
	var store *storage.SQLStore
	err = retry.Do(ctx, "open "+cfg.DBDriver+" database", func() error {
		var openErr error
		store, openErr = storage.Open(cfg.DBDriver, cfg.DSN())
		return openErr
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		dedup:    services.NewDeduplicator(rules.Matching, logger),
		insights: services.NewInsightService(logger),
		cleaner:  services.NewCleaner(logger),
	}

	var (
		locker  services.Locker
		reports services.ReportCache
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("Redis ping failed, using in-process run lock: %v", err)
			_ = rdb.Close()
		} else {
			a.rdb = rdb
			locker = services.NewRedisLocker(rdb, runLockTTL)
			reports = services.NewRedisReportCache(rdb)
		}
	}

	scorer := services.NewScorer(rules.Scoring, logger)
	a.runner = services.NewRunner(store, a.dedup, scorer, locker, reports, logger)
	return a, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Closing store: %v", err)
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

func (a *app) serve(ctx context.Context) error {
	router := gin.Default()
	h := api.NewHandler(a.runner, a.store, a.dedup, a.insights, a.logger)
	api.RegisterRoutes(router, h, api.RateLimit(a.cfg.RunRateLimitPerMin))

	srv := &http.Server{Addr: a.cfg.HTTPAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("Listening on %s", a.cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *app) dedupe(ctx context.Context) error {
	res, err := a.runner.RunDeduplication(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("Deduplication done: %d processed, %d duplicates marked", res.Processed, res.DuplicatesMarked)
	return nil
}

func (a *app) score(ctx context.Context) error {
	res, err := a.runner.RunScoring(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("Scoring done: %d of %d listings scored", res.Scored, res.Processed)
	return nil
}

func (a *app) run(ctx context.Context) error {
	report, err := a.runner.RunAll(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("Run %s finished in %v", report.ID, report.FinishedAt.Sub(report.StartedAt))

	active, err := a.store.ActiveListings(ctx)
	if err != nil {
		return err
	}
	a.insights.Print(os.Stdout, a.insights.Generate(active))
	return nil
}

func (a *app) seed(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: yacht-platform seed <file.csv>")
	}
	raw, err := storage.ReadRawCSV(args[0])
	if err != nil {
		return err
	}
	listings := a.cleaner.Clean(raw)
	if len(listings) == 0 {
		return fmt.Errorf("no usable listings in %s", args[0])
	}
	if err := a.store.Insert(ctx, listings); err != nil {
		return err
	}
	a.logger.Info("Imported %d listings from %s", len(listings), args[0])
	return nil
}

func (a *app) export(ctx context.Context) error {
	listings, err := a.store.ActiveListings(ctx)
	if err != nil {
		return err
	}
	w, err := storage.NewCSVWriter(a.cfg.CSVOutputPath)
	if err != nil {
		return err
	}
	if err := w.WriteListings(listings); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	a.logger.Info("Exported %d listings to %s", len(listings), a.cfg.CSVOutputPath)
	return nil
}

func (a *app) explain(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: yacht-platform explain <id1> <id2>")
	}
	var ids [2]int64
	for i, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid listing id %q", arg)
		}
		ids[i] = id
	}

	l1, err := a.store.Get(ctx, ids[0])
	if err != nil {
		return fmt.Errorf("listing %d: %w", ids[0], err)
	}
	l2, err := a.store.Get(ctx, ids[1])
	if err != nil {
		return fmt.Errorf("listing %d: %w", ids[1], err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(a.dedup.Explain(l1, l2))
}
