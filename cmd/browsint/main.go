// Package main wires together the profiling service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/browsint/browsint/internal/api"
	"github.com/browsint/browsint/internal/config"
	"github.com/browsint/browsint/internal/fetch"
	"github.com/browsint/browsint/internal/logging"
	"github.com/browsint/browsint/internal/metrics"
	"github.com/browsint/browsint/internal/profile"
	"github.com/browsint/browsint/internal/robots"
	"github.com/browsint/browsint/internal/sources"
	"github.com/browsint/browsint/internal/store"
	"github.com/browsint/browsint/internal/webtech"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(store.Config{
		Dir:       cfg.Store.Dir,
		BackupDir: cfg.Store.BackupDir,
		CacheSize: cfg.Store.CacheSize,
	}, logger.Named("store"))
	if err != nil {
		logger.Fatal("open stores failed", zap.Error(err))
	}
	defer st.Close()

	fetcher, err := fetch.New(fetch.Config{
		UserAgent: cfg.Fetch.UserAgent,
		CacheDir:  cfg.Fetch.CacheDir,
		DelayMin:  time.Duration(cfg.Fetch.DelayMinSeconds * float64(time.Second)),
		DelayMax:  time.Duration(cfg.Fetch.DelayMaxSeconds * float64(time.Second)),
		Timeout:   cfg.Fetch.Timeout(),
		Retries:   cfg.Fetch.Retries,
	}, logger.Named("fetch"))
	if err != nil {
		logger.Fatal("fetcher init failed", zap.Error(err))
	}

	robotsAnalyzer := robots.NewAnalyzer(fetcher, logger.Named("robots"))

	srcClient := sources.NewClient(
		sources.Config{
			HTTPTimeout:    cfg.Sources.HTTPTimeout(),
			ShodanBaseURL:  cfg.Sources.ShodanBaseURL,
			HunterBaseURL:  cfg.Sources.HunterBaseURL,
			HIBPBaseURL:    cfg.Sources.HIBPBaseURL,
			WaybackBaseURL: cfg.Sources.WaybackBaseURL,
			UserAgent:      cfg.Fetch.UserAgent,
		},
		sources.Credentials{
			sources.ServiceShodan: cfg.Sources.ShodanAPIKey,
			sources.ServiceHunter: cfg.Sources.HunterAPIKey,
			sources.ServiceHIBP:   cfg.Sources.HIBPAPIKey,
		},
		sources.StaticPolicy(cfg.Sources.AllowExpensiveScans),
		fetcher,
		robotsAnalyzer,
		logger.Named("sources"),
	)

	profiles := profile.NewService(st, srcClient, logger.Named("profile"))
	analyzer := webtech.NewAnalyzer(fetcher, robotsAnalyzer, st, logger.Named("webtech"))

	apiServer := api.NewServer(profiles, analyzer, st, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
