package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/sitemonitor/internal/bootstrap"
	"github.com/hamed0406/sitemonitor/internal/config"
	"github.com/hamed0406/sitemonitor/internal/httpapi"
	"github.com/hamed0406/sitemonitor/internal/logging"
	"github.com/hamed0406/sitemonitor/internal/probe"
	"github.com/hamed0406/sitemonitor/internal/repo"
	"github.com/hamed0406/sitemonitor/internal/repo/rediscache"
	"github.com/hamed0406/sitemonitor/internal/scheduler"
	"github.com/hamed0406/sitemonitor/internal/uptime"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "monitor:", err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	loc, _ := cfg.Location()

	logger, err := logging.NewLogger(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Stdout: cfg.LogStdout})
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("store_open_error", zap.String("driver", cfg.StoreDriver), zap.Error(err))
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	if cfg.SitesFile != "" {
		sites, err := config.LoadSites(cfg.SitesFile)
		if err != nil {
			return err
		}
		n, err := bootstrap.Seed(ctx, store, sites, logger)
		if err != nil {
			return err
		}
		logger.Info("sites_seeded", zap.String("file", cfg.SitesFile), zap.Int("added", n))
	}

	var ledger repo.Ledger = store
	if cfg.RedisURL != "" {
		rdb, err := rediscache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			// the durable ledger is enough to run
			logger.Warn("redis_unavailable", zap.Error(err))
		} else {
			defer rdb.Close()
			ledger = rediscache.New(store, rdb, logger)
			logger.Info("redis_cache_enabled")
		}
	}

	sched := scheduler.New(logger, store, ledger, probe.NewHTTPChecker(cfg.CheckTimeout), scheduler.Options{
		RescanInterval: cfg.RescanInterval,
		CheckTimeout:   cfg.CheckTimeout,
		MaxConcurrent:  cfg.MaxConcurrent,
		Location:       loc,
	})
	reports := uptime.New(store, ledger, loc, logger)
	api := httpapi.NewServer(logger, reports, sched, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		PublicRPM:      cfg.PublicRPM,
		PublicBurst:    cfg.PublicBurst,
		DefaultDays:    cfg.WindowDays,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sched.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		sched.Stop()
		return nil
	})
	g.Go(func() error {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("monitor_stopped", zap.Error(err))
	return err
}
