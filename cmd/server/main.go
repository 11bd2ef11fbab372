package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-inbox/internal/api"
	"github.com/lysyi3m/rss-inbox/internal/cache"
	"github.com/lysyi3m/rss-inbox/internal/cfg"
	"github.com/lysyi3m/rss-inbox/internal/database"
	"github.com/lysyi3m/rss-inbox/internal/feed"
	"github.com/lysyi3m/rss-inbox/internal/ingest"
	"github.com/lysyi3m/rss-inbox/internal/reader"
	"github.com/lysyi3m/rss-inbox/internal/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	setupLogging(appCfg.Debug)

	if err := run(appCfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting RSS Inbox server", "version", appCfg.Version, "db_driver", appCfg.DBDriver)

	db, err := openDatabase(appCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return err
	}
	slog.Info("Database migrated", "version", version, "dirty", dirty)

	store := database.NewStore(db)
	parser := feed.NewParser(&http.Client{}, appCfg.UserAgent, appCfg.FetchTimeout)
	orchestrator := ingest.NewOrchestrator(store, parser)
	readerService := reader.NewService(store, orchestrator.Fanout())

	registerSeeds(context.Background(), appCfg.FeedsFile, store, orchestrator)

	workers := appCfg.WorkerCount
	if appCfg.DBDriver == database.DriverSQLite {
		// SQLite runs on a single connection.
		workers = min(workers, 2)
	}

	slog.Info("Starting background scheduler", "workers", workers, "interval", appCfg.SchedulerInterval)
	scheduler := tasks.NewScheduler(store, orchestrator, appCfg.SchedulerInterval, workers)
	scheduler.Start()
	defer scheduler.Stop()

	var rssCache cache.CacheInterface
	if appCfg.RedisAddr != "" {
		redisCache, err := cache.NewCache(context.Background(), appCfg.RedisAddr, appCfg.RedisPassword)
		if err != nil {
			slog.Warn("RSS export cache disabled", "error", err)
		} else {
			defer redisCache.Close()
			rssCache = redisCache
		}
	}

	handler := api.NewHandler(store, orchestrator, readerService, scheduler, rssCache, appCfg.RSSCacheTTL, appCfg.Version)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: appCfg.FetchTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "auth", appCfg.APIAccessKey != "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	return runErr
}

func openDatabase(appCfg *cfg.Cfg) (*database.DB, error) {
	if appCfg.DBDriver == database.DriverPostgres {
		return database.NewConnection(appCfg.DBHost, appCfg.DBPort, appCfg.DBUser, appCfg.DBPassword, appCfg.DBName)
	}

	if dir := filepath.Dir(appCfg.SQLitePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return database.NewSQLiteConnection(appCfg.SQLitePath)
}

// registerSeeds makes sure every feed of the seed file exists and carries
// the seed's enabled flag. Unreachable feeds are logged and skipped.
func registerSeeds(ctx context.Context, path string, store database.Store, orchestrator *ingest.Orchestrator) {
	seeds, err := feed.LoadSeeds(path)
	if err != nil {
		slog.Error("Failed to load seed feeds", "path", path, "error", err)
		return
	}

	registered := 0
	for _, seed := range seeds {
		f, created, err := orchestrator.RegisterFeed(ctx, seed.URL)
		if err != nil {
			slog.Warn("Failed to register feed", "url", seed.URL, "error", err)
			continue
		}

		if f.Active != seed.IsEnabled() {
			if err := store.SetFeedActive(ctx, f.ID, seed.IsEnabled()); err != nil {
				slog.Warn("Failed to update feed state", "feed_id", f.ID, "error", err)
				continue
			}
		}

		slog.Debug("Seed feed ready", "feed_id", f.ID, "url", f.URL, "created", created, "active", seed.IsEnabled())
		registered++
	}

	if len(seeds) > 0 {
		slog.Info("Seed feeds registered", "registered", registered, "total", len(seeds))
	}
}
