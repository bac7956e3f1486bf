package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"tasktusk/internal/api"
	"tasktusk/internal/cachestore"
	"tasktusk/internal/config"
	"tasktusk/internal/offline"
	"tasktusk/internal/planner"
	"tasktusk/internal/tasks"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", getenvDefault("TASKTUSK_CONFIG", "tasktusk.yaml"), "path to tasktusk.yaml")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.Logging.Level, cfg.Logging.File); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	store, err := cachestore.Open(cfg.Cache.Dir)
	if err != nil {
		slog.Error("failed to open cache store", "dir", cfg.Cache.Dir, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	taskStore, err := tasks.Open(cfg.Tasks.DB)
	if err != nil {
		slog.Error("failed to open task store", "db", cfg.Tasks.DB, "error", err)
		os.Exit(1)
	}
	defer func() { _ = taskStore.Close() }()

	controller, err := offline.New(store, offline.Options{
		Origin:        cfg.Server.Origin,
		OriginHost:    cfg.OriginHost(),
		Generation:    cfg.Generation(),
		StaticAssets:  cfg.Cache.StaticAssets,
		LogStatsEvery: cfg.Logging.LogStatsEveryDur(),
	})
	if err != nil {
		slog.Error("failed to init offline controller", "error", err)
		os.Exit(1)
	}
	defer controller.Close()

	// Install/activate run in the background; serving never waits on a warm
	// cache.
	go func() {
		installCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		controller.Install(installCtx)
		controller.Activate()
	}()

	svc := planner.NewService(taskStore, controller)
	h := api.NewServer(svc, controller)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("tasktusk listening",
			"addr", addr,
			"origin", cfg.Server.Origin,
			"generation", cfg.Generation(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func setupLogger(level, filename string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}

func getenvDefault(name, def string) string {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return v
}
