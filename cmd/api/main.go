package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"clubhouse/api/internal/app"
	"clubhouse/api/internal/cache"
	"clubhouse/api/internal/config"
	"clubhouse/api/internal/logging"
	"clubhouse/api/internal/mcptools"
	"clubhouse/api/internal/media"
	"clubhouse/api/internal/revision"
	"clubhouse/api/internal/search"
	"clubhouse/api/internal/store"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger := logging.Must(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, store.MigrationSource(cfg.MigrationsDir)); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		logger.Fatal("failed to create repos dir", zap.Error(err))
	}

	profiles, err := config.NewProfileWatcher(cfg.RenderProfile, os.Getenv, logger)
	if err != nil {
		logger.Fatal("render profile failed to load", zap.String("path", cfg.RenderProfile), zap.Error(err))
	}
	profiles.OnChange(func(p config.Profile) {
		logger.Info("render profile reloaded", zap.String("fingerprint", p.Fingerprint))
	})
	if err := profiles.Start(ctx); err != nil {
		logger.Warn("render profile hot reload disabled", zap.Error(err))
	}

	deps := app.Dependencies{
		Store:     store.NewPostgresStore(db),
		Revisions: revision.New(cfg.ReposDir),
		Profiles:  profiles,
		Logger:    logger,
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts, logger)
	go searchService.ReindexAllFromPG(ctx)
	deps.Search = searchService

	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, rendering without cache", zap.Error(err))
		} else {
			defer redisCache.Close()
			deps.Cache = redisCache
		}
	}

	if strings.TrimSpace(cfg.MinIOEndpoint) != "" {
		mediaStore, err := media.New(media.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err == nil {
			bucketCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err = mediaStore.EnsureBucket(bucketCtx)
			cancel()
		}
		if err != nil {
			logger.Warn("media storage unavailable, uploads disabled", zap.Error(err))
		} else {
			deps.Media = mediaStore
		}
	}

	service := app.New(cfg, deps)
	mcpServer := mcptools.NewServer(service, version, logger)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin,
		app.WithMCP(mcptools.NewHTTPHandler(mcpServer, "/mcp")),
		app.WithGzipMinSize(cfg.GzipMinSize),
	)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("clubhouse api listening", zap.String("addr", cfg.Addr), zap.String("version", version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
