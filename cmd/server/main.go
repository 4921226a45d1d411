// Package main is the entrypoint for the Slidecast API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/weihanchu/slidecast/internal/ai"
	"github.com/weihanchu/slidecast/internal/api"
	"github.com/weihanchu/slidecast/internal/api/handler"
	mw "github.com/weihanchu/slidecast/internal/api/middleware"
	"github.com/weihanchu/slidecast/internal/cache"
	"github.com/weihanchu/slidecast/internal/config"
	"github.com/weihanchu/slidecast/internal/generate"
	"github.com/weihanchu/slidecast/internal/jobs"
	"github.com/weihanchu/slidecast/internal/pdfsplit"
	"github.com/weihanchu/slidecast/internal/storage"
	"github.com/weihanchu/slidecast/internal/store"
	"github.com/weihanchu/slidecast/internal/tts"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"ai_provider", cfg.AI.Provider,
		"tts_provider", cfg.TTS.Provider,
		"env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create providers
	scriptProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create script provider: %w", err)
	}
	slog.Info("script provider initialized", "provider", scriptProvider.Name())

	synth, err := tts.NewSynthesizer(cfg.TTS, slog.Default())
	if err != nil {
		return fmt.Errorf("create speech synthesizer: %w", err)
	}
	slog.Info("speech synthesizer initialized", "provider", synth.Name())

	// 6. Create services
	paths := storage.NewPaths(cfg.Storage.DataDir)
	if err := paths.EnsureDir(cfg.Storage.DataDir); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pgStore := store.NewPostgresStore(pool)
	jobService := jobs.NewService(pgStore, redisCache)
	splitter := pdfsplit.NewPopplerSplitter(cfg.Storage.SplitDPI)
	genService := generate.NewService(pgStore, jobService, scriptProvider,
		synth, splitter, paths, cfg.AI.InferenceTimeout)

	// 7. Build router with dependencies
	deps := api.Dependencies{
		RateLimit: mw.NewRateLimit(redisCache, 120),

		HealthHandler: handler.NewHealthHandler(pgStore, redisCache),

		CreateProject: handler.NewCreateProjectHandler(pgStore),
		ListProjects:  handler.NewListProjectsHandler(pgStore),
		GetProject:    handler.NewGetProjectHandler(pgStore),
		RenameProject: handler.NewRenameProjectHandler(pgStore),
		DeleteProject: handler.NewDeleteProjectHandler(pgStore, paths),
		UploadPDF:     handler.NewUploadPDFHandler(pgStore, paths),
		PageImage:     handler.NewPageImageHandler(pgStore),

		StartSplit:   handler.NewSplitHandler(genService),
		StartScripts: handler.NewGenerateScriptsHandler(genService),
		StartAudio:   handler.NewGenerateAudioHandler(genService),

		ListScripts:   handler.NewListScriptsHandler(pgStore),
		GetScript:     handler.NewGetScriptHandler(pgStore),
		UpdateScript:  handler.NewUpdateScriptHandler(pgStore),
		DialogueAudio: handler.NewDialogueAudioHandler(pgStore),

		PollJob:     handler.NewPollJobHandler(jobService),
		ListJobs:    handler.NewListJobsHandler(jobService),
		RunningJobs: handler.NewRunningJobsHandler(jobService),
		CancelJob:   handler.NewCancelJobHandler(jobService),

		GetVoices: handler.NewGetVoicesHandler(pgStore),
		PutVoices: handler.NewPutVoicesHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
