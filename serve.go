package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"promptmaster/internal/api"
	"promptmaster/internal/config"
	"promptmaster/internal/observability"
	"promptmaster/internal/prompt"
	"promptmaster/internal/ratelimit"
	"promptmaster/internal/redis"
	"promptmaster/internal/service/ai"
	"promptmaster/internal/service/assistant"
	"promptmaster/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := observability.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog := prompt.Default()
	provider, provCfg := cfg.ActiveProvider()
	backend, models, err := ai.NewBackend(ctx, provider, provCfg)
	if err != nil {
		return err
	}
	dispatcher := ai.NewDispatcher(catalog, backend, models)
	logger.Info("generation backend ready", "provider", provider, "model", models.Default, "creative_model", models.Creative)

	limiter, closeLimiter, err := newLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	assistantService := assistant.NewService(catalog)
	manager := worker.NewManager(assistantService, dispatcher, worker.DispatcherConfig{
		MinWorkers:  cfg.BasicConfig.MinWorkers,
		MaxWorkers:  cfg.BasicConfig.MaxWorkers,
		QueueSize:   cfg.BasicConfig.QueueSize,
		IdleTimeout: time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Minute,
	})
	defer manager.Stop()

	assistantService.StartSessionCleaner(ctx,
		time.Duration(cfg.BasicConfig.SessionCleanInterval)*time.Minute,
		time.Duration(cfg.BasicConfig.SessionTTL)*time.Minute,
		manager.Purge,
	)

	handlers := api.NewHandler(assistantService, dispatcher, manager, limiter, cfg.BasicConfig.CORSOrigin)
	router := gin.New()
	router.Use(gin.Recovery())
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}
	srv := &http.Server{Addr: addr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newLimiter prefers the shared Redis limiter and falls back to an
// in-process one when Redis is disabled.
func newLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, func(), error) {
	perMinute := cfg.BasicConfig.RateLimitPerMinute
	if !cfg.Redis.Enabled {
		local := ratelimit.NewLocalLimiter(perMinute, time.Minute)
		local.StartSweeper(ctx, 5*time.Minute)
		return local, func() {}, nil
	}
	rdb, err := redis.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := rdb.Close(); err != nil {
			observability.Logger().Warn("close redis", "error", err)
		}
	}
	return ratelimit.NewRedisLimiter(rdb, perMinute, time.Minute), closeFn, nil
}
