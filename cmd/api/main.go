package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	v1 "github.com/Grozay/GreenKitchenWeb-sub002/cmd/api/router/v1"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/config"
	busAdapter "github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/bus/adapter"
	busPort "github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/bus/port"
	cacheAdapter "github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/cache/adapter"
	cachePort "github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/cache/port"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/database"
	queueAdapter "github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/queue/adapter"
	queuePort "github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/queue/port"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/realtime"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/task"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/usecase"
	repoAdapter "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/adapter"
	repository "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/port"
	supportHTTP "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/presentation/http"
)

func main() {
	// Load .env file
	if err := config.LoadDotEnv(); err != nil {
		slog.Warn(".env could not be loaded", slog.Any("error", err))
	}
	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("support api stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, logger *slog.Logger) error {
	deps := map[string]v1.Pinger{}

	repo, pool, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
		deps["postgres"] = pool
	}

	cache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer cache.Close()
	deps["cache"] = cache

	bus, err := openBus(cfg, cache, logger)
	if err != nil {
		return err
	}
	defer bus.Close()

	router := realtime.NewRouter()
	defer router.Close()
	go func() {
		if err := bus.Run(ctx, func(topic string, payload []byte) { router.Publish(topic, payload) }); err != nil {
			logger.Error("push bus stopped", slog.Any("error", err))
		}
	}()

	qClient, qServer, err := openQueue(cfg, logger)
	if err != nil {
		return err
	}
	defer qClient.Close()

	var scheduler usecase.AssistantScheduler
	if cfg.AssistantEnabled {
		scheduler = &task.Scheduler{Client: qClient, Delay: 500 * time.Millisecond}
	}
	uc := usecase.NewSet(repo, cache, bus, scheduler, cfg.StatusCacheTTL, logger)

	if cfg.AssistantEnabled {
		task.RegisterAssistantReplyTask(qServer, &task.AssistantReplyHandler{
			Repo:      repo,
			Assistant: task.RuleAssistant{},
			Send:      uc.Send,
			Escalate:  uc.Escalate,
			Logger:    logger,
		})
	}
	go func() {
		if err := qServer.Run(ctx); err != nil {
			logger.Error("queue server stopped", slog.Any("error", err))
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger), corsMiddleware(cfg.CORSOrigins))
	v1.RegisterRoutes(r, uc, router, supportHTTP.Options{
		JWTSecret:   cfg.JWTSecret,
		AllowOrigin: originChecker(cfg.CORSOrigins),
		Logger:      logger,
	}, deps)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("support api listening", slog.String("addr", cfg.HTTPAddr), slog.String("bus", cfg.BusDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := qServer.Stop(shutdownCtx); err != nil {
		logger.Warn("queue shutdown", slog.Any("error", err))
	}
	return srv.Shutdown(shutdownCtx)
}

func openRepository(ctx context.Context, cfg config.Server, logger *slog.Logger) (repository.ConversationRepository, *pgxpool.Pool, error) {
	if cfg.DBURL == "" {
		logger.Warn("DB_URL not set, conversations are kept in memory")
		return repoAdapter.NewMemoryConversationRepository(), nil, nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := database.NewPoolFromEnv(connectCtx)
	if err != nil {
		return nil, nil, err
	}
	repo := repoAdapter.NewPgConversationRepository(pool)
	if err := repo.EnsureSchema(connectCtx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repo, pool, nil
}

func openCache(ctx context.Context, cfg config.Server) (cachePort.Cache, error) {
	if cfg.RedisURL == "" {
		return cacheAdapter.NewMemoryCache(), nil
	}
	return cacheAdapter.NewRedisCacheFromEnv(ctx)
}

func openBus(cfg config.Server, cache cachePort.Cache, logger *slog.Logger) (busPort.Bus, error) {
	switch cfg.BusDriver {
	case config.BusRedis:
		rc, ok := cache.(*cacheAdapter.RedisCache)
		if !ok {
			return nil, errors.New("BUS_DRIVER=redis requires the redis cache")
		}
		return busAdapter.NewRedisBus(rc.Client(), "", logger), nil
	case config.BusAMQP:
		return busAdapter.NewAMQPBus(cfg.AMQPURL, "", logger)
	}
	return busAdapter.NewLocalBus(0), nil
}

func openQueue(cfg config.Server, logger *slog.Logger) (queuePort.Client, queuePort.Server, error) {
	if cfg.RedisURL == "" {
		q := queueAdapter.NewInlineQueue(logger)
		return q, q, nil
	}
	client, err := queueAdapter.NewAsynqClientFromEnv()
	if err != nil {
		return nil, nil, err
	}
	server, err := queueAdapter.NewAsynqServerFromEnv(logger)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return client, server, nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func originChecker(origins []string) func(*http.Request) bool {
	if slices.Contains(origins, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.LogAttrs(c.Request.Context(), level, "request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()),
		)
	}
}
