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

	"crm_pipeline_backend/internal/adapters"
	"crm_pipeline_backend/internal/email"
	"crm_pipeline_backend/internal/events"
	apphttp "crm_pipeline_backend/internal/http"
	"crm_pipeline_backend/internal/http/router"
	"crm_pipeline_backend/internal/notification"
	"crm_pipeline_backend/internal/notification/inapp"
	"crm_pipeline_backend/internal/pipeline"
	"crm_pipeline_backend/internal/pipeline/service"
	"crm_pipeline_backend/internal/scheduler"
	"crm_pipeline_backend/internal/users"
	"crm_pipeline_backend/migrations"
	"crm_pipeline_backend/platform/config"
	"crm_pipeline_backend/platform/db"
	"crm_pipeline_backend/platform/logger"
	"crm_pipeline_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix  = "crm:"
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.DatabaseError("connect", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, migrations.FS)
	}); err != nil {
		log.DatabaseError("migrate", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	eventBus := events.NewInMemoryBus(log)

	cache, closeCache := initPipelineCache(cfg, log)
	if closeCache != nil {
		defer closeCache()
	}

	emailQueue, closeQueue := initEmailQueue(cfg, log)
	if closeQueue != nil {
		defer closeQueue()
	}

	val := validator.New()

	// ========================================================================
	// Domain Modules
	// ========================================================================

	notificationModule := notification.New(inapp.NewRepository(pool), log)
	notificationModule.RegisterHandlers(eventBus)
	if emailQueue != nil {
		notificationModule.Dispatcher().SetEmailQueue(emailQueue)
	} else {
		notificationModule.Dispatcher().SetEmailSender(email.NewSender(cfg), users.NewRepository(pool))
	}

	pipelineModule, err := pipeline.NewModule(pool, eventBus, val, cfg, cache, log)
	if err != nil {
		log.Error("failed to initialize pipeline module", "error", err)
		panic("failed to initialize pipeline module: " + err.Error())
	}

	// Anti-Corruption Layer: the pipeline only knows its own Notifier and
	// Feedback ports.
	pipelineModule.Service().SetNotifier(adapters.NewPipelineNotifier(notificationModule.Dispatcher()))
	pipelineModule.Service().SetFeedback(adapters.NewPipelineFeedback(notificationModule.SSE()))

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			pipelineModule,
			notificationModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		// Live SSE streams never finish on their own.
		notificationModule.SSE().Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}

	notificationModule.Close()
	eventBus.Wait()
	log.Info("server stopped")
}

func initPipelineCache(cfg config.CacheConfig, log *logger.Logger) (service.Cache, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; pipeline aggregates cached in process memory")
		return service.NewMemoryCache(), nil
	}

	opts, err := scheduler.RedisOptions(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		log.Error("invalid REDIS_URL; pipeline aggregates cached in process memory", "error", err)
		return service.NewMemoryCache(), nil
	}

	client := redis.NewClient(opts)
	return service.NewRedisCache(client, cacheKeyPrefix), func() {
		_ = client.Close()
	}
}

func initEmailQueue(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.DealEmailQueue, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; deal emails sent in process")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize email queue client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
