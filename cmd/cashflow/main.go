package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"cashflow/internal/amqp"
	"cashflow/internal/backend"
	"cashflow/internal/cache"
	"cashflow/internal/cli"
	"cashflow/internal/config"
	apphttp "cashflow/internal/http"
	"cashflow/internal/log"
	"cashflow/internal/projection"
	"cashflow/internal/services"
	"cashflow/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(nil, "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backends", err,
			"remote", cfg.RemoteBackend,
			"prefs", cfg.PrefsBackend)
	}
	res, err := backend.NewFactory(logger).Create(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backends", err,
			"remote", cfg.RemoteBackend,
			"prefs", cfg.PrefsBackend)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()

	engine := services.NewEngine(res.Remote, services.EngineConfigFrom(cfg), logger)
	toggle := projection.NewToggle(res.Prefs)

	opts := []apphttp.Option{
		apphttp.WithAllowedOrigins(cfg.CORSOrigins...),
		apphttp.WithRateLimit(cfg.RateLimitPerMinute),
		apphttp.WithMaxScreens(cfg.MaxScreens),
	}
	if client := setupAMQP(ctx, cfg, engine, logger); client != nil {
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("AMQP close failed", log.FieldError, err.Error())
			}
		}()
		opts = append(opts, apphttp.WithInvalidator(client))
	}

	srv := apphttp.NewServer(":"+cfg.Port, engine, toggle, logger, opts...)

	caches := cache.NewManager(logger)
	caches.Register(engine.Cache())
	if limiter := srv.RateLimiter(); limiter != nil {
		caches.Register(limiter.Cleaner())
	}
	caches.StartCleanup(cfg.CacheTTL)
	defer caches.Stop()

	prefetcher := worker.NewPrefetcher(engine, cfg.UpcomingDays, cfg.PrefetchInterval, logger)
	go prefetcher.Run(ctx)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting cashflow server",
			"port", cfg.Port,
			"remote", cfg.RemoteBackend,
			"prefs", cfg.PrefsBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err.Error())
	}
	logger.Info("Server stopped gracefully")
}

// setupAMQP connects the invalidation fan-out and starts consuming. It returns
// nil when AMQP is not configured or unreachable; the server then runs with
// instance-local caches only.
func setupAMQP(ctx context.Context, cfg *config.Config, engine *services.Engine, logger *log.Logger) *amqp.Client {
	if cfg.AMQPURL == "" {
		return nil
	}

	instanceID := cfg.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue+"."+instanceID, instanceID, logger)
	if err != nil {
		logger.Warn("AMQP unavailable, cache invalidation stays local",
			log.FieldError, err.Error(),
			"exchange", cfg.AMQPExchange)
		return nil
	}

	go func() {
		err := client.Consume(ctx, func(ctx context.Context, msg *amqp.InvalidationMessage) error {
			return engine.HandleInvalidation(ctx, msg.Reason, msg.Sources)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("AMQP consumer stopped", log.FieldError, err.Error())
		}
	}()

	logger.Info("AMQP invalidation fan-out enabled",
		"exchange", cfg.AMQPExchange,
		"instance_id", instanceID)
	return client
}
