package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/splitpay/split-engine/internal/adapters/logging"
	"github.com/splitpay/split-engine/internal/adapters/postgres"
	"github.com/splitpay/split-engine/internal/adapters/rabbitmq"
	"github.com/splitpay/split-engine/internal/config"
	apiHandler "github.com/splitpay/split-engine/internal/handlers/api"
	callbackHandler "github.com/splitpay/split-engine/internal/handlers/callback"
	cronHandler "github.com/splitpay/split-engine/internal/handlers/cron"
	internalMiddleware "github.com/splitpay/split-engine/internal/middleware"
	"github.com/splitpay/split-engine/internal/scheduler"
	recipientService "github.com/splitpay/split-engine/internal/services/recipient"
	ruleService "github.com/splitpay/split-engine/internal/services/rule"
	"github.com/splitpay/split-engine/internal/services/split"
	sweepService "github.com/splitpay/split-engine/internal/services/sweep"
	pkgMiddleware "github.com/splitpay/split-engine/pkg/middleware"
	"github.com/splitpay/split-engine/pkg/observability"
	"github.com/splitpay/split-engine/pkg/shutdown"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	logger := initLogger()
	defer logger.Sync()

	logger.Info("Starting split engine",
		zap.String("version", "0.1.0"),
	)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	dbPool, err := initDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	portLogger := logging.NewZapLogger(logger)
	dbExecutor := postgres.NewDBExecutor(dbPool)

	recipientRepo := postgres.NewRecipientRepository(dbExecutor)
	ruleRepo := postgres.NewRuleRepository(dbExecutor)
	txRepo := postgres.NewTransactionRepository(dbExecutor)

	publisher, err := rabbitmq.NewPublisher(rabbitmq.Config{
		URL:            cfg.Queue.URL,
		Exchange:       cfg.Queue.Exchange,
		ConfirmTimeout: cfg.Queue.ConfirmTimeout,
	}, portLogger)
	if err != nil {
		logger.Fatal("Failed to connect to settlement queue", zap.Error(err))
	}

	recipients := recipientService.NewService(dbExecutor, recipientRepo, ruleRepo, portLogger)
	rules := ruleService.NewService(dbExecutor, ruleRepo, recipientRepo, txRepo, portLogger)
	distributor := split.NewDistributor(dbExecutor, ruleRepo, txRepo, publisher, portLogger, split.Config{
		SettlementTopic: cfg.Queue.SettlementTopic,
		DefaultCurrency: cfg.Split.DefaultCurrency,
		PublishTimeout:  cfg.Split.PublishTimeout,
	})
	sweeper := sweepService.NewService(txRepo, publisher, portLogger, sweepService.Config{
		SettlementTopic: cfg.Queue.SettlementTopic,
		PendingAge:      cfg.Sweep.PendingAge,
		BatchSize:       cfg.Sweep.BatchSize,
		PublishTimeout:  cfg.Split.PublishTimeout,
	})

	sched, err := scheduler.NewManager(sweeper, portLogger, cfg.Sweep.Interval)
	if err != nil {
		logger.Fatal("Failed to create scheduler", zap.Error(err))
	}
	sched.Start()

	// Metrics and health server
	healthChecker := observability.NewHealthChecker(dbPool, publisher.Ping)
	metricsServer := observability.StartMetricsServer(fmt.Sprintf("%d", cfg.Server.MetricsPort), healthChecker)
	logger.Info("Metrics server listening", zap.Int("port", cfg.Server.MetricsPort))

	rateLimiter := pkgMiddleware.NewRateLimiter(
		cfg.Server.RateLimitPerSecond, cfg.Server.RateLimitBurst, "X-Owner-ID")

	httpServer := buildHTTPServer(cfg, logger, rateLimiter, recipients, rules, distributor, sweeper)
	go func() {
		logger.Info("HTTP server listening",
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	// Stop order is LIFO: scheduler stops producing work before the
	// servers drain, the publisher and pool close last.
	sm := shutdown.NewManager(logger, 15*time.Second)
	sm.Register("database_pool", func(context.Context) error {
		dbPool.Close()
		return nil
	})
	sm.Register("settlement_publisher", func(context.Context) error {
		return publisher.Close()
	})
	sm.Register("metrics_server", func(context.Context) error {
		return observability.ShutdownMetricsServer(metricsServer)
	})
	sm.Register("http_server", func(ctx context.Context) error {
		rateLimiter.Shutdown()
		return httpServer.Shutdown(ctx)
	})
	sm.Register("scheduler", func(context.Context) error {
		return sched.Stop()
	})

	sm.Wait()
}

func buildHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	rateLimiter *pkgMiddleware.RateLimiter,
	recipients *recipientService.Service,
	rules *ruleService.Service,
	distributor *split.Distributor,
	sweeper *sweepService.Service,
) *http.Server {
	recipientH := apiHandler.NewRecipientHandler(recipients, logger)
	ruleH := apiHandler.NewRuleHandler(rules, logger)
	distributionH := apiHandler.NewDistributionHandler(distributor, logger)
	settlementH := callbackHandler.NewSettlementHandler(distributor, logger, cfg.Queue.CallbackSecret)
	sweepH := cronHandler.NewSweepHandler(sweeper, logger, cfg.CronSecret)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/recipients", recipientH.Create)
	mux.HandleFunc("GET /api/v1/recipients", recipientH.List)
	mux.HandleFunc("GET /api/v1/recipients/{id}", recipientH.Get)
	mux.HandleFunc("PATCH /api/v1/recipients/{id}", recipientH.Update)
	mux.HandleFunc("POST /api/v1/recipients/{id}/deactivate", recipientH.Deactivate)
	mux.HandleFunc("DELETE /api/v1/recipients/{id}", recipientH.Delete)

	mux.HandleFunc("POST /api/v1/rules", ruleH.Create)
	mux.HandleFunc("GET /api/v1/rules", ruleH.List)
	mux.HandleFunc("GET /api/v1/rules/{id}", ruleH.Get)
	mux.HandleFunc("PATCH /api/v1/rules/{id}", ruleH.Update)
	mux.HandleFunc("DELETE /api/v1/rules/{id}", ruleH.Delete)

	mux.HandleFunc("POST /api/v1/distributions", distributionH.Distribute)
	mux.HandleFunc("GET /api/v1/transactions/{id}", distributionH.GetTransaction)
	mux.HandleFunc("GET /api/v1/sales/{saleId}/transaction", distributionH.GetBySale)

	mux.HandleFunc("POST /callbacks/settlement", settlementH.ReportStatus)

	mux.HandleFunc("/cron/reconciliation-sweep", sweepH.RunSweep)
	mux.HandleFunc("GET /cron/allocation-stats", sweepH.Stats)

	securityHeaders := internalMiddleware.NewSecurityHeaders(os.Getenv("ENVIRONMENT") != "production")

	var handler http.Handler = mux
	handler = rateLimiter.Middleware(handler)
	handler = securityHeaders.Middleware(handler)
	handler = observability.InstrumentHandler("api", handler)

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func initLogger() *zap.Logger {
	env := os.Getenv("ENVIRONMENT")

	if env == "production" {
		zapCfg := zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		logger, _ := zapCfg.Build()
		return logger
	}

	logger, _ := zap.NewDevelopment()
	return logger
}

func initDatabase(cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database),
	)
	return pool, nil
}
