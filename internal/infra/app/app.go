package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/shubra2641/liceinc/internal/core/port"
	"github.com/shubra2641/liceinc/internal/infra/config"
	"github.com/shubra2641/liceinc/internal/infra/database"
	kafkainfra "github.com/shubra2641/liceinc/internal/infra/kafka"
	"github.com/shubra2641/liceinc/internal/infra/logger"
	"github.com/shubra2641/liceinc/internal/infra/marketplace"
	redisinfra "github.com/shubra2641/liceinc/internal/infra/redis"
	"github.com/shubra2641/liceinc/internal/infra/security"
	"github.com/shubra2641/liceinc/internal/infra/telemetry"
	"github.com/shubra2641/liceinc/internal/infra/validation"
	postgresrepo "github.com/shubra2641/liceinc/internal/repository/postgres"
	redisrepo "github.com/shubra2641/liceinc/internal/repository/redis"
	transportgrpc "github.com/shubra2641/liceinc/internal/transport/grpc"
	grpcinterceptors "github.com/shubra2641/liceinc/internal/transport/grpc/interceptors"
	"github.com/shubra2641/liceinc/internal/transport/http/middleware"
	"github.com/shubra2641/liceinc/internal/transport/http/routes"
	"github.com/shubra2641/liceinc/internal/usecase"
)

const readinessInterval = 10 * time.Second

// Application owns every long-lived resource of the license engine.
type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	pool       *pgxpool.Pool
	redis      *redisinfra.Client
	producer   *kafkainfra.Producer
	billing    *kafkainfra.BillingConsumer
	tracer     *telemetry.TracerProvider
	grpcServer *transportgrpc.Server
	grpcAddr   string
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if strings.TrimSpace(cfg.Telemetry.OTLPEndpoint) != "" {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, cfg.App.Version, log)
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	licensingMetrics, err := telemetry.NewLicensingMetrics(telemetry.LicensingMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init licensing metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}
	grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init grpc metrics: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	if cfg.Postgres.AutoMigrate {
		if err := postgresrepo.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)
	licenseTx := usecase.LicenseTxFunc(repos.Tx.RunInLicenseTx)

	verificationCache := redisrepo.NewVerificationCache(redisClient.Client(), cfg.Redis.LicensePrefix)
	attemptCounter := redisrepo.NewAttemptCounter(redisClient.Client(), cfg.Redis.AttemptPrefix)

	httpWindow := cfg.RateLimit.HTTPWindow
	if httpWindow <= 0 {
		httpWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewSlidingWindowStore(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       httpWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	// Initialize Kafka event publisher
	var (
		eventPublisher port.EventPublisher
		producer       *kafkainfra.Producer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "liceinc",
				Subsystem: "events",
				Name:      "delivery_failures_total",
				Help:      "License events the brokers never acknowledged.",
			}, func() float64 { return float64(producer.DeliveryFailures()) }))
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	hasher, err := security.NewCodeHasher(cfg.Audit.HashKey)
	if err != nil {
		closeQuietly(pool, redisClient, producer)
		return nil, fmt.Errorf("init code hasher: %w", err)
	}
	if cfg.Audit.HashKey == "" {
		log.Warn("audit.hash_key is empty; purchase code digests are unkeyed")
	}

	validator, err := validation.New()
	if err != nil {
		closeQuietly(pool, redisClient, producer)
		return nil, fmt.Errorf("init validator: %w", err)
	}
	if err := validation.RegisterWithGin(); err != nil {
		closeQuietly(pool, redisClient, producer)
		return nil, fmt.Errorf("register gin validators: %w", err)
	}

	attemptWindow := cfg.RateLimit.WindowDuration
	guard := usecase.NewAttemptGuard(attemptCounter, map[string]usecase.AttemptLimit{
		usecase.ActionVerify:   {Max: int64(cfg.RateLimit.VerifyMaxAttempts), Window: attemptWindow},
		usecase.ActionActivate: {Max: int64(cfg.RateLimit.ActivateMaxAttempts), Window: attemptWindow},
	}, log)

	audit := usecase.NewAuditLogger(repos.Verifications, hasher, validator).
		WithMirror(logger.NewOpsFailureMirror(log, cfg.Audit.OpsChannel)).
		WithLogger(log)

	activationService := usecase.NewActivationService(repos.Licenses, repos.Activations, repos.Products, validator, licenseTx).
		WithCache(verificationCache, hasher).
		WithEvents(eventPublisher).
		WithGuard(guard).
		WithMetrics(licensingMetrics).
		WithLogger(log)

	verificationService := usecase.NewVerificationService(
		repos.Licenses,
		repos.Products,
		marketplace.NewClient(cfg.Marketplace, log),
		security.NewLicenseKeyGenerator(),
		hasher,
		validator,
		usecase.VerificationOptions{
			RemoteTimeout:         cfg.License.RemoteTimeout,
			CacheTTL:              cfg.License.CacheTTL,
			MaterializeFromRemote: cfg.License.MaterializeFromRemote,
		},
	).
		WithCache(verificationCache).
		WithEvents(eventPublisher).
		WithAudit(audit).
		WithActivations(activationService).
		WithGuard(guard).
		WithMetrics(licensingMetrics).
		WithLogger(log)

	licenseService := usecase.NewLicenseService(repos.Licenses, repos.Activations, licenseTx).
		WithCache(verificationCache, hasher).
		WithEvents(eventPublisher).
		WithLogger(log)

	analyticsService := usecase.NewAnalyticsService(repos.Verifications).WithLogger(log)

	var billing *kafkainfra.BillingConsumer
	if len(cfg.Kafka.Brokers) > 0 && strings.TrimSpace(cfg.Kafka.BillingTopic) != "" {
		billing = kafkainfra.NewBillingConsumer(licenseService, log)
	}

	routeDeps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		HTTPMetrics: httpMetrics,
		Gatherer:    registry,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Verifier:  verificationService,
			Domains:   activationService,
			Licenses:  licenseService,
			Analytics: analyticsService,
		},
	}

	grpcDeps := transportgrpc.ServerDependencies{
		Metrics: grpcMetrics,
		Logger:  log,
	}

	if secret := cfg.Admin.JWTSecret; secret != "" {
		adminTokens := security.NewAdminTokenManager(secret, cfg.Admin.Issuer)
		routeDeps.AdminTokens = adminTokens
		grpcDeps.AdminTokens = adminTokens
	} else {
		log.Warn("admin.jwt_secret is empty; admin routes are disabled")
	}

	return &Application{
		cfg:        cfg,
		engine:     routes.Register(routeDeps),
		logger:     log,
		pool:       pool,
		redis:      redisClient,
		producer:   producer,
		billing:    billing,
		tracer:     tracer,
		grpcServer: transportgrpc.NewServer(grpcDeps),
		grpcAddr:   fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port),
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.tracer == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()
	defer closeQuietly(a.pool, a.redis, a.producer)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	billingErrCh := make(chan error, 1)
	if a.billing != nil {
		go func() {
			if err := kafkainfra.RunBillingConsumer(runCtx, a.cfg.Kafka, a.billing, a.logger); err != nil {
				billingErrCh <- fmt.Errorf("run billing consumer: %w", err)
			}
		}()
	}

	grpcErrCh := make(chan error, 1)
	if a.grpcServer != nil && a.grpcAddr != "" {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		a.logger.Info("starting gRPC server",
			zap.String("address", a.grpcAddr),
		)

		go a.grpcServer.WatchReadiness(runCtx, readinessInterval, map[string]transportgrpc.ReadinessCheck{
			"database": a.pool.Ping,
			"redis":    a.redis.HealthCheck,
		})

		go func() {
			defer func() {
				if r := recover(); r != nil {
					a.logger.Error("gRPC server panicked", zap.Any("panic", r))
					grpcErrCh <- fmt.Errorf("grpc server panicked: %v", r)
				}
			}()
			if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				a.logger.Error("gRPC server error", zap.Error(err))
				grpcErrCh <- fmt.Errorf("run grpc server: %w", err)
			} else {
				a.logger.Info("gRPC server stopped gracefully")
			}
		}()
		defer a.grpcServer.GracefulStop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting license API",
		zap.String("env", a.cfg.App.Env),
		zap.String("version", a.cfg.App.Version),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErrCh:
	case runErr = <-grpcErrCh:
	case runErr = <-billingErrCh:
	}
	cancelRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutdown server: %w", err)
	}
	return runErr
}

func closeQuietly(pool *pgxpool.Pool, redisClient *redisinfra.Client, producer *kafkainfra.Producer) {
	if producer != nil {
		_ = producer.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if pool != nil {
		pool.Close()
	}
}
