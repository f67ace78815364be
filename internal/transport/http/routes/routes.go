package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shubra2641/liceinc/internal/infra/config"
	"github.com/shubra2641/liceinc/internal/transport/http/handlers"
	"github.com/shubra2641/liceinc/internal/transport/http/middleware"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Verifier  handlers.LicenseVerifier
	Domains   handlers.DomainManager
	Licenses  handlers.LicenseAdministrator
	Analytics handlers.VerificationAnalytics
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	HTTPMetrics *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
	AdminTokens middleware.AdminTokenValidator
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	r.Use(deps.HTTPMetrics.Handler())

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(metricsHandler(deps.Gatherer)))
	handlers.RegisterSwagger(r)

	api := r.Group("/api/v1")
	api.Use(middleware.Tracing())

	if deps.Services.Verifier != nil && deps.Services.Domains != nil {
		licenseHandler := handlers.NewLicenseHandler(deps.Services.Verifier, deps.Services.Domains, deps.Services.Licenses, deps.Logger)

		public := api.Group("/licenses")
		if limit := buildPublicRateLimit(deps); limit != nil {
			public.Use(limit)
		}
		licenseHandler.RegisterPublicRoutes(public)

		if deps.AdminTokens != nil && deps.Services.Licenses != nil {
			admin := api.Group("/licenses")
			admin.Use(middleware.RequireAdmin(deps.AdminTokens))
			licenseHandler.RegisterAdminRoutes(admin)
		}
	}

	if deps.AdminTokens != nil && deps.Services.Analytics != nil {
		analytics := api.Group("/analytics")
		analytics.Use(middleware.RequireAdmin(deps.AdminTokens))
		handlers.NewAnalyticsHandler(deps.Services.Analytics, deps.Logger).RegisterRoutes(analytics)
	}

	return r
}

func metricsHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func buildPublicRateLimit(deps Dependencies) gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	settings := deps.Config.RateLimit
	if settings.HTTPWindow <= 0 {
		return nil
	}

	rules := make([]middleware.RateLimitRule, 0, 2)
	if settings.HTTPMaxRequests > 0 {
		rules = append(rules, middleware.RateLimitRule{
			Name:       "license_api_ip",
			Limit:      settings.HTTPMaxRequests,
			Window:     settings.HTTPWindow,
			Identifier: middleware.ClientIPIdentifier(),
		})
	}
	if settings.LicenseKeyRequests > 0 {
		rules = append(rules, middleware.RateLimitRule{
			Name:       "license_key",
			Limit:      settings.LicenseKeyRequests,
			Window:     settings.HTTPWindow,
			Identifier: middleware.ParamIdentifier("key"),
		})
	}
	if len(rules) == 0 {
		return nil
	}

	return deps.RateLimiter.RateLimit(rules...)
}
