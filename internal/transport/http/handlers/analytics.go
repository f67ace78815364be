package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/usecase"
)

// VerificationAnalytics aggregates the verification log.
type VerificationAnalytics interface {
	Stats(ctx context.Context, days int) (domain.VerificationStats, error)
	Suspicious(ctx context.Context) ([]domain.SuspiciousActivity, error)
}

// AnalyticsHandler serves verification statistics to operators.
type AnalyticsHandler struct {
	analytics VerificationAnalytics
	logger    *zap.Logger
}

// NewAnalyticsHandler constructs the handler.
func NewAnalyticsHandler(analytics VerificationAnalytics, logger *zap.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsHandler{analytics: analytics, logger: logger}
}

// RegisterRoutes mounts the analytics endpoints. Callers attach authentication.
func (h *AnalyticsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/verifications", h.Stats)
	rg.GET("/suspicious", h.Suspicious)
}

// Stats returns totals, success rate, daily trends and top buckets over the last N days.
func (h *AnalyticsHandler) Stats(c *gin.Context) {
	days := usecase.DefaultStatsDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > usecase.MaxStatsDays {
			respondError(c, http.StatusBadRequest, CodeValidationFailed, fmt.Sprintf("days must be between 1 and %d", usecase.MaxStatsDays))
			return
		}
		days = parsed
	}

	stats, err := h.analytics.Stats(c.Request.Context(), days)
	if err != nil {
		RespondWithMappedError(c, h.logger, err, nil)
		return
	}
	respondData(c, http.StatusOK, stats)
}

// Suspicious lists the anomalies detected in the last day of verification traffic.
func (h *AnalyticsHandler) Suspicious(c *gin.Context) {
	activity, err := h.analytics.Suspicious(c.Request.Context())
	if err != nil {
		RespondWithMappedError(c, h.logger, err, nil)
		return
	}
	if activity == nil {
		activity = []domain.SuspiciousActivity{}
	}
	respondData(c, http.StatusOK, activity)
}
