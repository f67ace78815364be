package domain

import "time"

// VerificationStats aggregates verification log entries over a window.
type VerificationStats struct {
	Total       int          `json:"total"`
	Successful  int          `json:"successful"`
	Failed      int          `json:"failed"`
	SuccessRate float64      `json:"success_rate"`
	Trends      []DailyTrend `json:"trends"`
	TopDomains  []BucketStat `json:"top_domains"`
	TopSources  []BucketStat `json:"top_sources"`
}

// DailyTrend is one day of verification volume.
type DailyTrend struct {
	Date       string `json:"date"`
	Total      int    `json:"total"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
}

// BucketStat is the volume and success rate for one grouping key.
type BucketStat struct {
	Key         string  `json:"key"`
	Total       int     `json:"total"`
	Successful  int     `json:"successful"`
	SuccessRate float64 `json:"success_rate"`
}

// SuspiciousActivityType names the anomaly rule that fired.
type SuspiciousActivityType string

const (
	SuspiciousMultipleFailedAttempts SuspiciousActivityType = "multiple_failed_attempts"
	SuspiciousDomainFanOut           SuspiciousActivityType = "multiple_domains"
	SuspiciousBotUserAgent           SuspiciousActivityType = "suspicious_user_agent"
	SuspiciousCodePattern            SuspiciousActivityType = "suspicious_code_pattern"
)

// SuspiciousActivity is one flagged pattern in the verification log.
type SuspiciousActivity struct {
	Type       SuspiciousActivityType `json:"type"`
	IP         string                 `json:"ip"`
	Detail     string                 `json:"detail"`
	Count      int                    `json:"count"`
	DetectedAt time.Time              `json:"detected_at"`
}
