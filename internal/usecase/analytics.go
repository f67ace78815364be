package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/core/port"
)

const (
	DefaultStatsDays = 30
	MaxStatsDays     = 365

	failedBurstWindow    = time.Hour
	failedBurstThreshold = 5
	fanOutWindow         = 24 * time.Hour
	fanOutThreshold      = 10
	topBucketLimit       = 10

	// SuspiciousCodeFlag marks audit responses whose purchase code has a low-entropy shape.
	SuspiciousCodeFlag = "suspicious_code"
)

var botSignatures = []string{"bot", "crawler", "spider", "scanner", "curl", "wget", "python", "php"}

// AnalyticsService aggregates the verification log on demand.
type AnalyticsService struct {
	logs   port.VerificationLogRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewAnalyticsService constructs an AnalyticsService.
func NewAnalyticsService(logs port.VerificationLogRepository) *AnalyticsService {
	return &AnalyticsService{
		logs:   logs,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithLogger attaches a structured logger.
func (s *AnalyticsService) WithLogger(logger *zap.Logger) *AnalyticsService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithNow overrides the clock.
func (s *AnalyticsService) WithNow(now func() time.Time) *AnalyticsService {
	if now != nil {
		s.now = now
	}
	return s
}

// Stats returns verification statistics over the last days.
func (s *AnalyticsService) Stats(ctx context.Context, days int) (domain.VerificationStats, error) {
	if days <= 0 {
		days = DefaultStatsDays
	}
	if days > MaxStatsDays {
		days = MaxStatsDays
	}
	now := s.now()
	entries, err := s.logs.ListSince(ctx, trendStart(now, days))
	if err != nil {
		return domain.VerificationStats{}, fmt.Errorf("list verification logs: %w", err)
	}
	return ComputeStats(entries, days, now), nil
}

// Suspicious scans the last day of verification attempts for anomalies.
func (s *AnalyticsService) Suspicious(ctx context.Context) ([]domain.SuspiciousActivity, error) {
	now := s.now()
	entries, err := s.logs.ListSince(ctx, now.Add(-fanOutWindow))
	if err != nil {
		return nil, fmt.Errorf("list verification logs: %w", err)
	}
	activity := ScanSuspicious(entries, now)
	if len(activity) > 0 {
		s.logger.Info("suspicious verification activity detected", zap.Int("findings", len(activity)))
	}
	return activity, nil
}

func trendStart(now time.Time, days int) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -(days - 1))
}

// ComputeStats aggregates entries into totals, a daily trend and top buckets.
func ComputeStats(entries []domain.VerificationLogEntry, days int, now time.Time) domain.VerificationStats {
	now = now.UTC()
	start := trendStart(now, days)

	trends := make([]domain.DailyTrend, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format(time.DateOnly)
		trends[i] = domain.DailyTrend{Date: date}
		index[date] = i
	}

	stats := domain.VerificationStats{Trends: trends}
	domains := map[string]*domain.BucketStat{}
	sources := map[string]*domain.BucketStat{}

	for _, entry := range entries {
		created := entry.CreatedAt.UTC()
		if created.Before(start) || created.After(now) {
			continue
		}
		stats.Total++
		if entry.IsValid {
			stats.Successful++
		}
		if i, ok := index[created.Format(time.DateOnly)]; ok {
			trends[i].Total++
			if entry.IsValid {
				trends[i].Successful++
			} else {
				trends[i].Failed++
			}
		}
		addToBucket(domains, entry.Domain, entry.IsValid)
		addToBucket(sources, string(entry.Source), entry.IsValid)
	}

	stats.Failed = stats.Total - stats.Successful
	stats.SuccessRate = successRate(stats.Successful, stats.Total)
	stats.TopDomains = topBuckets(domains)
	stats.TopSources = topBuckets(sources)
	return stats
}

func addToBucket(buckets map[string]*domain.BucketStat, key string, valid bool) {
	if key == "" {
		return
	}
	bucket, ok := buckets[key]
	if !ok {
		bucket = &domain.BucketStat{Key: key}
		buckets[key] = bucket
	}
	bucket.Total++
	if valid {
		bucket.Successful++
	}
}

func topBuckets(buckets map[string]*domain.BucketStat) []domain.BucketStat {
	out := make([]domain.BucketStat, 0, len(buckets))
	for _, bucket := range buckets {
		bucket.SuccessRate = successRate(bucket.Successful, bucket.Total)
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > topBucketLimit {
		out = out[:topBucketLimit]
	}
	return out
}

// successRate is a percentage rounded to two decimals.
func successRate(successful, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(successful)/float64(total)*10000) / 100
}

// ScanSuspicious runs every anomaly rule and returns the combined findings.
func ScanSuspicious(entries []domain.VerificationLogEntry, now time.Time) []domain.SuspiciousActivity {
	findings := DetectFailedBursts(entries, now)
	findings = append(findings, DetectDomainFanOut(entries, now)...)
	findings = append(findings, DetectBotAgents(entries, now)...)
	findings = append(findings, DetectSuspiciousCodes(entries, now)...)
	return findings
}

// DetectFailedBursts flags IPs with more than five failed attempts in the last hour.
func DetectFailedBursts(entries []domain.VerificationLogEntry, now time.Time) []domain.SuspiciousActivity {
	since := now.Add(-failedBurstWindow)
	failures := map[string]int{}
	for _, entry := range entries {
		if entry.IsValid || entry.IPAddress == "" || entry.CreatedAt.Before(since) {
			continue
		}
		failures[entry.IPAddress]++
	}

	var out []domain.SuspiciousActivity
	for _, ip := range sortedKeys(failures) {
		count := failures[ip]
		if count <= failedBurstThreshold {
			continue
		}
		out = append(out, domain.SuspiciousActivity{
			Type:       domain.SuspiciousMultipleFailedAttempts,
			IP:         ip,
			Detail:     fmt.Sprintf("%d failed verification attempts in the last hour", count),
			Count:      count,
			DetectedAt: now,
		})
	}
	return out
}

// DetectDomainFanOut flags IPs that touched more than ten distinct domains in the last 24 hours.
func DetectDomainFanOut(entries []domain.VerificationLogEntry, now time.Time) []domain.SuspiciousActivity {
	since := now.Add(-fanOutWindow)
	seen := map[string]map[string]struct{}{}
	for _, entry := range entries {
		if entry.IPAddress == "" || entry.Domain == "" || entry.CreatedAt.Before(since) {
			continue
		}
		set, ok := seen[entry.IPAddress]
		if !ok {
			set = map[string]struct{}{}
			seen[entry.IPAddress] = set
		}
		set[entry.Domain] = struct{}{}
	}

	counts := make(map[string]int, len(seen))
	for ip, set := range seen {
		counts[ip] = len(set)
	}

	var out []domain.SuspiciousActivity
	for _, ip := range sortedKeys(counts) {
		count := counts[ip]
		if count <= fanOutThreshold {
			continue
		}
		out = append(out, domain.SuspiciousActivity{
			Type:       domain.SuspiciousDomainFanOut,
			IP:         ip,
			Detail:     fmt.Sprintf("%d distinct domains verified in the last 24 hours", count),
			Count:      count,
			DetectedAt: now,
		})
	}
	return out
}

// DetectBotAgents flags requests whose user agent matches a known automation signature.
func DetectBotAgents(entries []domain.VerificationLogEntry, now time.Time) []domain.SuspiciousActivity {
	since := now.Add(-fanOutWindow)
	type agentKey struct {
		ip    string
		agent string
	}
	hits := map[agentKey]int{}
	signatures := map[agentKey]string{}
	for _, entry := range entries {
		if entry.CreatedAt.Before(since) {
			continue
		}
		signature := matchBotSignature(entry.UserAgent)
		if signature == "" {
			continue
		}
		key := agentKey{ip: entry.IPAddress, agent: entry.UserAgent}
		hits[key]++
		signatures[key] = signature
	}

	keys := make([]agentKey, 0, len(hits))
	for key := range hits {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ip != keys[j].ip {
			return keys[i].ip < keys[j].ip
		}
		return keys[i].agent < keys[j].agent
	})

	out := make([]domain.SuspiciousActivity, 0, len(keys))
	for _, key := range keys {
		out = append(out, domain.SuspiciousActivity{
			Type:       domain.SuspiciousBotUserAgent,
			IP:         key.ip,
			Detail:     fmt.Sprintf("user agent %q matches %q", key.agent, signatures[key]),
			Count:      hits[key],
			DetectedAt: now,
		})
	}
	return out
}

// DetectSuspiciousCodes flags IPs that submitted low-entropy purchase codes in the last 24 hours.
func DetectSuspiciousCodes(entries []domain.VerificationLogEntry, now time.Time) []domain.SuspiciousActivity {
	since := now.Add(-fanOutWindow)
	hits := map[string]int{}
	for _, entry := range entries {
		if entry.IPAddress == "" || entry.CreatedAt.Before(since) {
			continue
		}
		if flagged, _ := entry.ResponseData[SuspiciousCodeFlag].(bool); flagged {
			hits[entry.IPAddress]++
		}
	}

	var out []domain.SuspiciousActivity
	for _, ip := range sortedKeys(hits) {
		out = append(out, domain.SuspiciousActivity{
			Type:       domain.SuspiciousCodePattern,
			IP:         ip,
			Detail:     fmt.Sprintf("%d low-entropy purchase codes submitted in the last 24 hours", hits[ip]),
			Count:      hits[ip],
			DetectedAt: now,
		})
	}
	return out
}

func matchBotSignature(userAgent string) string {
	agent := strings.ToLower(userAgent)
	if agent == "" {
		return ""
	}
	for _, signature := range botSignatures {
		if strings.Contains(agent, signature) {
			return signature
		}
	}
	return ""
}

func sortedKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
