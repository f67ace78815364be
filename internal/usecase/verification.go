package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/core/port"
	"github.com/shubra2641/liceinc/internal/repository"
)

// LookupSource names the store that satisfied a verification.
type LookupSource string

const (
	LookupLocal  LookupSource = "local"
	LookupRemote LookupSource = "remote"
)

// unspecifiedDomain is recorded in the audit log when the caller supplies no domain.
const unspecifiedDomain = "unspecified.invalid"

// PurchaseVerification is the outcome of a purchase code verification.
// Err carries a domain taxonomy error when Success is false.
type PurchaseVerification struct {
	Success bool
	Source  LookupSource
	License *domain.License
	Sale    *domain.MarketplaceSale
	Err     error
}

// LicenseCheck is a caller request to validate a code, optionally for a domain.
type LicenseCheck struct {
	Code              string
	Domain            string
	Activate          bool
	ActivationContext map[string]any
	Source            domain.VerificationSource
	Meta              domain.RequestMeta
}

// LicenseVerification is the caller-facing result of VerifyLicense.
type LicenseVerification struct {
	Valid      bool
	Message    string
	Err        error
	Source     LookupSource
	License    *domain.LicenseView
	Activation *domain.ActivationResult
}

// VerificationOptions configures the orchestrator.
type VerificationOptions struct {
	RemoteTimeout         time.Duration
	CacheTTL              time.Duration
	MaterializeFromRemote bool
}

// VerificationService orchestrates local and remote purchase code verification.
type VerificationService struct {
	licenses    port.LicenseRepository
	products    port.ProductRepository
	remote      port.MarketplaceVerifier
	keys        port.LicenseKeyGenerator
	hasher      port.CodeHasher
	hostnames   port.HostnameValidator
	cache       port.VerificationCache
	events      port.EventPublisher
	audit       *AuditLogger
	activations *ActivationService
	guard       *AttemptGuard
	metrics     LicensingMetrics
	logger      *zap.Logger
	now         func() time.Time
	opts        VerificationOptions
}

// NewVerificationService constructs the orchestrator.
func NewVerificationService(licenses port.LicenseRepository, products port.ProductRepository, remote port.MarketplaceVerifier, keys port.LicenseKeyGenerator, hasher port.CodeHasher, hostnames port.HostnameValidator, opts VerificationOptions) *VerificationService {
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = 10 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	return &VerificationService{
		licenses:  licenses,
		products:  products,
		remote:    remote,
		keys:      keys,
		hasher:    hasher,
		hostnames: hostnames,
		metrics:   noopMetrics{},
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
		opts:      opts,
	}
}

// WithCache attaches the verification cache.
func (s *VerificationService) WithCache(cache port.VerificationCache) *VerificationService {
	s.cache = cache
	return s
}

// WithEvents attaches the event publisher.
func (s *VerificationService) WithEvents(events port.EventPublisher) *VerificationService {
	s.events = events
	return s
}

// WithAudit attaches the audit logger used by VerifyLicense.
func (s *VerificationService) WithAudit(audit *AuditLogger) *VerificationService {
	s.audit = audit
	return s
}

// WithActivations attaches the domain activation manager used by VerifyLicense.
func (s *VerificationService) WithActivations(activations *ActivationService) *VerificationService {
	s.activations = activations
	return s
}

// WithGuard attaches per-IP attempt limits.
func (s *VerificationService) WithGuard(guard *AttemptGuard) *VerificationService {
	s.guard = guard
	return s
}

// WithMetrics attaches telemetry hooks.
func (s *VerificationService) WithMetrics(metrics LicensingMetrics) *VerificationService {
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

// WithLogger attaches a structured logger.
func (s *VerificationService) WithLogger(logger *zap.Logger) *VerificationService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithNow overrides the clock.
func (s *VerificationService) WithNow(now func() time.Time) *VerificationService {
	if now != nil {
		s.now = now
	}
	return s
}

// Verify checks a purchase code against the local store first and the marketplace second.
// A license is materialized from a marketplace sale only when both productID and userID are supplied.
func (s *VerificationService) Verify(ctx context.Context, rawCode string, productID, userID *int64) (PurchaseVerification, error) {
	ctx, span := tracer.Start(ctx, "VerificationService.Verify")
	defer span.End()

	code, err := NormalizePurchaseCode(rawCode)
	if err != nil {
		return PurchaseVerification{Err: err}, nil
	}

	license, err := s.lookupLocal(ctx, code, productID)
	switch {
	case err == nil:
		span.SetAttributes(attribute.String("license.source", string(LookupLocal)))
		if usableErr := license.CheckUsable(s.now()); usableErr != nil {
			return PurchaseVerification{Source: LookupLocal, License: license, Err: usableErr}, nil
		}
		return PurchaseVerification{Success: true, Source: LookupLocal, License: license}, nil
	case !errors.Is(err, repository.ErrNotFound):
		span.RecordError(err)
		span.SetStatus(codes.Error, "local lookup failed")
		return PurchaseVerification{}, fmt.Errorf("local license lookup: %w", err)
	}

	sale, remoteErr := s.verifyRemote(ctx, code)
	if remoteErr != nil {
		return PurchaseVerification{Source: LookupRemote, Err: remoteErr}, nil
	}
	span.SetAttributes(attribute.String("license.source", string(LookupRemote)))

	if productID == nil || userID == nil || !s.opts.MaterializeFromRemote {
		return PurchaseVerification{Success: true, Source: LookupRemote, Sale: sale}, nil
	}

	// The remote call has returned; the local write must not be torn by caller cancellation.
	created, err := s.materialize(context.WithoutCancel(ctx), code, *productID, *userID, sale)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPurchaseCode) {
			return PurchaseVerification{Source: LookupRemote, Sale: sale, Err: err}, nil
		}
		span.RecordError(err)
		return PurchaseVerification{}, err
	}
	return PurchaseVerification{Success: true, Source: LookupRemote, License: created, Sale: sale}, nil
}

func (s *VerificationService) lookupLocal(ctx context.Context, code string, productID *int64) (*domain.License, error) {
	codeHash := s.hasher.Hash(code)
	if s.cache != nil {
		cached, err := s.cache.GetLicense(ctx, codeHash)
		switch {
		case err == nil && cached != nil && (productID == nil || cached.ProductID == *productID):
			return cached, nil
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			s.logger.Warn("verification cache read failed", zap.Error(err))
		}
	}

	license, err := s.licenses.FindByCode(ctx, code, productID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && license.IsUsable(s.now()) {
		if err := s.cache.SetLicense(ctx, codeHash, *license, s.opts.CacheTTL); err != nil {
			s.logger.Warn("verification cache write failed", zap.Error(err))
		}
	}
	return license, nil
}

func (s *VerificationService) verifyRemote(ctx context.Context, code string) (*domain.MarketplaceSale, error) {
	if s.remote == nil {
		return nil, domain.ErrInvalidPurchaseCode
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.RemoteTimeout)
	defer cancel()

	sale, err := s.remote.VerifyPurchaseCode(ctx, code)
	switch {
	case err == nil && sale != nil && sale.Usable():
		s.metrics.IncRemoteCall("success")
		return sale, nil
	case err == nil, errors.Is(err, port.ErrMarketplaceRejected):
		s.metrics.IncRemoteCall("rejected")
		return nil, domain.ErrInvalidPurchaseCode
	case errors.Is(err, port.ErrMarketplaceTimeout), errors.Is(err, context.DeadlineExceeded):
		s.metrics.IncRemoteCall("timeout")
		s.logger.Warn("marketplace verification timed out", zap.Duration("timeout", s.opts.RemoteTimeout))
		return nil, fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
	default:
		s.metrics.IncRemoteCall("error")
		s.logger.Warn("marketplace verification failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
	}
}

// claimedLicense resolves a unique-code conflict. A purchase code binds to one license
// store-wide, so a row held by another product means the code is not valid here.
func (s *VerificationService) claimedLicense(ctx context.Context, code string, productID int64) (*domain.License, error) {
	existing, err := s.licenses.FindByCode(ctx, code, nil)
	if err != nil {
		return nil, fmt.Errorf("load conflicting license: %w", err)
	}
	if existing.ProductID != productID {
		return nil, fmt.Errorf("%w: purchase code is bound to another product", domain.ErrInvalidPurchaseCode)
	}
	return existing, nil
}

func (s *VerificationService) materialize(ctx context.Context, code string, productID, userID int64, sale *domain.MarketplaceSale) (*domain.License, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown product %d", domain.ErrInvalidPurchaseCode, productID)
		}
		return nil, fmt.Errorf("load product: %w", err)
	}
	if product.MarketplaceItemID != "" && sale.ItemID != "" && product.MarketplaceItemID != sale.ItemID {
		return nil, fmt.Errorf("%w: purchase is for a different item", domain.ErrInvalidPurchaseCode)
	}

	licenseType := domain.LicenseTypeFromMarketplace(sale.LicenseLabel, product.DefaultLicenseType)
	policy, err := domain.PolicyFor(licenseType)
	if err != nil {
		return nil, err
	}

	key, err := s.keys.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate license key: %w", err)
	}

	now := s.now()
	licenseTerm := policy.LicenseTerm
	if product.LicenseTermDays > 0 {
		licenseTerm = time.Duration(product.LicenseTermDays) * 24 * time.Hour
	}
	supportTerm := policy.SupportTerm
	if product.SupportTermDays > 0 {
		supportTerm = time.Duration(product.SupportTermDays) * 24 * time.Hour
	}
	licenseExpiry := now.Add(licenseTerm)
	supportExpiry := now.Add(supportTerm)
	if sale.SupportedUntil != nil {
		supportExpiry = sale.SupportedUntil.UTC()
	}

	metadata := make(map[string]any, len(sale.Raw)+3)
	for k, v := range sale.Raw {
		metadata[k] = v
	}
	metadata["item_id"] = sale.ItemID
	metadata["buyer"] = sale.Buyer
	metadata["license_label"] = sale.LicenseLabel

	uid := userID
	candidate := domain.License{
		PurchaseCode:        code,
		LicenseKey:          key,
		UserID:              &uid,
		ProductID:           product.ID,
		Type:                licenseType,
		Status:              domain.LicenseStatusActive,
		MaxDomains:          policy.MaxDomains,
		LicenseExpiresAt:    &licenseExpiry,
		SupportExpiresAt:    &supportExpiry,
		MarketplaceMetadata: metadata,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	created, err := s.licenses.Create(ctx, candidate)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return s.claimedLicense(ctx, code, productID)
		}
		return nil, fmt.Errorf("create license: %w", err)
	}

	if s.events != nil {
		event := domain.LicenseMaterializedEvent{
			EventID:     uuid.NewString(),
			LicenseID:   created.ID,
			LicenseKey:  created.LicenseKey,
			ProductID:   created.ProductID,
			UserID:      created.UserID,
			LicenseType: created.Type,
			CreatedAt:   now,
			Metadata:    map[string]any{"item_id": sale.ItemID},
		}
		if err := s.events.PublishLicenseMaterialized(ctx, event); err != nil {
			s.logger.Warn("publish license materialized event failed", zap.Int64("license_id", created.ID), zap.Error(err))
		}
	}

	s.logger.Info("license materialized from marketplace sale",
		zap.Int64("license_id", created.ID),
		zap.Int64("product_id", created.ProductID),
		zap.String("license_type", string(created.Type)),
	)
	return created, nil
}

// VerifyLicense validates a code for an optional domain, activating it on request, and records the attempt.
func (s *VerificationService) VerifyLicense(ctx context.Context, check LicenseCheck) (LicenseVerification, error) {
	ctx, span := tracer.Start(ctx, "VerificationService.VerifyLicense")
	defer span.End()
	started := time.Now()

	if check.Source == "" {
		check.Source = domain.SourceAPI
	}

	if !s.guard.Allow(ctx, ActionVerify, check.Meta.IP) {
		s.metrics.ObserveVerification("", "rate_limited", time.Since(started))
		return failedVerification(domain.ErrRateLimited), nil
	}

	code, err := NormalizePurchaseCode(check.Code)
	if err != nil {
		s.metrics.ObserveVerification("", "invalid_format", time.Since(started))
		return failedVerification(err), nil
	}

	host := domain.CanonicalDomain(check.Domain)
	if check.Domain != "" && (host == "" || s.hostnames == nil || !s.hostnames.ValidHostname(host)) {
		s.metrics.ObserveVerification("", "invalid_domain", time.Since(started))
		return failedVerification(domain.ErrInvalidDomain), nil
	}

	outcome, err := s.Verify(ctx, code, nil, nil)
	if err != nil {
		span.RecordError(err)
		s.record(ctx, code, host, check, LicenseVerification{Err: domain.ErrSystem}, auditDetail(err))
		s.metrics.ObserveVerification("", "error", time.Since(started))
		return LicenseVerification{}, err
	}

	result := s.resolveLicenseVerification(ctx, outcome, host, check)

	detail := ""
	if !result.Valid && (errors.Is(result.Err, domain.ErrRemoteUnavailable) || errors.Is(result.Err, domain.ErrSystem)) {
		detail = auditDetail(result.Err)
	}
	s.record(ctx, code, host, check, result, detail)

	label := "success"
	if !result.Valid {
		label = errorLabel(result.Err)
	}
	span.SetAttributes(attribute.Bool("license.valid", result.Valid), attribute.String("license.outcome", label))
	s.metrics.ObserveVerification(string(result.Source), label, time.Since(started))
	return result, nil
}

// VerifyPurchase runs Verify for an install-time caller and records the attempt.
// Format rejections are returned without being recorded.
func (s *VerificationService) VerifyPurchase(ctx context.Context, rawCode string, productID, userID *int64, meta domain.RequestMeta) (PurchaseVerification, error) {
	started := time.Now()
	if !s.guard.Allow(ctx, ActionVerify, meta.IP) {
		s.metrics.ObserveVerification("", "rate_limited", time.Since(started))
		return PurchaseVerification{Err: domain.ErrRateLimited}, nil
	}

	code, err := NormalizePurchaseCode(rawCode)
	if err != nil {
		s.metrics.ObserveVerification("", "invalid_format", time.Since(started))
		return PurchaseVerification{Err: err}, nil
	}

	check := LicenseCheck{Code: code, Source: domain.SourceInstall, Meta: meta}
	outcome, err := s.Verify(ctx, code, productID, userID)
	if err != nil {
		s.record(ctx, code, "", check, LicenseVerification{Err: domain.ErrSystem}, auditDetail(err))
		s.metrics.ObserveVerification("", "error", time.Since(started))
		return PurchaseVerification{}, err
	}

	result := LicenseVerification{
		Valid:   outcome.Success,
		Err:     outcome.Err,
		Source:  outcome.Source,
		Message: VerificationMessage(outcome.Err),
	}
	if outcome.License != nil {
		view := domain.NewLicenseView(*outcome.License, s.now())
		result.License = &view
	}
	detail := ""
	if errors.Is(outcome.Err, domain.ErrRemoteUnavailable) {
		detail = auditDetail(outcome.Err)
	}
	s.record(ctx, code, "", check, result, detail)
	s.metrics.ObserveVerification(string(outcome.Source), errorLabel(outcome.Err), time.Since(started))
	return outcome, nil
}

func (s *VerificationService) resolveLicenseVerification(ctx context.Context, outcome PurchaseVerification, host string, check LicenseCheck) LicenseVerification {
	result := LicenseVerification{Source: outcome.Source}
	if !outcome.Success {
		result.Err = outcome.Err
		result.Message = VerificationMessage(outcome.Err)
		return result
	}

	if outcome.License == nil {
		result.Valid = true
		result.Message = "Purchase code verified by marketplace"
		return result
	}

	license := *outcome.License
	view := domain.NewLicenseView(license, s.now())
	result.License = &view

	if host != "" && s.activations != nil {
		if check.Activate {
			activation, err := s.activations.Activate(ctx, license.ID, host, check.ActivationContext)
			if err != nil {
				result.Err = classifyActivationError(err)
				result.Message = VerificationMessage(result.Err)
				if errors.Is(result.Err, domain.ErrSystem) {
					s.logger.Error("activation during verification failed", zap.Int64("license_id", license.ID), zap.Error(err))
				}
				return result
			}
			result.Activation = activation
			view.ActivationCount = activation.ActivationCount
		} else {
			authorized, err := s.activations.IsDomainAuthorized(ctx, license, host)
			if err != nil {
				s.logger.Error("domain authorization lookup failed", zap.Int64("license_id", license.ID), zap.Error(err))
				result.Err = domain.ErrSystem
				result.Message = VerificationMessage(domain.ErrSystem)
				return result
			}
			if !authorized {
				result.Err = domain.ErrDomainNotAuthorized
				result.Message = VerificationMessage(domain.ErrDomainNotAuthorized)
				return result
			}
		}
	}

	result.Valid = true
	result.Message = VerificationMessage(nil)
	return result
}

func (s *VerificationService) record(ctx context.Context, code, host string, check LicenseCheck, result LicenseVerification, detail string) {
	if host == "" {
		host = unspecifiedDomain
	}

	response := map[string]any{
		"valid":  result.Valid,
		"source": string(result.Source),
	}
	if result.Err != nil {
		response["error"] = errorLabel(result.Err)
	}
	if IsSuspiciousPurchaseCode(code) {
		response[SuspiciousCodeFlag] = true
	}
	if result.License != nil {
		response["status"] = string(result.License.Status)
		response["license_type"] = string(result.License.Type)
		response["product_id"] = result.License.ProductID
	}

	message := result.Message
	if message == "" {
		message = VerificationMessage(result.Err)
	}

	if s.audit != nil {
		input := AuditInput{
			Code:         code,
			Domain:       host,
			IsValid:      result.Valid,
			Message:      message,
			ResponseData: response,
			Source:       check.Source,
			Meta:         check.Meta,
			ErrorDetail:  detail,
		}
		if _, err := s.audit.Log(ctx, input); err != nil {
			s.logger.Warn("record verification attempt failed", zap.Error(err))
		}
	}

	if !result.Valid && s.events != nil {
		event := domain.VerificationFailedEvent{
			EventID:   uuid.NewString(),
			CodeHash:  s.hasher.Hash(code),
			Domain:    host,
			IPAddress: check.Meta.IP,
			Status:    domain.DeriveVerificationStatus(false, detail),
			Message:   message,
			At:        s.now(),
		}
		if err := s.events.PublishVerificationFailed(ctx, event); err != nil {
			s.logger.Warn("publish verification failed event", zap.Error(err))
		}
	}
}

func failedVerification(err error) LicenseVerification {
	return LicenseVerification{Err: err, Message: VerificationMessage(err)}
}

func classifyActivationError(err error) error {
	for _, known := range []error{
		domain.ErrLicenseNotFound,
		domain.ErrLicenseInactive,
		domain.ErrLicenseExpired,
		domain.ErrInvalidDomain,
		domain.ErrDomainLimitReached,
	} {
		if errors.Is(err, known) {
			return known
		}
	}
	return domain.ErrSystem
}

// VerificationMessage renders the caller-facing message for a verification outcome.
func VerificationMessage(err error) string {
	switch {
	case err == nil:
		return "License verified successfully"
	case errors.Is(err, domain.ErrInvalidFormat):
		return "Invalid purchase code format"
	case errors.Is(err, domain.ErrInvalidPurchaseCode), errors.Is(err, domain.ErrLicenseNotFound):
		return "Invalid purchase code"
	case errors.Is(err, domain.ErrLicenseInactive):
		return "License is not active"
	case errors.Is(err, domain.ErrLicenseExpired):
		return "License has expired"
	case errors.Is(err, domain.ErrInvalidDomain):
		return "Invalid domain"
	case errors.Is(err, domain.ErrDomainNotAuthorized):
		return "Domain is not authorized for this license"
	case errors.Is(err, domain.ErrDomainLimitReached):
		return "Maximum number of domains reached for this license"
	case errors.Is(err, domain.ErrRemoteUnavailable):
		return "License verification service is temporarily unavailable"
	case errors.Is(err, domain.ErrRateLimited):
		return "Too many verification attempts, try again later"
	default:
		return "An unexpected error occurred"
	}
}

// auditDetail describes a failure for the audit log using fixed labels only. Collaborator
// error text can carry request URLs and with them the purchase code.
func auditDetail(err error) string {
	switch {
	case errors.Is(err, port.ErrMarketplaceTimeout), errors.Is(err, context.DeadlineExceeded):
		return "remote_unavailable: marketplace timed out"
	case errors.Is(err, domain.ErrRemoteUnavailable):
		return "remote_unavailable: marketplace unreachable"
	default:
		return "system_error"
	}
}

func errorLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(err, domain.ErrInvalidPurchaseCode), errors.Is(err, domain.ErrLicenseNotFound):
		return "invalid_purchase_code"
	case errors.Is(err, domain.ErrLicenseInactive):
		return "license_inactive"
	case errors.Is(err, domain.ErrLicenseExpired):
		return "license_expired"
	case errors.Is(err, domain.ErrInvalidDomain):
		return "invalid_domain"
	case errors.Is(err, domain.ErrDomainNotAuthorized):
		return "domain_not_authorized"
	case errors.Is(err, domain.ErrDomainLimitReached):
		return "domain_limit_reached"
	case errors.Is(err, domain.ErrRemoteUnavailable):
		return "remote_unavailable"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	default:
		return "system_error"
	}
}
