package interceptors

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/shubra2641/liceinc/internal/infra/security"
)

const (
	authorizationKey = "authorization"
	bearerPrefix     = "bearer "
)

// AdminTokenValidator validates operator bearer tokens.
type AdminTokenValidator interface {
	Validate(token string) (*security.AdminClaims, error)
}

// AuthOptions fine-tunes interceptor behaviour.
type AuthOptions struct {
	AllowMethods []string
	Logger       *zap.Logger
}

// AuthInterceptor requires an operator token on every method outside the allow list.
type AuthInterceptor struct {
	validator AdminTokenValidator
	logger    *zap.Logger
	allow     map[string]struct{}
}

// NewAuthInterceptor constructs a new AuthInterceptor instance.
func NewAuthInterceptor(validator AdminTokenValidator, opts AuthOptions) *AuthInterceptor {
	allow := make(map[string]struct{}, len(opts.AllowMethods))
	for _, method := range opts.AllowMethods {
		if method = strings.TrimSpace(method); method != "" {
			allow[method] = struct{}{}
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthInterceptor{validator: validator, logger: logger, allow: allow}
}

// UnaryServerInterceptor enforces operator authentication on unary calls.
func (ai *AuthInterceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		authed, err := ai.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(authed, req)
	}
}

// StreamServerInterceptor enforces operator authentication on streams such as reflection.
func (ai *AuthInterceptor) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		authed, err := ai.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &authenticatedStream{ServerStream: ss, ctx: authed})
	}
}

func (ai *AuthInterceptor) authenticate(ctx context.Context, method string) (context.Context, error) {
	if ai == nil || ai.validator == nil {
		return ctx, nil
	}
	if _, ok := ai.allow[method]; ok {
		return ctx, nil
	}

	token, err := tokenFromMetadata(ctx)
	if err != nil {
		ai.logger.Warn("grpc authentication failed", zap.String("method", method), zap.Error(err))
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	claims, err := ai.validator.Validate(token)
	if err != nil {
		ai.logger.Warn("grpc token validation failed", zap.String("method", method), zap.Error(err))
		if errors.Is(err, security.ErrAdminTokenInvalid) {
			return nil, status.Error(codes.Unauthenticated, "invalid access token")
		}
		return nil, status.Error(codes.Unauthenticated, "failed to validate access token")
	}

	return WithAdminSubject(ctx, claims.Subject), nil
}

type authenticatedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authenticatedStream) Context() context.Context {
	return s.ctx
}

type subjectContextKey struct{}

// WithAdminSubject returns a derived context carrying the operator subject.
func WithAdminSubject(ctx context.Context, subject string) context.Context {
	if subject == "" {
		return ctx
	}
	return context.WithValue(ctx, subjectContextKey{}, subject)
}

// AdminSubjectFromContext extracts the operator subject when available.
func AdminSubjectFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	subject, ok := ctx.Value(subjectContextKey{}).(string)
	return subject, ok && subject != ""
}

func tokenFromMetadata(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("missing metadata")
	}

	values := md.Get(authorizationKey)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return "", errors.New("authorization token required")
	}

	value := strings.TrimSpace(values[0])
	if len(value) < len(bearerPrefix) || !strings.HasPrefix(strings.ToLower(value), bearerPrefix) {
		return "", errors.New("invalid authorization header")
	}

	token := strings.TrimSpace(value[len(bearerPrefix):])
	if token == "" {
		return "", errors.New("authorization token required")
	}

	return token, nil
}
