package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/core/port"
	"github.com/shubra2641/liceinc/internal/infra/config"
)

const (
	salePath         = "/v3/market/author/sale"
	maxResponseBytes = 1 << 20
)

// Client verifies purchase codes against the marketplace sale API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	group   singleflight.Group
	logger  *zap.Logger
}

// NewClient builds a client with an instrumented transport and an outbound rate limiter.
func NewClient(cfg config.MarketplaceSettings, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

var _ port.MarketplaceVerifier = (*Client)(nil)

type saleResponse struct {
	Amount         string     `json:"amount"`
	SoldAt         *time.Time `json:"sold_at"`
	License        string     `json:"license"`
	SupportAmount  string     `json:"support_amount"`
	SupportedUntil *time.Time `json:"supported_until"`
	Buyer          string     `json:"buyer"`
	PurchaseCount  int        `json:"purchase_count"`
	Item           struct {
		ID   json.Number `json:"id"`
		Name string      `json:"name"`
	} `json:"item"`
}

// VerifyPurchaseCode looks up the sale for a normalized code. Concurrent lookups of the same code share one request.
func (c *Client) VerifyPurchaseCode(ctx context.Context, code string) (*domain.MarketplaceSale, error) {
	ch := c.group.DoChan(code, func() (any, error) {
		// Detach from the first caller's cancellation; the http client timeout still bounds the call.
		return c.fetch(context.WithoutCancel(ctx), code)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		sale := *res.Val.(*domain.MarketplaceSale)
		return &sale, nil
	case <-ctx.Done():
		return nil, classifyContextError(ctx.Err())
	}
}

func (c *Client) fetch(ctx context.Context, code string) (*domain.MarketplaceSale, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", port.ErrMarketplaceUnavailable, err)
	}

	endpoint := c.baseURL + salePath + "?" + url.Values{"code": {code}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", port.ErrMarketplaceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(err)
	}

	c.logger.Debug("marketplace sale lookup",
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(started)),
	)

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusBadRequest:
		return nil, port.ErrMarketplaceRejected
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusGatewayTimeout:
		return nil, port.ErrMarketplaceTimeout
	default:
		return nil, fmt.Errorf("%w: status %d", port.ErrMarketplaceUnavailable, resp.StatusCode)
	}

	var payload saleResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode sale: %v", port.ErrMarketplaceUnavailable, err)
	}

	var raw map[string]any
	_ = json.Unmarshal(body, &raw)

	sale := &domain.MarketplaceSale{
		ItemID:         payload.Item.ID.String(),
		ItemName:       payload.Item.Name,
		Buyer:          payload.Buyer,
		LicenseLabel:   payload.License,
		SoldAt:         payload.SoldAt,
		SupportedUntil: payload.SupportedUntil,
		Raw:            raw,
	}
	if !sale.Usable() {
		return nil, port.ErrMarketplaceRejected
	}
	return sale, nil
}

// classifyTransportError maps a failed round trip onto the port errors. The request URL
// carries the purchase code, so *url.Error wrappers are dropped from the message.
func classifyTransportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return classifyContextError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return port.ErrMarketplaceTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %s %s", port.ErrMarketplaceUnavailable, opErr.Op, opErr.Net)
	}
	return port.ErrMarketplaceUnavailable
}

func classifyContextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return port.ErrMarketplaceTimeout
	}
	return fmt.Errorf("%w: request canceled", port.ErrMarketplaceUnavailable)
}
