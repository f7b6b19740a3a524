package ovh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	goovh "github.com/ovh/go-ovh/ovh"
	"golang.org/x/time/rate"

	"github.com/evanofslack/ovh-reconcile/internal/config"
	"github.com/evanofslack/ovh-reconcile/internal/gateway"
	"github.com/evanofslack/ovh-reconcile/internal/metrics"
)

// Client is the interface of *goovh.Client used by the gateway.
type Client interface {
	GetWithContext(ctx context.Context, url string, resType interface{}) error
	PostWithContext(ctx context.Context, url string, reqBody, resType interface{}) error
	PutWithContext(ctx context.Context, url string, reqBody, resType interface{}) error
	DeleteWithContext(ctx context.Context, url string, resType interface{}) error
}

type Gateway struct {
	client  Client
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

// New builds a gateway from config. Without explicit credentials the go-ovh
// default lookup (environment, ovh.conf) is used.
func New(cfg config.OVH, metrics *metrics.Metrics) (*Gateway, error) {
	var (
		client *goovh.Client
		err    error
	)
	if cfg.HasCredentials() {
		client, err = goovh.NewClient(cfg.Endpoint, cfg.ApplicationKey, cfg.ApplicationSecret, cfg.ConsumerKey)
	} else {
		client, err = goovh.NewEndpointClient(cfg.Endpoint)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create OVH client: %w", err)
	}
	return NewWithClient(client, cfg.RateLimit, metrics), nil
}

func NewWithClient(client Client, rateLimitRPS float64, metrics *metrics.Metrics) *Gateway {
	limit := rate.Inf
	burst := 1
	if rateLimitRPS > 0 {
		limit = rate.Limit(rateLimitRPS)
		burst = int(rateLimitRPS)
		if burst < 1 {
			burst = 1
		}
	}
	return &Gateway{
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		metrics: metrics,
	}
}

func (g *Gateway) Get(ctx context.Context, path string, query url.Values, out any) error {
	target := path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return g.do(ctx, http.MethodGet, target, func() error {
		return g.client.GetWithContext(ctx, target, out)
	})
}

func (g *Gateway) Post(ctx context.Context, path string, body, out any) error {
	return g.do(ctx, http.MethodPost, path, func() error {
		return g.client.PostWithContext(ctx, path, body, out)
	})
}

func (g *Gateway) Put(ctx context.Context, path string, body, out any) error {
	return g.do(ctx, http.MethodPut, path, func() error {
		return g.client.PutWithContext(ctx, path, body, out)
	})
}

func (g *Gateway) Delete(ctx context.Context, path string, out any) error {
	return g.do(ctx, http.MethodDelete, path, func() error {
		return g.client.DeleteWithContext(ctx, path, out)
	})
}

func (g *Gateway) do(ctx context.Context, method, path string, call func() error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return &gateway.Error{Method: method, Path: path, Err: err}
	}

	start := time.Now()
	err := call()
	g.metrics.IncGatewayRequest(method, err == nil)
	if err != nil {
		slog.Debug("OVH API call failed", "method", method, "path", path, "error", err, "duration", time.Since(start))
		return &gateway.Error{Method: method, Path: path, Err: translate(err)}
	}
	slog.Debug("OVH API call", "method", method, "path", path, "duration", time.Since(start))
	return nil
}

func translate(err error) error {
	var apiErr *goovh.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %s", gateway.ErrNotFound, apiErr.Message)
	}
	return err
}
