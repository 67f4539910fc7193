// Package client provides the backend HTTP client that dispatches relayed requests.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"passthrough-proxy/internal/config"
	"passthrough-proxy/internal/exchange"
	"passthrough-proxy/internal/metrics"
	"passthrough-proxy/internal/model"
)

// ErrNoTarget is returned when neither a base URL nor the request's own
// scheme and authority name a backend.
var ErrNoTarget = errors.New("no backend target: configure upstream.base_url or send an authority")

// BackendClient sends relayed requests to the backend.
type BackendClient struct {
	httpClient *http.Client
	baseURL    *url.URL
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewBackendClient creates a BackendClient with connection pooling.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewBackendClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*BackendClient, error) {
	var base *url.URL
	if cfg.Upstream.BaseURL != "" {
		u, err := url.Parse(cfg.Upstream.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse upstream base_url: %w", err)
		}
		base = u
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		// Content-Encoding and Content-Length of the backend response are relayed as sent.
		DisableCompression:  true,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &BackendClient{
		httpClient: &http.Client{
			Transport: transport,
			// Redirects are relayed to the caller, not followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: base,
		logger:  logger.With("component", "backend_client"),
		metrics: m,
	}, nil
}

// Dispatch builds the backend request and submits it. It returns as soon as
// the request is handed to the transport; the returned exchange resolves when
// the backend's response headers arrive or the round trip fails.
func (c *BackendClient) Dispatch(req *model.RequestDescriptor) (*exchange.PendingExchange, error) {
	httpReq, err := c.newRequest(req)
	if err != nil {
		return nil, exchange.Wrap(exchange.KindDispatch, err)
	}

	c.logger.Debug("dispatching request",
		"method", httpReq.Method,
		"url", httpReq.URL.Redacted(),
		"host", httpReq.Host,
	)

	pending := exchange.NewPendingExchange()
	go c.roundTrip(httpReq, pending)
	return pending, nil
}

func (c *BackendClient) roundTrip(req *http.Request, pending *exchange.PendingExchange) {
	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to the session via ResponseDescriptor
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)
	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
	}

	if err != nil {
		pending.Resolve(nil, fmt.Errorf("upstream request: %w", err))
		return
	}

	if c.metrics != nil {
		c.metrics.UpstreamResponses.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	}

	pending.Resolve(&model.ResponseDescriptor{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil)
}

// newRequest converts a descriptor into an *http.Request aimed at the backend.
// The request context is detached from the caller's cancellation: once
// dispatched an exchange runs to completion.
func (c *BackendClient) newRequest(req *model.RequestDescriptor) (*http.Request, error) {
	target, err := c.targetURL(req)
	if err != nil {
		return nil, err
	}

	ctx := req.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	httpReq, err := http.NewRequestWithContext(context.WithoutCancel(ctx), req.Method, target.String(), req.Body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	httpReq.Header = model.CloneHeader(req.Header)
	if _, ok := httpReq.Header["User-Agent"]; !ok {
		// An empty value keeps net/http from sending its default User-Agent.
		httpReq.Header["User-Agent"] = []string{""}
	}
	if req.Authority != "" {
		httpReq.Host = req.Authority
	}
	if cl := httpReq.Header.Get("Content-Length"); cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid Content-Length %q", cl)
		}
		httpReq.ContentLength = n
	}
	return httpReq, nil
}

// targetURL resolves where the request is sent: the configured base URL when
// set, otherwise the descriptor's own scheme and authority.
func (c *BackendClient) targetURL(req *model.RequestDescriptor) (*url.URL, error) {
	pathWithQuery := req.PathWithQuery
	if pathWithQuery == "" {
		pathWithQuery = "/"
	}

	ref, err := url.ParseRequestURI(pathWithQuery)
	if err != nil {
		return nil, fmt.Errorf("invalid path-with-query %q: %w", pathWithQuery, err)
	}

	var u url.URL
	switch {
	case c.baseURL != nil:
		u = *c.baseURL
		u.Path = joinPath(c.baseURL.Path, ref.Path)
		if ref.RawPath != "" {
			u.RawPath = joinPath(c.baseURL.EscapedPath(), ref.RawPath)
		} else {
			u.RawPath = ""
		}
	case req.Authority != "":
		u.Scheme = req.Scheme
		if u.Scheme == "" {
			u.Scheme = "http"
		}
		u.Host = req.Authority
		u.Path = ref.Path
		u.RawPath = ref.RawPath
	default:
		return nil, ErrNoTarget
	}
	u.RawQuery = ref.RawQuery
	return &u, nil
}

// joinPath appends p to a base path without doubling the separator.
func joinPath(base, p string) string {
	switch {
	case base == "" || base == "/":
		return p
	case len(base) > 0 && base[len(base)-1] == '/' && len(p) > 0 && p[0] == '/':
		return base + p[1:]
	default:
		return base + p
	}
}
