package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"passthrough-proxy/internal/client"
	"passthrough-proxy/internal/config"
	"passthrough-proxy/internal/exchange"
	"passthrough-proxy/internal/metrics"
	"passthrough-proxy/internal/middleware"
	"passthrough-proxy/internal/model"
	"passthrough-proxy/internal/service"
)

func TestRegisterRoutes_Wiring(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Backend-Path", r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer backend.Close()

	tests := []struct {
		name           string
		metricsEnabled bool
		method         string
		path           string
		wantStatus     int
		wantRelayed    bool
	}{
		{"GET /healthz", false, http.MethodGet, "/healthz", http.StatusOK, false},
		{"GET /proxy/status", false, http.MethodGet, "/proxy/status", http.StatusOK, false},
		{"GET /", false, http.MethodGet, "/", http.StatusAccepted, true},
		{"GET nested path", false, http.MethodGet, "/api/v1/items?x=1", http.StatusAccepted, true},
		{"DELETE nested path", false, http.MethodDelete, "/api/v1/items/7", http.StatusAccepted, true},
		{"metrics served when enabled", true, http.MethodGet, "/metrics", http.StatusOK, false},
		{"metrics path relayed when disabled", false, http.MethodGet, "/metrics", http.StatusAccepted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Upstream: config.UpstreamConfig{BaseURL: backend.URL, IdleConnections: 10},
				Metrics:  config.MetricsConfig{Enabled: tt.metricsEnabled, Path: "/metrics"},
			}
			logger := discardLogger()
			m := metrics.New()
			bc, err := client.NewBackendClient(cfg, logger, m)
			if err != nil {
				t.Fatalf("NewBackendClient: %v", err)
			}
			svc := service.NewProxyService(bc, logger, m)

			e := echo.New()
			RegisterRoutes(e, cfg, m, NewProxyHandler(svc, logger), NewHealthHandler(cfg, "test"))

			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			relayed := rec.Header().Get("X-Backend-Path") != ""
			if relayed != tt.wantRelayed {
				t.Errorf("relayed = %v, want %v", relayed, tt.wantRelayed)
			}
			if tt.metricsEnabled && !strings.Contains(rec.Body.String(), "go_goroutines") {
				t.Error("metrics output missing Go collector")
			}
		})
	}
}

func newChainServer(t *testing.T, cfg *config.Config, m *metrics.Metrics, svc *service.ProxyService) *httptest.Server {
	t.Helper()
	logger := discardLogger()

	e := echo.New()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.MetricsMiddleware(m, cfg.Metrics.Path))
	RegisterRoutes(e, cfg, m, NewProxyHandler(svc, logger), NewHealthHandler(cfg, "test"))

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

// rawGet sends only the headers it is given.
func rawGet(t *testing.T, url string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	req.Header = header
	req.Header["User-Agent"] = []string{""}

	c := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRelay_HeadersThroughMiddlewareChain(t *testing.T) {
	var backendSaw http.Header
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backendSaw = r.Header.Clone()
		w.Header().Set("Date", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Length", "2")
		w.Header().Set("X-Backend", "1")
		_, _ = w.Write([]byte("hi"))
	}))
	defer backend.Close()

	cfg := &config.Config{
		Upstream: config.UpstreamConfig{BaseURL: backend.URL, IdleConnections: 10},
		Metrics:  config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	m := metrics.New()
	bc, err := client.NewBackendClient(cfg, discardLogger(), m)
	if err != nil {
		t.Fatalf("NewBackendClient: %v", err)
	}
	srv := newChainServer(t, cfg, m, service.NewProxyService(bc, discardLogger(), m))

	resp := rawGet(t, srv.URL+"/hello", http.Header{"X-Test": {"1"}})

	if want := (http.Header{"X-Test": {"1"}}); !reflect.DeepEqual(backendSaw, want) {
		t.Errorf("backend saw %v, want exactly %v", backendSaw, want)
	}
	want := http.Header{
		"Date":           {"Mon, 02 Jan 2006 15:04:05 GMT"},
		"Content-Type":   {"text/plain"},
		"Content-Length": {"2"},
		"X-Backend":      {"1"},
	}
	if !reflect.DeepEqual(resp.Header, want) {
		t.Errorf("client got headers %v, want exactly %v", resp.Header, want)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "hi" {
		t.Errorf("body = %q, want %q", body, "hi")
	}
}

func TestRelay_NoServerDefaultsThroughMiddlewareChain(t *testing.T) {
	d := exchange.DispatcherFunc(func(req *model.RequestDescriptor) (*exchange.PendingExchange, error) {
		p := exchange.NewPendingExchange()
		go func() {
			_, _ = io.Copy(io.Discard, req.Body)
			p.Resolve(&model.ResponseDescriptor{
				StatusCode: http.StatusOK,
				Header:     http.Header{"X-Only": {"1"}},
				Body:       io.NopCloser(strings.NewReader("abc")),
			}, nil)
		}()
		return p, nil
	})
	cfg := &config.Config{Metrics: config.MetricsConfig{Path: "/metrics"}}
	m := metrics.New()
	srv := newChainServer(t, cfg, m, service.NewProxyService(d, discardLogger(), m))

	resp := rawGet(t, srv.URL+"/", http.Header{})

	if want := (http.Header{"X-Only": {"1"}}); !reflect.DeepEqual(resp.Header, want) {
		t.Errorf("client got headers %v, want exactly %v", resp.Header, want)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "abc" {
		t.Errorf("body = %q, want %q", body, "abc")
	}

	// The proxy's own endpoints keep the request id.
	health := rawGet(t, srv.URL+"/healthz", http.Header{})
	if health.Header.Get(echo.HeaderXRequestID) == "" {
		t.Error("proxy-owned response missing X-Request-Id")
	}
}
