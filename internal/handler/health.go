package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"passthrough-proxy/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

type statusResponse struct {
	Status   string         `json:"status"`
	Version  string         `json:"version"`
	Mode     string         `json:"mode"`
	Upstream string         `json:"upstream,omitempty"`
	Metrics  *metricsStatus `json:"metrics"`
}

type metricsStatus struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// HealthHandler serves the proxy's own liveness and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Healthz reports liveness. It never contacts the backend.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Status reports the build version, the relay mode and the metrics endpoint.
// Mode is "reverse" with the configured upstream, or "forward" when each
// request is routed by its own authority.
func (h *HealthHandler) Status(c echo.Context) error {
	resp := statusResponse{
		Status:  "ok",
		Version: string(h.version),
		Mode:    "forward",
		Metrics: &metricsStatus{Enabled: h.cfg.Metrics.Enabled},
	}
	if h.cfg.Upstream.BaseURL != "" {
		resp.Mode = "reverse"
		resp.Upstream = h.cfg.Upstream.BaseURL
	}
	if h.cfg.Metrics.Enabled {
		resp.Metrics.Path = h.cfg.Metrics.Path
	}
	return c.JSON(http.StatusOK, resp)
}
