// Package middleware provides Echo middleware for request logging and metrics.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// RequestIDKey is the context key holding the request id.
const RequestIDKey = "request_id"

// RequestID returns echo's request id middleware with the id also kept on the
// context, so it stays available after a relayed response replaces the
// response headers.
func RequestID() echo.MiddlewareFunc {
	return echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, id string) {
			c.Set(RequestIDKey, id)
		},
	})
}

func requestID(c echo.Context) string {
	if id, ok := c.Get(RequestIDKey).(string); ok {
		return id
	}
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

// RequestLogger returns an Echo middleware that logs each request with slog.
// Server errors are logged at warn level. A response aborted mid-body is
// logged before the abort continues up to the server.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			defer func() {
				if r := recover(); r != nil {
					if r == http.ErrAbortHandler {
						logRequest(logger, c, start, "request aborted", slog.LevelWarn)
					}
					panic(r)
				}
			}()

			err := next(c)

			level := slog.LevelInfo
			if c.Response().Status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logRequest(logger, c, start, "request", level)

			return err
		}
	}
}

func logRequest(logger *slog.Logger, c echo.Context, start time.Time, msg string, level slog.Level) {
	req := c.Request()
	res := c.Response()

	logger.Log(req.Context(), level, msg,
		"method", req.Method,
		"host", req.Host,
		"path", req.URL.Path,
		"status", res.Status,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", requestID(c),
		"remote_ip", c.RealIP(),
		"bytes_in", req.ContentLength,
		"bytes_out", res.Size,
	)
}
