package handler

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"

	"passthrough-proxy/internal/exchange"
	"passthrough-proxy/internal/model"
	"passthrough-proxy/internal/relay"
	"passthrough-proxy/internal/service"
)

// userinfoPattern matches credentials in URLs embedded in error messages.
var userinfoPattern = regexp.MustCompile(`(://[^:/@\s]+:)[^@\s]+@`)

// serverDefaultHeaders are filled in by net/http when a response lacks them.
var serverDefaultHeaders = []string{"Date", "Content-Type"}

// ProxyHandler is the host side of a proxy session: it turns the echo request
// into an inbound descriptor and writes whatever outcome the session commits.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle relays the request through the proxy service and streams the
// committed response back. When the response body fails after the status line
// has been sent, the connection is aborted so the caller cannot mistake the
// truncated body for a complete one.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()
	in := &model.RequestDescriptor{
		Ctx:           req.Context(),
		Method:        req.Method,
		PathWithQuery: pathWithQuery(req),
		Scheme:        scheme(req),
		Authority:     req.Host,
		Header:        model.CloneHeader(req.Header),
		Body:          req.Body,
	}

	var streamErr error
	out := exchange.NewResponseOutparam(func(resp *model.ResponseDescriptor, err error) error {
		if err != nil {
			return h.mapError(c, err)
		}
		streamErr = h.writeResponse(c, resp)
		return streamErr
	})

	h.service.Forward(in, out)

	if streamErr != nil {
		h.logger.Warn("aborting response after body failure",
			"err", sanitizeError(streamErr),
			"path", req.URL.Path,
		)
		panic(http.ErrAbortHandler)
	}
	return nil
}

func (h *ProxyHandler) writeResponse(c echo.Context, resp *model.ResponseDescriptor) error {
	// Only the backend's headers go out. Headers set earlier by middleware are
	// dropped, and server defaults the backend did not send are suppressed by
	// a present but empty key.
	header := c.Response().Header()
	clear(header)
	for key, vals := range resp.Header {
		header[key] = append([]string(nil), vals...)
	}
	for _, key := range serverDefaultHeaders {
		if _, ok := header[key]; !ok {
			header[key] = nil
		}
	}
	c.Response().WriteHeader(resp.StatusCode)

	_, err := relay.Copy(c.Response(), resp.Body)
	return err
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	h.logger.Error("proxy error",
		"err", sanitizeError(err),
		"kind", exchange.KindOf(err).String(),
		"path", c.Request().URL.Path,
	)

	switch {
	case errors.Is(err, exchange.ErrAdapter):
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "request cannot be relayed",
		})
	case errors.Is(err, exchange.ErrDispatch):
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "request cannot be dispatched",
		})
	case errors.Is(err, exchange.ErrRelay):
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "request body could not be read",
		})
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "upstream host unreachable",
		})
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "upstream connection failed",
		})
	}

	return c.JSON(http.StatusBadGateway, map[string]string{
		"error": "upstream request failed",
	})
}

// pathWithQuery returns the request target in origin form. Absolute-form
// targets sent to a forward proxy are reduced to their path and query.
func pathWithQuery(req *http.Request) string {
	if strings.HasPrefix(req.RequestURI, "/") {
		return req.RequestURI
	}
	return req.URL.RequestURI()
}

func scheme(req *http.Request) string {
	switch {
	case req.URL.Scheme != "":
		return req.URL.Scheme
	case req.TLS != nil:
		return "https"
	default:
		return "http"
	}
}

// sanitizeError redacts URL passwords from error messages that may contain backend URLs.
func sanitizeError(err error) string {
	return userinfoPattern.ReplaceAllString(err.Error(), "${1}[REDACTED]@")
}
