// Package service implements the exchange pipeline that relays one inbound
// request to the backend and its response back to the caller.
package service

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"passthrough-proxy/internal/exchange"
	"passthrough-proxy/internal/future"
	"passthrough-proxy/internal/metrics"
	"passthrough-proxy/internal/model"
	"passthrough-proxy/internal/relay"
)

// ProxyService coordinates request relay, dispatch, completion wait and
// response relay for each inbound request. It holds no per-request state.
type ProxyService struct {
	dispatcher exchange.Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewProxyService creates a ProxyService.
// The metrics parameter is optional; pass nil to disable session metrics.
func NewProxyService(d exchange.Dispatcher, logger *slog.Logger, m *metrics.Metrics) *ProxyService {
	return &ProxyService{
		dispatcher: d,
		logger:     logger.With("component", "proxy_service"),
		metrics:    m,
	}
}

// Forward relays in to the backend and sets exactly one outcome on out: the
// backend's response, or the error that ended the session.
//
// The request body relay is started before dispatch and runs while the
// transport sends the request. The response body relay is started before the
// response is committed; the host streams the body from the committed
// descriptor, and a relay failure reaches it as a read error on that body.
func (s *ProxyService) Forward(in *model.RequestDescriptor, out *exchange.ResponseOutparam) {
	sess := &session{}
	defer func() {
		if err := sess.release(); err != nil {
			s.logger.Debug("releasing session resources", "err", err)
		}
	}()

	resp, respRelay, err := s.exchange(sess, in)
	if err != nil {
		s.fail(in, out, err)
		return
	}

	if err := out.Set(resp, nil); err != nil {
		s.logger.Warn("committing response",
			"err", err,
			"status", resp.StatusCode,
		)
	}

	// The host is done with the body; unblock the relay if it stopped reading early.
	_ = resp.Body.Close()
	n, err := respRelay.Wait()
	s.countBytes(metrics.LegResponse, n)
	if err != nil {
		s.logger.Warn("response body relay failed after commit",
			"err", err,
			"bytes", n,
		)
		s.countOutcome(exchange.KindRelay.String() + "_error")
		return
	}
	s.countOutcome(metrics.OutcomeCommitted)
}

// exchange runs steps up to starting the response relay and returns the
// client-facing response with the relay feeding its body.
func (s *ProxyService) exchange(sess *session, in *model.RequestDescriptor) (*model.ResponseDescriptor, *future.Future[int64], error) {
	bereq, reqSink, err := AdaptRequest(in)
	if err != nil {
		return nil, nil, err
	}
	sess.own(in.Body)
	reqBody := bereq.Body.(*io.PipeReader)
	sess.own(reqBody)

	var src io.Reader = http.NoBody
	if in.Body != nil {
		src = in.Body
	}
	reqRelay := sess.startRelay(reqSink, src)

	pending, err := s.dispatcher.Dispatch(bereq)
	if err != nil {
		return nil, nil, exchange.Wrap(exchange.KindDispatch, err)
	}

	beresp, err := exchange.Await(pending)
	if err != nil {
		_ = reqBody.CloseWithError(err)
		if _, rerr := reqRelay.Wait(); rerr != nil && !relay.IsWrite(rerr) {
			return nil, nil, exchange.Wrap(exchange.KindRelay, fmt.Errorf("request body: %w", rerr))
		}
		return nil, nil, err
	}
	sess.own(beresp.Body)

	// Write-side failures here only mean the transport stopped reading the
	// body, which it reports through the exchange outcome.
	n, err := reqRelay.Wait()
	s.countBytes(metrics.LegRequest, n)
	if err != nil && !relay.IsWrite(err) {
		return nil, nil, exchange.Wrap(exchange.KindRelay, fmt.Errorf("request body: %w", err))
	}

	resp, respSink, err := AdaptResponse(beresp)
	if err != nil {
		return nil, nil, err
	}
	sess.own(resp.Body)

	var beBody io.Reader = http.NoBody
	if beresp.Body != nil {
		beBody = beresp.Body
	}
	respRelay := sess.startRelay(respSink, beBody)
	return resp, respRelay, nil
}

func (s *ProxyService) fail(in *model.RequestDescriptor, out *exchange.ResponseOutparam, err error) {
	kind := exchange.KindOf(err)
	attrs := []any{"err", err, "kind", kind.String()}
	if in != nil {
		attrs = append(attrs, "method", in.Method, "path", in.PathWithQuery)
	}
	s.logger.Warn("session failed", attrs...)

	if setErr := out.Set(nil, err); setErr != nil {
		s.logger.Error("committing error outcome", "err", setErr)
	}
	s.countOutcome(kind.String() + "_error")
}

func (s *ProxyService) countOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.SessionsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *ProxyService) countBytes(leg string, n int64) {
	if s.metrics != nil && n > 0 {
		s.metrics.RelayBytes.WithLabelValues(leg).Add(float64(n))
	}
}
