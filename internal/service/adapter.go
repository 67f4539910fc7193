package service

import (
	"errors"
	"fmt"
	"io"

	"passthrough-proxy/internal/exchange"
	"passthrough-proxy/internal/model"
)

var errNoMethod = errors.New("request has no method")

// AdaptRequest builds the outbound request for in. Method, path-with-query,
// scheme, authority and headers are copied into a fresh descriptor; headers
// are deep-copied with keys and value order untouched. The outbound body is
// the read side of a pipe whose write side is returned as the body sink.
func AdaptRequest(in *model.RequestDescriptor) (*model.RequestDescriptor, *io.PipeWriter, error) {
	if in == nil || in.Method == "" {
		return nil, nil, exchange.Wrap(exchange.KindAdapter, errNoMethod)
	}

	pr, pw := io.Pipe()
	out := &model.RequestDescriptor{
		Ctx:           in.Ctx,
		Method:        in.Method,
		PathWithQuery: in.PathWithQuery,
		Scheme:        in.Scheme,
		Authority:     in.Authority,
		Header:        model.CloneHeader(in.Header),
		Body:          pr,
	}
	return out, pw, nil
}

// AdaptResponse builds the client-facing response for a completed backend
// response, with the same status and a deep copy of its headers. The body is
// the read side of a pipe whose write side is returned as the body sink.
func AdaptResponse(in *model.ResponseDescriptor) (*model.ResponseDescriptor, *io.PipeWriter, error) {
	if in == nil {
		return nil, nil, exchange.Wrap(exchange.KindAdapter, errors.New("no backend response"))
	}
	if in.StatusCode < 100 || in.StatusCode > 999 {
		return nil, nil, exchange.Wrap(exchange.KindAdapter, fmt.Errorf("invalid status code %d", in.StatusCode))
	}

	pr, pw := io.Pipe()
	out := &model.ResponseDescriptor{
		StatusCode: in.StatusCode,
		Header:     model.CloneHeader(in.Header),
		Body:       pr,
	}
	return out, pw, nil
}
