// Package model defines the request and response descriptors relayed by the proxy.
package model

import (
	"context"
	"io"
	"net/http"
)

// RequestDescriptor describes one HTTP request on either side of the proxy.
// Empty PathWithQuery, Scheme and Authority mean the field is absent.
type RequestDescriptor struct {
	Ctx           context.Context
	Method        string
	PathWithQuery string
	Scheme        string
	Authority     string
	Header        http.Header
	Body          io.ReadCloser
}

// ResponseDescriptor describes one HTTP response on either side of the proxy.
type ResponseDescriptor struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// CloneHeader returns a deep copy of h. Keys are kept exactly as given and the
// order of values under each key is preserved. A nil header yields an empty one.
func CloneHeader(h http.Header) http.Header {
	if h == nil {
		return make(http.Header)
	}
	return h.Clone()
}
