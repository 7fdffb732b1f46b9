// SPDX-License-Identifier: MIT

// Package transport populates request aggregates from net/http and mounts
// handlers on a chi router.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/icecore/icegate/internal/log"
	"github.com/icecore/icegate/internal/request"
	"github.com/icecore/icegate/internal/session"
)

// maxBodyBytes caps how much of an inbound body is copied into a Request.
const maxBodyBytes = 4 << 20

// Handler processes one populated Request and produces a Response. The
// Request is owned by the transport layer: it is valid for the duration of
// the call and closed afterwards, so handlers must not retain it or any
// view obtained from it.
type Handler func(ctx context.Context, req *request.Request) *Response

// FromHTTP copies method, URI, remote address, headers, query and route
// parameters and the body out of r into an owned Request.
func FromHTTP(r *http.Request) (*request.Request, error) {
	req := request.New()
	req.SetMethod(r.Method)
	req.SetURI(r.URL.RequestURI())
	req.SetRemoteAddr(r.RemoteAddr)

	for name, values := range r.Header {
		for _, v := range values {
			req.AddHeader(name, v)
		}
	}

	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			req.AddParam(key, values[len(values)-1])
		}
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			req.AddParam(key, rctx.URLParams.Values[i])
		}
	}

	if r.Body != nil {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			_ = req.Close()
			return nil, fmt.Errorf("read request body: %w", err)
		}
		req.SetBody(body)
	}

	return req, nil
}

// Endpoint adapts a Handler to net/http. Each invocation builds a Request,
// binds a fresh store view to it and guarantees the Request is closed after
// the handler returns, releasing the session handle and the view.
func Endpoint(store session.Store, h Handler) http.HandlerFunc {
	logger := log.WithComponent("transport")
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := FromHTTP(r)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to build request")
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		req.BindContext(session.NewContext(store))
		defer func() {
			if cerr := req.Close(); cerr != nil {
				logger.Warn().Err(cerr).Msg("request teardown failed")
			}
		}()

		resp := h(r.Context(), req)
		if resp == nil {
			resp = Text(http.StatusNoContent, "")
		}
		resp.write(w)
	}
}
