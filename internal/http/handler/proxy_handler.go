package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/casimir/freon/internal/http/middleware"
	"github.com/casimir/freon/internal/http/response"
	"github.com/casimir/freon/internal/observability"
	"github.com/casimir/freon/internal/wallabag"
)

// durationHeader reports the upstream round-trip time to the caller.
const durationHeader = "X-Wallabag-Duration"

// ProxyHandler relays requests under /wallabag/api/* to the caller's wallabag
// server, keeping the upstream session fresh as needed. Upstream answers are
// relayed verbatim, status and body alike, success or error.
type ProxyHandler struct {
	sessions *wallabag.SessionManager
}

func NewProxyHandler(sessions *wallabag.SessionManager) *ProxyHandler {
	return &ProxyHandler{sessions: sessions}
}

func (h *ProxyHandler) Relay(w http.ResponseWriter, r *http.Request) {
	creds, ok := middleware.CredentialsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "cannot read request body", nil)
		return
	}
	if len(body) == 0 {
		body = nil
	}

	path := "/api/" + chi.URLParam(r, "*")
	req := wallabag.Request{
		Method:      r.Method,
		Path:        path,
		Query:       r.URL.Query(),
		Body:        body,
		ContentType: r.Header.Get("Content-Type"),
	}

	resp, err := h.sessions.Forward(r.Context(), creds, req)
	exempt := wallabag.IsExemptPath(path)
	if err != nil {
		var apiErr *wallabag.APIError
		if errors.As(err, &apiErr) {
			// The upstream rejected the call; hand its answer through
			// untouched so clients see exactly what wallabag said.
			elapsed := time.Duration(0)
			if resp != nil {
				elapsed = resp.Elapsed
				relayHeaders(w, resp)
			}
			observability.RecordForward(r.Context(), r.Method, statusClass(apiErr.Status), exempt, elapsed)
			w.Header().Set(durationHeader, formatDuration(elapsed))
			w.WriteHeader(apiErr.Status)
			_, _ = w.Write(apiErr.Body)
			return
		}
		observability.RecordForward(r.Context(), r.Method, "upstream_unreachable", exempt, 0)
		slog.ErrorContext(r.Context(), "wallabag relay failed", "path", path, "error", err)
		response.Error(w, r, http.StatusBadGateway, "BAD_GATEWAY", "wallabag server unreachable", nil)
		return
	}

	observability.RecordForward(r.Context(), r.Method, statusClass(resp.Status), exempt, resp.Elapsed)
	relayHeaders(w, resp)
	w.Header().Set(durationHeader, formatDuration(resp.Elapsed))
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func relayHeaders(w http.ResponseWriter, resp *wallabag.Response) {
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
}

func formatDuration(elapsed time.Duration) string {
	return fmt.Sprintf("%.2f ms", float64(elapsed)/float64(time.Millisecond))
}

func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}
