package wallabag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/casimir/freon/internal/domain"
	"github.com/casimir/freon/internal/version"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// APIError is a non-2xx answer from the wallabag server. The raw body is
// preserved so the proxy can relay the upstream error verbatim.
type APIError struct {
	Status int
	Reason string
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wallabag api error: %d %s: %s", e.Status, e.Reason, e.Body)
}

// Request describes one upstream call. Body and JSON are mutually exclusive:
// Body relays raw bytes, JSON marshals a payload.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	JSON        any
	ContentType string
}

// Response carries the upstream answer verbatim, plus the time the round trip
// took as measured from this side.
type Response struct {
	Status  int
	Header  http.Header
	Body    []byte
	Elapsed time.Duration
}

// DecodeJSON unmarshals the response body.
func (r *Response) DecodeJSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Client talks to a wallabag server on behalf of stored credentials. It only
// shapes and executes requests; keeping the session fresh is the session
// manager's job.
type Client struct {
	http *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// IsExemptPath reports whether the upstream path is served without
// authentication: the server info endpoint and the whole oauth surface.
func IsExemptPath(path string) bool {
	return strings.HasSuffix(path, "/info") || strings.HasPrefix(path, "/oauth/")
}

// Do executes the request against the credentials' server. Non-exempt paths
// get the session's bearer token attached; the caller must have ensured the
// session is valid first. A non-2xx status returns both the response and an
// *APIError describing it.
func (c *Client) Do(ctx context.Context, creds *domain.WallabagCredentials, req Request) (*Response, error) {
	if req.Body != nil && req.JSON != nil {
		return nil, fmt.Errorf("request carries both raw body and json payload")
	}

	body := req.Body
	contentType := req.ContentType
	if req.JSON != nil {
		encoded, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = encoded
		contentType = "application/json"
	}
	if contentType == "" && body != nil {
		contentType = "application/json"
	}

	target := creds.ServerURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", version.UserAgent())
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if !IsExemptPath(req.Path) {
		if creds.Session == nil {
			return nil, fmt.Errorf("no session for authenticated path %s", req.Path)
		}
		httpReq.Header.Set("Authorization", "Bearer "+creds.Session.AccessToken)
	}

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	resp := &Response{
		Status:  httpResp.StatusCode,
		Header:  httpResp.Header.Clone(),
		Body:    respBody,
		Elapsed: time.Since(start),
	}
	if resp.Status < 200 || resp.Status > 299 {
		return resp, &APIError{Status: resp.Status, Reason: http.StatusText(resp.Status), Body: respBody}
	}
	return resp, nil
}
