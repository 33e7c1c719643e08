// Package proxy forwards authenticated requests to the backend system and
// relays the response. The transport layer transparently decompresses
// response bodies, so the forwarded copy must never carry the original
// encoding headers; see strippedHeaders.
package proxy

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// strippedHeaders is the denylist of response headers that describe the
// original wire representation. The body is re-materialized as bytes after
// the local transport has already decoded it, so forwarding any of these
// would make the downstream client attempt a second, invalid decode.
// Checked case-insensitively.
var strippedHeaders = []string{
	"Content-Encoding",
	"Content-Length",
	"Transfer-Encoding",
}

// hopHeaders are request headers that belong to the client's connection,
// not the forwarded one. Accept-Encoding in particular must not pass
// through: setting it explicitly disables the transport's transparent
// gzip handling, which strippedHeaders relies on.
var hopHeaders = []string{
	"Accept-Encoding",
	"Connection",
	"Keep-Alive",
	"Proxy-Connection",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func headerIn(name string, list []string) bool {
	for _, h := range list {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

func isStripped(name string) bool {
	return headerIn(name, strippedHeaders)
}

// Options configures a single forwarded request.
type Options struct {
	Method string
	Header http.Header
	Body   io.Reader
}

// Response is the re-materialized backend response. Header never contains
// any of strippedHeaders.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Gateway forwards requests to the backend at baseURL. It holds no
// connection state beyond the shared HTTP client.
type Gateway struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

func NewGateway(baseURL string, logger *slog.Logger) *Gateway {
	return &Gateway{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// Forward issues the request to baseURL+path and returns the sanitized
// response. A missing base URL is a configuration error answered locally
// with a structured 500; a transport failure is answered with a
// structured 503. Forward itself never returns an error.
func (g *Gateway) Forward(ctx context.Context, path string, opts Options) *Response {
	if g.baseURL == "" {
		g.logger.Error("proxy request rejected, backend URL not configured", "path", path)
		return structuredError(http.StatusInternalServerError, "API URL not configured", "")
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, opts.Body)
	if err != nil {
		g.logger.Error("failed to create proxy request", "error", err, "path", path)
		return structuredError(http.StatusServiceUnavailable, "Failed to connect to backend service", err.Error())
	}
	for name, values := range opts.Header {
		if headerIn(name, hopHeaders) {
			continue
		}
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Error("backend unreachable", "error", err, "path", path)
		return structuredError(http.StatusServiceUnavailable, "Failed to connect to backend service", err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		g.logger.Error("failed to read backend response", "error", err, "path", path)
		return structuredError(http.StatusServiceUnavailable, "Failed to connect to backend service", err.Error())
	}

	header := make(http.Header, len(resp.Header))
	for name, values := range resp.Header {
		if isStripped(name) {
			continue
		}
		for _, v := range values {
			header.Add(name, v)
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     header,
		Body:       body,
	}
}

// Handler adapts the gateway into an http.Handler that forwards the
// incoming request under the given path prefix, used by the admin
// pass-through routes.
func (g *Gateway) Handler(stripPrefix string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, stripPrefix)
		if r.URL.RawQuery != "" {
			path += "?" + r.URL.RawQuery
		}

		resp := g.Forward(r.Context(), path, Options{
			Method: r.Method,
			Header: r.Header,
			Body:   r.Body,
		})

		for name, values := range resp.Header {
			for _, v := range values {
				w.Header().Add(name, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		w.Write(resp.Body)
	})
}

func structuredError(status int, msg, details string) *Response {
	body, _ := json.Marshal(errorBody{Error: msg, Details: details})
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return &Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     header,
		Body:       body,
	}
}
