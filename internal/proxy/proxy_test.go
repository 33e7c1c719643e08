package proxy

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestIsStripped_CaseInsensitive(t *testing.T) {
	tests := []struct {
		name     string
		stripped bool
	}{
		{"Content-Encoding", true},
		{"content-encoding", true},
		{"CONTENT-LENGTH", true},
		{"transfer-encoding", true},
		{"Transfer-Encoding", true},
		{"Content-Type", false},
		{"X-Request-Id", false},
		{"ETag", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isStripped(tt.name); got != tt.stripped {
				t.Errorf("isStripped(%q) = %v, want %v", tt.name, got, tt.stripped)
			}
		})
	}
}

func TestForward_StripsEncodingHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "br")
		w.Header().Set("X-Request-Id", "req-42")
		w.Header().Set("ETag", `"abc"`)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	g := NewGateway(server.URL, testLogger())
	resp := g.Forward(context.Background(), "/api/compliance/checks", Options{Method: http.MethodGet})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	for _, name := range []string{"Content-Encoding", "Content-Length", "Transfer-Encoding"} {
		if got := resp.Header.Get(name); got != "" {
			t.Errorf("header %s must be stripped, got %q", name, got)
		}
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type must be preserved, got %q", got)
	}
	if got := resp.Header.Get("X-Request-Id"); got != "req-42" {
		t.Errorf("other headers must be copied, got %q", got)
	}
	if got := resp.Header.Get("ETag"); got != `"abc"` {
		t.Errorf("ETag must be copied, got %q", got)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("unexpected body %s", resp.Body)
	}
}

func TestForward_ClientAcceptEncodingDoesNotLeakGzip(t *testing.T) {
	const plain = `{"checks":[{"id":"chk-1","status":"passed"}]}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			w.Header().Set("Content-Encoding", "gzip")
			gz := gzip.NewWriter(w)
			gz.Write([]byte(plain))
			gz.Close()
			return
		}
		w.Write([]byte(plain))
	}))
	defer server.Close()

	// Browsers always send their own Accept-Encoding. It must not reach
	// the backend verbatim, or the transport stops decoding for us and
	// the client gets gzip bytes with the encoding header stripped.
	header := http.Header{}
	header.Set("Accept-Encoding", "gzip, deflate, br")
	header.Set("Connection", "keep-alive")

	g := NewGateway(server.URL, testLogger())
	resp := g.Forward(context.Background(), "/api/compliance/checks", Options{
		Method: http.MethodGet,
		Header: header,
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Encoding"); got != "" {
		t.Errorf("Content-Encoding must be stripped, got %q", got)
	}
	if string(resp.Body) != plain {
		t.Errorf("expected decoded body, got %d bytes: %q", len(resp.Body), resp.Body)
	}
}

func TestForward_NoBaseURL(t *testing.T) {
	g := NewGateway("", testLogger())
	resp := g.Forward(context.Background(), "/api/notifications", Options{Method: http.MethodGet})

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if body["error"] != "API URL not configured" {
		t.Errorf("unexpected error body %v", body)
	}
}

func TestForward_BackendUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	g := NewGateway(server.URL, testLogger())
	resp := g.Forward(context.Background(), "/api/anything", Options{Method: http.MethodPost})

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if body["error"] != "Failed to connect to backend service" {
		t.Errorf("unexpected error body %v", body)
	}
	if body["details"] == "" {
		t.Error("expected transport details in error body")
	}
}

func TestForward_RelaysBackendStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"invalid check id"}`))
	}))
	defer server.Close()

	g := NewGateway(server.URL, testLogger())
	resp := g.Forward(context.Background(), "/api/checks/run", Options{Method: http.MethodPost})

	// Backend errors are the proxied result, relayed as-is
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected backend status relayed, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(resp.Body), "invalid check id") {
		t.Errorf("expected backend body relayed, got %s", resp.Body)
	}
}

func TestForward_SendsMethodHeadersAndBody(t *testing.T) {
	var gotMethod, gotAuth, gotBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer server.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer tok-9")

	g := NewGateway(server.URL, testLogger())
	g.Forward(context.Background(), "/api/issues", Options{
		Method: http.MethodPatch,
		Header: header,
		Body:   strings.NewReader(`{"status":"resolved"}`),
	})

	if gotMethod != http.MethodPatch {
		t.Errorf("expected PATCH, got %s", gotMethod)
	}
	if gotAuth != "Bearer tok-9" {
		t.Errorf("expected auth header forwarded, got %q", gotAuth)
	}
	if gotBody != `{"status":"resolved"}` {
		t.Errorf("expected body forwarded, got %q", gotBody)
	}
}

func TestHandler_ForwardsUnderPrefix(t *testing.T) {
	var gotPath, gotQuery string

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Encoding", "br")
		w.Write([]byte(`{"items":[]}`))
	}))
	defer backend.Close()

	g := NewGateway(backend.URL, testLogger())
	front := httptest.NewServer(g.Handler("/api/backend"))
	defer front.Close()

	resp, err := http.Get(front.URL + "/api/backend/api/admin/stats?range=7d")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if gotPath != "/api/admin/stats" {
		t.Errorf("expected prefix stripped, backend saw %s", gotPath)
	}
	if gotQuery != "range=7d" {
		t.Errorf("expected query forwarded, backend saw %q", gotQuery)
	}
	if got := resp.Header.Get("Content-Encoding"); got != "" {
		t.Errorf("Content-Encoding must not reach the client, got %q", got)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"items":[]}` {
		t.Errorf("unexpected body %s", body)
	}
}
