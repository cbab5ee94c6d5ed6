// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/omnitool/internal/config"
)

// =============================================================================
// HELPERS
// =============================================================================

func testGatewayConfig(ollamaHost string) config.GatewayConfig {
	return config.GatewayConfig{
		Host:        "127.0.0.1",
		Port:        0,
		OllamaHost:  ollamaHost,
		CloudHosts:  []string{"127.0.0.1"},
		BodyLimitMB: 50,
	}
}

func newGateway(t *testing.T, cfg config.GatewayConfig, opts ...Option) *httptest.Server {
	t.Helper()
	opts = append([]Option{WithLogger(log.New(io.Discard, "", 0))}, opts...)
	srv, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func deadURL() string {
	ts := httptest.NewServer(http.NotFoundHandler())
	u := ts.URL
	ts.Close()
	return u
}

func decodeError(t *testing.T, r io.Reader) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(r).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func writeStatic(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// =============================================================================
// DAEMON PROXY TESTS
// =============================================================================

func TestProxy_ForwardsUnmodified(t *testing.T) {
	var gotPath, gotBody, gotMethod string
	daemon := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":{"role":"assistant","content":"hi"}}`))
	}))
	defer daemon.Close()

	gw := newGateway(t, testGatewayConfig(daemon.URL))

	body := `{"model":"llama3","messages":[],"stream":false}`
	resp, err := http.Post(gw.URL+"/api/chat", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	if string(data) != `{"message":{"role":"assistant","content":"hi"}}` {
		t.Errorf("body = %s", data)
	}
	if gotPath != "/api/chat" || gotMethod != http.MethodPost || gotBody != body {
		t.Errorf("daemon saw %s %s %s", gotMethod, gotPath, gotBody)
	}
}

func TestProxy_AllRoutes(t *testing.T) {
	daemon := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Method + " " + r.URL.Path))
	}))
	defer daemon.Close()

	gw := newGateway(t, testGatewayConfig(daemon.URL))

	tests := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/chat"},
		{http.MethodPost, "/api/generate"},
		{http.MethodGet, "/api/tags"},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(tt.method, gw.URL+tt.path, strings.NewReader("{}"))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s failed: %v", tt.method, tt.path, err)
		}
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if string(data) != tt.method+" "+tt.path {
			t.Errorf("%s %s: daemon saw %q", tt.method, tt.path, data)
		}
	}
}

func TestProxy_RelaysDaemonStatus(t *testing.T) {
	daemon := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'x' not found"}`))
	}))
	defer daemon.Close()

	gw := newGateway(t, testGatewayConfig(daemon.URL))
	resp, err := http.Post(gw.URL+"/api/generate", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if e := decodeError(t, resp.Body); e.Error != "model 'x' not found" {
		t.Errorf("error = %q", e.Error)
	}
}

func TestProxy_DaemonDown(t *testing.T) {
	gw := newGateway(t, testGatewayConfig(deadURL()))

	resp, err := http.Get(gw.URL + "/api/tags")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	e := decodeError(t, resp.Body)
	if e.Error != ProxyErrorMessage {
		t.Errorf("error = %q", e.Error)
	}
	if e.Details == "" {
		t.Error("details should describe the failure")
	}
}

func TestProxy_BodyLimit(t *testing.T) {
	daemon := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Write([]byte("{}"))
	}))
	defer daemon.Close()

	cfg := testGatewayConfig(daemon.URL)
	cfg.BodyLimitMB = 1
	gw := newGateway(t, cfg)

	big := bytes.Repeat([]byte("a"), 2*1024*1024)
	resp, err := http.Post(gw.URL+"/api/chat", "application/json", bytes.NewReader(big))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
}

// =============================================================================
// CLOUD RELAY TESTS
// =============================================================================

func TestCloudRelay_Forwards(t *testing.T) {
	var gotKey, gotBody, gotPath string
	upstream := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":401,"message":"bad key"}}`))
	}))
	defer upstream.Close()

	gw := newGateway(t, testGatewayConfig(deadURL()), WithRelayClient(upstream.Client()))

	payload, _ := json.Marshal(CloudRelayRequest{
		APIURL: upstream.URL + "/v1beta/models/gemini-2.5-flash:generateContent",
		APIKey: "k-123",
		Body:   json.RawMessage(`{"contents":[]}`),
	})
	resp, err := http.Post(gw.URL+"/api/cloud", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want upstream 401", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	if string(data) != `{"error":{"code":401,"message":"bad key"}}` {
		t.Errorf("body = %s", data)
	}
	if gotKey != "k-123" {
		t.Errorf("key header = %q", gotKey)
	}
	if gotBody != `{"contents":[]}` {
		t.Errorf("forwarded body = %q", gotBody)
	}
	if gotPath != "/v1beta/models/gemini-2.5-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestCloudRelay_Rejects(t *testing.T) {
	gw := newGateway(t, testGatewayConfig(deadURL()))

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{nope`},
		{"missing key", `{"apiUrl":"https://127.0.0.1/x"}`},
		{"missing url", `{"apiKey":"k"}`},
		{"plain http", `{"apiUrl":"http://127.0.0.1/x","apiKey":"k"}`},
		{"host not allowed", `{"apiUrl":"https://evil.example.com/x","apiKey":"k"}`},
		{"userinfo", `{"apiUrl":"https://u:p@127.0.0.1/x","apiKey":"k"}`},
		{"bad method", `{"apiUrl":"https://127.0.0.1/x","apiKey":"k","method":"DELETE"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(gw.URL+"/api/cloud", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestCloudRelay_UpstreamDown(t *testing.T) {
	upstream := httptest.NewTLSServer(http.NotFoundHandler())
	client := upstream.Client()
	url := upstream.URL
	upstream.Close()

	gw := newGateway(t, testGatewayConfig(deadURL()), WithRelayClient(client))

	payload := `{"apiUrl":"` + url + `/x","apiKey":"k","body":{}}`
	resp, err := http.Post(gw.URL+"/api/cloud", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	if e := decodeError(t, resp.Body); e.Error != RelayErrorMessage {
		t.Errorf("error = %q", e.Error)
	}
}

// =============================================================================
// HEALTH AND STATIC TESTS
// =============================================================================

func TestRoot_HealthForNonBrowsers(t *testing.T) {
	cfg := testGatewayConfig("http://127.0.0.1:11434")
	cfg.StaticDir = writeStatic(t, map[string]string{"index.html": "<html>app</html>"})
	gw := newGateway(t, cfg)

	resp, err := http.Get(gw.URL + "/")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var h HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.Status != "ok" || h.Message != HealthMessage || h.OllamaHost != "http://127.0.0.1:11434" {
		t.Errorf("health = %+v", h)
	}
	if h.Stats != nil {
		t.Error("root health should not carry stats")
	}
}

func TestRoot_IndexForBrowsers(t *testing.T) {
	cfg := testGatewayConfig("http://127.0.0.1:11434")
	cfg.StaticDir = writeStatic(t, map[string]string{"index.html": "<html>app</html>"})
	gw := newGateway(t, cfg)

	req, _ := http.NewRequest(http.MethodGet, gw.URL+"/", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if string(data) != "<html>app</html>" {
		t.Errorf("body = %q", data)
	}
}

func TestHealthEndpoint(t *testing.T) {
	gw := newGateway(t, testGatewayConfig("http://127.0.0.1:11434"))

	resp, err := http.Get(gw.URL + "/health")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var h HealthResponse
	json.NewDecoder(resp.Body).Decode(&h)
	if h.Stats == nil {
		t.Fatal("health should carry stats")
	}
}

func TestStatic_SPAFallback(t *testing.T) {
	cfg := testGatewayConfig("http://127.0.0.1:11434")
	cfg.StaticDir = writeStatic(t, map[string]string{
		"index.html":    "<html>app</html>",
		"assets/app.js": "console.log(1)",
	})
	gw := newGateway(t, cfg)

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/assets/app.js", http.StatusOK, "console.log(1)"},
		{"/settings/models", http.StatusOK, "<html>app</html>"},
		{"/../../etc/passwd", http.StatusOK, "<html>app</html>"},
		{"/api/unknown", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		resp, err := http.Get(gw.URL + tt.path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", tt.path, err)
		}
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != tt.wantStatus {
			t.Errorf("GET %s status = %d, want %d", tt.path, resp.StatusCode, tt.wantStatus)
		}
		if tt.wantBody != "" && string(data) != tt.wantBody {
			t.Errorf("GET %s body = %q, want %q", tt.path, data, tt.wantBody)
		}
	}
}

func TestStatic_NoIndex(t *testing.T) {
	cfg := testGatewayConfig("http://127.0.0.1:11434")
	cfg.StaticDir = t.TempDir()
	gw := newGateway(t, cfg)

	resp, err := http.Get(gw.URL + "/anything")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

// =============================================================================
// CROSS-CUTTING TESTS
// =============================================================================

func TestCORS_AllowAll(t *testing.T) {
	gw := newGateway(t, testGatewayConfig("http://127.0.0.1:11434"))

	req, _ := http.NewRequest(http.MethodOptions, gw.URL+"/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS failed: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if resp.StatusCode >= 300 {
		t.Errorf("preflight status = %d", resp.StatusCode)
	}
}

func TestSecurityHeaders(t *testing.T) {
	gw := newGateway(t, testGatewayConfig("http://127.0.0.1:11434"))

	resp, err := http.Get(gw.URL + "/health")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()

	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff")
	}
	if resp.Header.Get("X-Frame-Options") != "DENY" {
		t.Error("missing frame options")
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testGatewayConfig("http://127.0.0.1:11434")
	cfg.RateLimit = 0.001
	cfg.RateBurst = 2
	gw := newGateway(t, cfg)

	var statuses []int
	for i := 0; i < 3; i++ {
		resp, err := http.Get(gw.URL + "/health")
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}

	if statuses[0] != 200 || statuses[1] != 200 || statuses[2] != http.StatusTooManyRequests {
		t.Errorf("statuses = %v, want [200 200 429]", statuses)
	}
}

func TestNew_InvalidOllamaHost(t *testing.T) {
	for _, host := range []string{"", "127.0.0.1:11434", "://bad"} {
		if _, err := New(testGatewayConfig(host)); err == nil {
			t.Errorf("New(%q) should fail", host)
		}
	}
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestServe_GracefulShutdown(t *testing.T) {
	srv, err := New(testGatewayConfig("http://127.0.0.1:11434"), WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	// Wait until the server answers.
	url := "http://" + ln.Addr().String() + "/health"
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never answered: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestAddr(t *testing.T) {
	cfg := testGatewayConfig("http://127.0.0.1:11434")
	cfg.Port = 3000
	srv, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if srv.Addr() != "127.0.0.1:3000" {
		t.Errorf("Addr = %q", srv.Addr())
	}
}
