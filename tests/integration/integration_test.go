//go:build integration

// Package integration provides integration tests for renderd that drive
// a real browser. Run with: go test -tags=integration ./tests/integration/...
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/phoenixlabs/renderd/internal/browser"
	"github.com/phoenixlabs/renderd/internal/config"
	"github.com/phoenixlabs/renderd/internal/handlers"
	"github.com/phoenixlabs/renderd/internal/render"
	"github.com/phoenixlabs/renderd/internal/sanitize"
	"github.com/phoenixlabs/renderd/internal/types"
)

var (
	testMux     *http.ServeMux
	testSession *browser.Session
)

func TestMain(m *testing.M) {
	cfg := config.Load()
	cfg.Headless = true
	cfg.Concurrency = 2
	cfg.NavTimeout = 30 * time.Second
	cfg.SettleDelay = time.Second
	cfg.Validate()

	rules, err := sanitize.NewManager("", false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create sanitizer: %v\n", err)
		os.Exit(1)
	}

	testSession = browser.NewSession(cfg)
	worker := render.NewWorker(testSession, rules, cfg.NavTimeout, cfg.SettleDelay)
	scheduler := render.NewScheduler(testSession, worker, cfg.Concurrency, cfg.MaxBatchSize)
	handler := handlers.New(scheduler, render.NewGate(true), testSession, nil, cfg)
	testMux = handler.Routes()

	code := m.Run()

	testSession.Close()
	rules.Close()
	os.Exit(code)
}

func postRender(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/render", bytes.NewBufferString(body))
	testMux.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	w := httptest.NewRecorder()
	testMux.ServeHTTP(w, httptest.NewRequest("GET", "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body types.HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if !body.OK || body.Service != "renderd" {
		t.Errorf("Unexpected health payload: %+v", body)
	}
}

func TestRenderBatchEndToEnd(t *testing.T) {
	w := postRender(t, `[
		{"url": "https://example.com/"},
		{"url": "https://bad.invalid/"},
		{"url": "https://example.org/"}
	]`)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp types.BatchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(resp.Results))
	}

	if resp.Results[1].Data != "" {
		t.Errorf("Expected empty result for unresolvable host, got %d bytes", len(resp.Results[1].Data))
	}
	for _, i := range []int{0, 2} {
		data := resp.Results[i].Data
		if data == "" {
			t.Errorf("Expected content at index %d", i)
			continue
		}
		for _, forbidden := range []string{"<script", "<style", "<svg"} {
			if strings.Contains(data, forbidden) {
				t.Errorf("Result %d contains %q after sanitization", i, forbidden)
			}
		}
	}

	if got := testSession.State(); got != browser.StateReady {
		t.Errorf("Expected session ready after a batch, got %s", got)
	}
}

func TestRenderInvalidBodyLaunchesNothing(t *testing.T) {
	fresh := browser.NewSession(config.Load())
	defer fresh.Close()

	if w := postRender(t, `{"not": "a list"}`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	if got := fresh.State(); got != browser.StateUninitialized {
		t.Errorf("Bad input must not launch a browser, state is %s", got)
	}
}
