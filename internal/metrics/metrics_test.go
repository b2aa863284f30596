package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T) string {
	t.Helper()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	return w.Body.String()
}

func TestRecordBatch(t *testing.T) {
	RecordBatch("ok", 2*time.Second)
	RecordBatch("error", 500*time.Millisecond)

	body := scrape(t)
	if !strings.Contains(body, "renderd_batches_total") {
		t.Error("Expected renderd_batches_total metric")
	}
	if !strings.Contains(body, "renderd_batch_duration_seconds") {
		t.Error("Expected renderd_batch_duration_seconds metric")
	}
}

func TestRecordPage(t *testing.T) {
	RecordPage("ok", time.Second)
	RecordPage("error", time.Second)

	body := scrape(t)
	if !strings.Contains(body, "renderd_pages_total") {
		t.Error("Expected renderd_pages_total metric")
	}
	if !strings.Contains(body, "renderd_page_duration_seconds") {
		t.Error("Expected renderd_page_duration_seconds metric")
	}
}

func TestOpenPagesGauge(t *testing.T) {
	OpenPages.Set(4)

	if !strings.Contains(scrape(t), "renderd_open_pages 4") {
		t.Error("Expected renderd_open_pages to be 4")
	}
}

func TestSetBuildInfo(t *testing.T) {
	SetBuildInfo("1.0.0", "go1.24")

	body := scrape(t)
	if !strings.Contains(body, "renderd_build_info") {
		t.Error("Expected renderd_build_info metric")
	}
	if !strings.Contains(body, `version="1.0.0"`) {
		t.Error("Expected version label in build_info")
	}
}

func TestGateRejections(t *testing.T) {
	GateRejections.Inc()

	if !strings.Contains(scrape(t), "renderd_gate_rejections_total") {
		t.Error("Expected renderd_gate_rejections_total metric")
	}
}

func TestStartMemoryCollector(t *testing.T) {
	stopCh := make(chan struct{})
	go StartMemoryCollector(50*time.Millisecond, stopCh)

	time.Sleep(150 * time.Millisecond)
	close(stopCh)

	body := scrape(t)
	for _, metric := range []string{
		"renderd_memory_usage_bytes",
		"renderd_memory_sys_bytes",
		"renderd_goroutines",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("Expected %s metric", metric)
		}
	}
}
