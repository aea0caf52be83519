package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordHTTPStatus_IncrementsCounter はHTTPリクエストカウンタが増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(http.MethodGet, "/api/properties", 200, 5*time.Millisecond)
	c.RecordHTTPStatus(http.MethodGet, "/api/properties", 200, 3*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	var found bool
	for _, mf := range families {
		if mf.GetName() != "estatebase_http_requests_total" {
			continue
		}
		found = true
		for _, m := range mf.GetMetric() {
			if m.GetCounter().GetValue() != 2 {
				t.Errorf("counter = %v, want 2", m.GetCounter().GetValue())
			}
		}
	}
	if !found {
		t.Error("estatebase_http_requests_total should be registered")
	}
}

// TestRecordStoreOp_LabelsResult はストア操作の結果ラベルを検証する。
func TestRecordStoreOp_LabelsResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordStoreOp("query", time.Millisecond, nil)
	c.RecordStoreOp("query", time.Millisecond, errors.New("connection refused"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	results := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "estatebase_store_ops_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "result" {
					results[label.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}

	if results["ok"] != 1 || results["error"] != 1 {
		t.Errorf("results = %v, want ok=1 error=1", results)
	}
}

// TestHandler_ServesMetrics は/metricsハンドラーがメトリクスを返すことを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordAuthDenial("not_allowlisted")

	handler := Handler(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "estatebase_auth_denials_total") {
		t.Error("response should contain estatebase_auth_denials_total metric")
	}
}
