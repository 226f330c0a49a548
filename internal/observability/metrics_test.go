package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Second)
	m.ApiInflightInc()
	m.IncModeration("input", "safe", false)
	m.ObserveDebit(true, 3)
	if m.Registry() != nil {
		t.Fatalf("expected nil registry")
	}
}

func TestMetricsCountAndExpose(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.IncToolExecution("create_task", "ok")
	m.IncToolExecution("create_task", "ok")
	m.ObserveDebit(true, 7)
	m.ObserveDebit(false, 7)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`huddle_billing_debits_total{result="rejected"} 1`,
		`huddle_billed_units_total 7`,
		`huddle_tool_executions_total{status="ok",tool="create_task"} 2`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}
