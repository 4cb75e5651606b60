package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewMetrics_RegistersAgainstAnIndependentRegistry(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.OutboxPending.Set(5)
	b.OutboxPending.Set(9)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "eligibility_outbox_pending_events 5") {
		t.Fatalf("expected metric value 5 from registry a, got:\n%s", body)
	}
	if strings.Contains(body, "eligibility_outbox_pending_events 9") {
		t.Fatal("registry a's output must not reflect registry b's value (independent registries)")
	}
}

func TestMetrics_BreakerStateIsLabeled(t *testing.T) {
	m := NewMetrics()
	m.BreakerState.WithLabelValues("llm.gpt-4").Set(2)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `breaker="llm.gpt-4"`) {
		t.Fatalf("expected a breaker-labeled series, got:\n%s", rec.Body.String())
	}
}
