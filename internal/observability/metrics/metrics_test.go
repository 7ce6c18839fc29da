package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/medical-intake/internal/core/domain"
)

func scrape(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rec.Code)
	}
	return rec.Body.String()
}

func TestHTTPMiddlewareNormalizesRecordPath(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/historial/42", nil))

	body := scrape(t, m.Handler())
	if !strings.Contains(body, `path="/v1/historial/{id}"`) || !strings.Contains(body, `status="404"`) {
		t.Fatalf("expected normalized path and status in metrics:\n%s", body)
	}
}

func TestPipelineMetricsShareRegistry(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	p := NewPipelineMetrics("api", m.Registerer())

	p.ObserveAnnotation(domain.AnnotationSummary, true)
	p.ObserveDecision(domain.MethodSemantic)
	p.ObserveRetry("ollama.generate")
	p.ObserveBreakerState("ollama.generate", "open")

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`intake_pipeline_annotations_total{annotation="summary",service="api",status="degraded"} 1`,
		`intake_pipeline_decisions_total{method="SEMANTIC",service="api"} 1`,
		`intake_resilience_retries_total{operation="ollama.generate",service="api"} 1`,
		`intake_resilience_breaker_state{operation="ollama.generate",service="api"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}

func TestWorkerMetricsRecordsJobStatus(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartJob()
	m.FinishJob("worker", 10*time.Millisecond, errors.New("boom"))
	m.ObserveQueueLag("worker", -time.Second)

	body := scrape(t, m.Handler())
	if !strings.Contains(body, `intake_worker_intake_jobs_total{service="worker",status="error"} 1`) {
		t.Fatalf("expected error job count:\n%s", body)
	}
	if strings.Contains(body, "intake_worker_queue_lag_seconds_count") {
		t.Fatalf("negative lag must be ignored:\n%s", body)
	}
}
