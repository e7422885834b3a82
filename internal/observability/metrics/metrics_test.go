package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
)

func TestMiddlewareNormalizesSourcePaths(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	for _, id := range []string{"a", "b"} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/sources/"+id, nil))
	}

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/v1/sources/{source_id}", "404"))
	if got != 2 {
		t.Fatalf("expected 2 normalized requests, got %v", got)
	}
}

func TestRecordRAGObservationCountsNoContext(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordRAGObservation("api", "ask", 0, 20*time.Millisecond)
	m.RecordRAGObservation("api", "ask", 3, 20*time.Millisecond)

	if got := testutil.ToFloat64(m.ragRequestsTotal.WithLabelValues("api", "ask")); got != 2 {
		t.Fatalf("expected 2 rag requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.ragNoContextTotal.WithLabelValues("api", "ask")); got != 1 {
		t.Fatalf("expected 1 no-context request, got %v", got)
	}
}

func TestRetrievalMetricsExposeOutcomesAndBreakers(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	r := m.Retrieval()

	r.ObserveOutcome(domain.RetrievalOutcome{Domain: domain.DomainOrders, Type: domain.RetrievalDeterministic, Confidence: 1}, 5*time.Millisecond)
	r.ObserveOutcome(domain.FailedOutcome(domain.DomainPolicies, errors.New("qdrant down")), time.Millisecond)
	r.ObserveAggregate(domain.AggregatedContext{Confidence: 1})
	r.ObserveBreakerState("qdrant.search", gobreaker.StateOpen)

	if got := testutil.ToFloat64(r.outcomeTotal.WithLabelValues("api", "policies", "error")); got != 1 {
		t.Fatalf("expected policies error outcome, got %v", got)
	}
	if got := testutil.ToFloat64(r.breakerState.WithLabelValues("api", "qdrant.search")); got != 2 {
		t.Fatalf("expected open breaker gauge 2, got %v", got)
	}

	res := httptest.NewRecorder()
	m.Handler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(body), `commerce_rag_retrieval_outcomes_total{domain="orders",retrieval_type="deterministic",service="api"} 1`) {
		t.Fatalf("orders outcome missing from exposition:\n%s", body)
	}
}

func TestWorkerMetricsTracksSourceProcessing(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartSource()
	m.FinishSource("worker", time.Second, errors.New("extract failed"))
	m.AddIndexedRecords("worker", "orders", 12)
	m.AddIndexedRecords("worker", "orders", 0)
	m.ObserveQueueLag("worker", -time.Second)

	if got := testutil.ToFloat64(m.processTotal.WithLabelValues("worker", "error")); got != 1 {
		t.Fatalf("expected one failed source, got %v", got)
	}
	if got := testutil.ToFloat64(m.processInFlight); got != 0 {
		t.Fatalf("expected no in-flight sources, got %v", got)
	}
	if got := testutil.ToFloat64(m.recordsIndexed.WithLabelValues("worker", "orders")); got != 12 {
		t.Fatalf("expected 12 indexed records, got %v", got)
	}
}
