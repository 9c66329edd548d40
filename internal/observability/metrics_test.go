package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `invoicer_http_requests_total{code="418",route="/test"} 1`)
	assert.Contains(t, body, `invoicer_http_request_duration_seconds_bucket{route="/test"`)
}

func TestMetricsMiddlewareKeepsFlusher(t *testing.T) {
	metrics := NewMetrics()
	var flushed bool
	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		require.True(t, ok)
		f.Flush()
		flushed = true
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stream", nil))
	assert.True(t, flushed)
	assert.True(t, rr.Flushed)
}

func TestDomainCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.InvoiceEvent("upserted")
	metrics.DocumentRendered("pdf", nil)
	metrics.DocumentRendered("pdf", errors.New("boom"))
	metrics.DocumentCache(true)
	metrics.EmailDelivered(nil)

	body := scrape(t, metrics)
	for _, want := range []string{
		`invoicer_invoice_events_total{kind="upserted"} 1`,
		`invoicer_documents_rendered_total{format="pdf",outcome="success"} 1`,
		`invoicer_documents_rendered_total{format="pdf",outcome="failure"} 1`,
		`invoicer_document_cache_total{result="hit"} 1`,
		`invoicer_email_deliveries_total{outcome="success"} 1`,
	} {
		assert.True(t, strings.Contains(body, want), want)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.InvoiceEvent("removed")
	metrics.DocumentCache(false)
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
