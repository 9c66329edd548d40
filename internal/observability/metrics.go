package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	invoiceEvents   *prometheus.CounterVec
	documents       *prometheus.CounterVec
	documentCache   *prometheus.CounterVec
	emails          *prometheus.CounterVec
}

// NewMetrics initialises the registry and the application collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicer_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invoicer_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	invoiceEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicer_invoice_events_total",
		Help: "Invoice store mutations by kind.",
	}, []string{"kind"})
	documents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicer_documents_rendered_total",
		Help: "Invoice documents encoded by format and outcome.",
	}, []string{"format", "outcome"})
	documentCache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicer_document_cache_total",
		Help: "Document cache lookups by result.",
	}, []string{"result"})
	emails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicer_email_deliveries_total",
		Help: "Invoice email deliveries by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, invoiceEvents, documents, documentCache, emails)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		invoiceEvents:   invoiceEvents,
		documents:       documents,
		documentCache:   documentCache,
		emails:          emails,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// InvoiceEvent counts a store mutation.
func (m *Metrics) InvoiceEvent(kind string) {
	if m == nil {
		return
	}
	m.invoiceEvents.WithLabelValues(kind).Inc()
}

// DocumentRendered counts an encode attempt.
func (m *Metrics) DocumentRendered(format string, err error) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(format, outcome(err)).Inc()
}

// DocumentCache counts a cache lookup.
func (m *Metrics) DocumentCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.documentCache.WithLabelValues(result).Inc()
}

// EmailDelivered counts a delivery attempt.
func (m *Metrics) EmailDelivered(err error) {
	if m == nil {
		return
	}
	m.emails.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps streaming responses working behind the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
