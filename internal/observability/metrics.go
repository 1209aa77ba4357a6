package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	ledgerEntries     *prometheus.CounterVec
	journalPostings   *prometheus.CounterVec
	documentsPosted   *prometheus.CounterVec
	remediations      prometheus.Counter
	integrityFindings *prometheus.CounterVec
}

// NewMetrics initialises the registry with request and domain metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "erp_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "erp_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	entries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "erp_ledger_entries_total",
		Help: "Appended ledger entries by movement kind.",
	}, []string{"kind"})
	journals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "erp_journal_postings_total",
		Help: "Journal posting attempts by outcome.",
	}, []string{"status"})
	documents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "erp_documents_posted_total",
		Help: "Posted business documents by type.",
	}, []string{"type"})
	remediations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "erp_journal_remediations_total",
		Help: "Ledger writes committed without their journal.",
	})
	findings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "erp_integrity_findings_total",
		Help: "Integrity scan findings by check.",
	}, []string{"check"})
	registry.MustRegister(requests, duration, entries, journals, documents, remediations, findings)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		ledgerEntries:     entries,
		journalPostings:   journals,
		documentsPosted:   documents,
		remediations:      remediations,
		integrityFindings: findings,
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

// Middleware records request metrics for every HTTP request.
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

// RecordLedgerEntry counts an appended entry.
func (m *Metrics) RecordLedgerEntry(kind string) {
	if m == nil {
		return
	}
	m.ledgerEntries.WithLabelValues(kind).Inc()
}

// RecordJournalPosting counts a journal posting attempt outcome.
func (m *Metrics) RecordJournalPosting(status string) {
	if m == nil {
		return
	}
	m.journalPostings.WithLabelValues(status).Inc()
}

// RecordDocumentPosted counts a successfully posted document.
func (m *Metrics) RecordDocumentPosted(docType string) {
	if m == nil {
		return
	}
	m.documentsPosted.WithLabelValues(docType).Inc()
}

// RecordRemediation counts a committed ledger write whose journal failed.
func (m *Metrics) RecordRemediation() {
	if m == nil {
		return
	}
	m.remediations.Inc()
}

// RecordIntegrityFinding counts a finding from the nightly scan.
func (m *Metrics) RecordIntegrityFinding(check string) {
	if m == nil {
		return
	}
	m.integrityFindings.WithLabelValues(check).Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
