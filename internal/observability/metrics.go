package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used across the workflow.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	numbersAllocatedTotal   *prometheus.CounterVec
	allocationFailuresTotal *prometheus.CounterVec
	decisionsTotal          *prometheus.CounterVec
	cardsIssuedTotal        prometheus.Counter
	documentsRequestedTotal *prometheus.CounterVec
	renderDuration          *prometheus.HistogramVec
	batchOperationsTotal    *prometheus.CounterVec
	statusEventsTotal       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "issuance_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "issuance_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		numbersAllocatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "issuance_engine",
				Name:      "numbers_allocated_total",
				Help:      "Total number of business numbers minted grouped by kind.",
			},
			[]string{"kind"},
		),
		allocationFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "issuance_engine",
				Name:      "allocation_failures_total",
				Help:      "Total number of failed number allocations grouped by kind.",
			},
			[]string{"kind"},
		),
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "issuance_engine",
				Name:      "decisions_total",
				Help:      "Total number of recorded application decisions grouped by outcome.",
			},
			[]string{"outcome"},
		),
		cardsIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "issuance_engine",
				Name:      "cards_issued_total",
				Help:      "Total number of cards issued.",
			},
		),
		documentsRequestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "issuance_engine",
				Name:      "documents_requested_total",
				Help:      "Total number of print form requests grouped by kind and result.",
			},
			[]string{"kind", "result"},
		),
		renderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "issuance_engine",
				Name:      "render_duration_seconds",
				Help:      "Renderer call duration in seconds grouped by document kind.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"kind"},
		),
		batchOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "issuance_engine",
				Name:      "batch_operations_total",
				Help:      "Total number of batch lifecycle operations grouped by operation.",
			},
			[]string{"operation"},
		),
		statusEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "issuance_engine",
				Name:      "status_events_consumed_total",
				Help:      "Total number of status change events consumed grouped by entity.",
			},
			[]string{"entity"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.numbersAllocatedTotal,
		m.allocationFailuresTotal,
		m.decisionsTotal,
		m.cardsIssuedTotal,
		m.documentsRequestedTotal,
		m.renderDuration,
		m.batchOperationsTotal,
		m.statusEventsTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncNumberAllocated(kind string) {
	if m == nil {
		return
	}
	m.numbersAllocatedTotal.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *Metrics) IncAllocationFailed(kind string) {
	if m == nil {
		return
	}
	m.allocationFailuresTotal.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *Metrics) IncDecision(outcome string) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncCardIssued() {
	if m == nil {
		return
	}
	m.cardsIssuedTotal.Inc()
}

func (m *Metrics) IncDocumentRequested(kind string, result string) {
	if m == nil {
		return
	}
	m.documentsRequestedTotal.WithLabelValues(normalizeLabel(kind), normalizeLabel(result)).Inc()
}

func (m *Metrics) ObserveRenderDuration(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.renderDuration.WithLabelValues(normalizeLabel(kind)).Observe(seconds)
}

func (m *Metrics) IncBatchOperation(operation string) {
	if m == nil {
		return
	}
	m.batchOperationsTotal.WithLabelValues(normalizeLabel(operation)).Inc()
}

func (m *Metrics) IncStatusEventConsumed(entity string) {
	if m == nil {
		return
	}
	m.statusEventsTotal.WithLabelValues(normalizeLabel(entity)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
