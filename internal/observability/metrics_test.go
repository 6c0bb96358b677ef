package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsWorkflowCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncNumberAllocated("APP")
	metrics.IncAllocationFailed("app")
	metrics.IncDecision("APPROVE")
	metrics.IncCardIssued()
	metrics.IncDocumentRequested("statement", "ok")
	metrics.ObserveRenderDuration("statement", 120*time.Millisecond)
	metrics.IncBatchOperation("approve")
	metrics.IncStatusEventConsumed("CARD")

	if got := testutil.ToFloat64(metrics.numbersAllocatedTotal.WithLabelValues("app")); got != 1 {
		t.Fatalf("numbers_allocated_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.allocationFailuresTotal.WithLabelValues("app")); got != 1 {
		t.Fatalf("allocation_failures_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.decisionsTotal.WithLabelValues("approve")); got != 1 {
		t.Fatalf("decisions_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.cardsIssuedTotal); got != 1 {
		t.Fatalf("cards_issued_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.documentsRequestedTotal.WithLabelValues("statement", "ok")); got != 1 {
		t.Fatalf("documents_requested_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.batchOperationsTotal.WithLabelValues("approve")); got != 1 {
		t.Fatalf("batch_operations_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.statusEventsTotal.WithLabelValues("card")); got != 1 {
		t.Fatalf("status_events_consumed_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
