package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wolfman30/booking-engine/internal/app/bootstrap"
	appconfig "github.com/wolfman30/booking-engine/internal/config"
	httpmiddleware "github.com/wolfman30/booking-engine/internal/http/middleware"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

func TestRouterExposesHealthAndMetrics(t *testing.T) {
	cfg := &appconfig.Config{UseMemoryStores: true, DefaultSlotMinutes: 30}
	logger := logging.New("error")
	registry := prometheus.NewRegistry()

	stack, err := bootstrap.BuildStack(cfg, bootstrap.Backends{}, registry, logger)
	if err != nil {
		t.Fatalf("build stack: %v", err)
	}
	handler := newRouter(cfg, stack, bootstrap.Backends{}, registry, httpmiddleware.NewRateLimiter(10, 10), logger)

	// Record one operation so the counter family is exported.
	req := httptest.NewRequest(http.MethodPost, "/api/appointments/missing/confirm", nil)
	req.Header.Set("X-Org-Id", "org-1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing appointment, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "booking_core_operations_total") {
		t.Fatalf("expected booking operations counter to be exported")
	}
}
