package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"welth/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Raw(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}).Write(w)
}

// handleReady reports ready only when the database answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	switch {
	case s.store == nil:
		checks["database"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	default:
		if err := s.store.Ping(ctx); err != nil {
			checks["database"] = fmt.Sprintf("failed: %v", err)
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		} else {
			checks["database"] = "ok"
		}
	}

	if s.svc.Scanner != nil {
		checks["receipt_scanner"] = "configured"
	} else {
		checks["receipt_scanner"] = "disabled"
	}
	checks["rate_limiter"] = map[string]any{
		"active_keys": s.rateLimiter.ActiveKeys(),
		"status":      "ok",
	}

	NewJSONResponse().Status(httpStatus).Raw(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics exposes counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()

	metrics := []struct {
		name, help, kind string
		value            int64
	}{
		{"http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests},
		{"http_server_errors_total", "Responses with a 5xx status", "counter", traceMetrics.ServerErrors},
		{"http_response_time_avg_microseconds", "Average response time", "gauge", traceMetrics.AverageResponseTime},
		{"security_suspicious_requests_total", "Requests blocked by the perimeter filter", "counter", securityMetrics.SuspiciousRequests},
		{"security_allowed_crawlers_total", "Crawler requests let through by the allowlist", "counter", securityMetrics.AllowedCrawlers},
		{"rate_limit_denied_total", "Requests rejected by the rate limiter", "counter", rateLimitMetrics.Denied},
		{"rate_limit_active_keys", "Keys tracked by the rate limiter", "gauge", rateLimitMetrics.ActiveKeys},
		{"transactions_created_total", "Transactions created through the API", "counter", s.appMetrics.transactionsCreated.Load()},
		{"transactions_deleted_total", "Transactions deleted through the API", "counter", s.appMetrics.transactionsDeleted.Load()},
		{"receipts_scanned_total", "Receipts scanned successfully", "counter", s.appMetrics.receiptsScanned.Load()},
		{"receipt_scan_failures_total", "Receipt scans that failed", "counter", s.appMetrics.receiptScanFailures.Load()},
		{"uptime_seconds", "Seconds since the server started", "gauge", int64(time.Since(s.appMetrics.uptime).Seconds())},
	}

	w.WriteHeader(http.StatusOK)
	for _, m := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n\n", m.name, m.help, m.name, m.kind, m.name, m.value)
	}
}
