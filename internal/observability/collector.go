// Package observability provides metrics collection and tracing for vendor API
// traffic and token refreshes.
package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/lucifergaming/savagetech/internal/sdk"
)

// RequestMetrics holds timing and status information for a single vendor request.
type RequestMetrics struct {
	Operation  string
	Method     string
	URL        string
	StatusCode int
	Duration   time.Duration
	Error      error
}

// RefreshMetrics records one token refresh attempt.
type RefreshMetrics struct {
	UserID string
	Error  error
}

// SessionMetrics aggregates metrics for an entire CLI session.
type SessionMetrics struct {
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	TotalRequests   int           `json:"total_requests"`
	FailedRequests  int           `json:"failed_requests"`
	TotalLatency    time.Duration `json:"total_latency"`
	Refreshes       int           `json:"refreshes"`
	RefreshFailures int           `json:"refresh_failures"`
}

// SessionCollector accumulates metrics across a CLI session.
// It is safe for concurrent use and uses counters instead of unbounded slices.
type SessionCollector struct {
	mu sync.Mutex

	startTime       time.Time
	totalRequests   int
	failedRequests  int
	totalLatency    time.Duration
	refreshes       int
	refreshFailures int
}

// NewSessionCollector creates a new SessionCollector.
func NewSessionCollector() *SessionCollector {
	return &SessionCollector{
		startTime: time.Now(),
	}
}

// RecordRequest records metrics for a vendor request.
func (c *SessionCollector) RecordRequest(m RequestMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
	c.totalLatency += m.Duration
	if m.Error != nil {
		c.failedRequests++
	}
}

// RecordRequestFromSDK records metrics from SDK types.
func (c *SessionCollector) RecordRequestFromSDK(info sdk.RequestInfo, result sdk.RequestResult) {
	c.RecordRequest(RequestMetrics{
		Operation:  info.Operation,
		Method:     info.Method,
		URL:        info.URL,
		StatusCode: result.StatusCode,
		Duration:   result.Duration,
		Error:      result.Err,
	})
}

// RecordRefresh records a token refresh attempt.
func (c *SessionCollector) RecordRefresh(m RefreshMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshes++
	if m.Error != nil {
		c.refreshFailures++
	}
}

// Summary returns aggregated metrics for the session.
func (c *SessionCollector) Summary() SessionMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	return SessionMetrics{
		StartTime:       c.startTime,
		EndTime:         time.Now(),
		TotalRequests:   c.totalRequests,
		FailedRequests:  c.failedRequests,
		TotalLatency:    c.totalLatency,
		Refreshes:       c.refreshes,
		RefreshFailures: c.refreshFailures,
	}
}

// Reset clears all collected metrics and resets the start time.
func (c *SessionCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.totalRequests = 0
	c.failedRequests = 0
	c.totalLatency = 0
	c.refreshes = 0
	c.refreshFailures = 0
}

// Map flattens the metrics for embedding in a response's meta block.
func (m SessionMetrics) Map() map[string]any {
	return map[string]any{
		"requests":         m.TotalRequests,
		"failed":           m.FailedRequests,
		"latency_ms":       m.TotalLatency.Milliseconds(),
		"refreshes":        m.Refreshes,
		"refresh_failures": m.RefreshFailures,
		"duration_ms":      m.EndTime.Sub(m.StartTime).Milliseconds(),
	}
}

// SessionMetricsFromMap is the inverse of Map. Numeric values may arrive as
// int, int64, or float64 depending on whether they passed through JSON.
func SessionMetricsFromMap(v map[string]any) SessionMetrics {
	num := func(key string) int64 {
		switch n := v[key].(type) {
		case int:
			return int64(n)
		case int64:
			return n
		case float64:
			return int64(n)
		}
		return 0
	}
	var start time.Time
	return SessionMetrics{
		StartTime:       start,
		EndTime:         start.Add(time.Duration(num("duration_ms")) * time.Millisecond),
		TotalRequests:   int(num("requests")),
		FailedRequests:  int(num("failed")),
		TotalLatency:    time.Duration(num("latency_ms")) * time.Millisecond,
		Refreshes:       int(num("refreshes")),
		RefreshFailures: int(num("refresh_failures")),
	}
}

// FormatParts returns the non-empty stat fragments for a one-line summary.
func (m SessionMetrics) FormatParts() []string {
	var parts []string
	if d := m.EndTime.Sub(m.StartTime); d > 0 {
		parts = append(parts, fmt.Sprintf("%dms total", d.Milliseconds()))
	}
	if m.TotalRequests > 0 {
		reqs := fmt.Sprintf("%d request", m.TotalRequests)
		if m.TotalRequests != 1 {
			reqs += "s"
		}
		if m.FailedRequests > 0 {
			reqs += fmt.Sprintf(" (%d failed)", m.FailedRequests)
		}
		parts = append(parts, reqs, fmt.Sprintf("%dms API", m.TotalLatency.Milliseconds()))
	}
	if m.Refreshes > 0 {
		refreshes := fmt.Sprintf("%d refresh", m.Refreshes)
		if m.Refreshes != 1 {
			refreshes += "es"
		}
		if m.RefreshFailures > 0 {
			refreshes += fmt.Sprintf(" (%d failed)", m.RefreshFailures)
		}
		parts = append(parts, refreshes)
	}
	return parts
}
