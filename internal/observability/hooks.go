package observability

import (
	"context"
	"sync"
	"time"

	"github.com/lucifergaming/savagetech/internal/sdk"
)

var _ sdk.Hooks = (*CLIHooks)(nil)

// Trace levels understood by CLIHooks.
const (
	LevelSilent    = 0
	LevelRefreshes = 1
	LevelRequests  = 2
)

// CLIHooks feeds vendor traffic and refresh events into the session
// collector, optional Prometheus metrics, and the stderr trace. Only the
// trace output depends on the level; counting always happens.
type CLIHooks struct {
	mu        sync.Mutex
	level     int
	collector *SessionCollector
	writer    *TraceWriter
	metrics   *Metrics
}

// NewCLIHooks builds hooks at the given level. Either sink may be nil.
func NewCLIHooks(level int, collector *SessionCollector, writer *TraceWriter) *CLIHooks {
	return &CLIHooks{level: level, collector: collector, writer: writer}
}

// SetLevel changes the trace level at runtime.
func (h *CLIHooks) SetLevel(level int) {
	h.mu.Lock()
	h.level = level
	h.mu.Unlock()
}

// Level reports the current trace level.
func (h *CLIHooks) Level() int {
	return h.snapshot().level
}

// SetMetrics attaches Prometheus metrics. Nil detaches.
func (h *CLIHooks) SetMetrics(m *Metrics) {
	h.mu.Lock()
	h.metrics = m
	h.mu.Unlock()
}

type hookSinks struct {
	level     int
	collector *SessionCollector
	writer    *TraceWriter
	metrics   *Metrics
}

func (h *CLIHooks) snapshot() hookSinks {
	h.mu.Lock()
	defer h.mu.Unlock()
	return hookSinks{level: h.level, collector: h.collector, writer: h.writer, metrics: h.metrics}
}

// tracer returns the writer when the level permits tracing at min.
func (s hookSinks) tracer(min int) *TraceWriter {
	if s.level < min {
		return nil
	}
	return s.writer
}

func (h *CLIHooks) OnRequestStart(ctx context.Context, info sdk.RequestInfo) context.Context {
	if w := h.snapshot().tracer(LevelRequests); w != nil {
		w.WriteRequestStart(info)
	}
	return ctx
}

func (h *CLIHooks) OnRequestEnd(_ context.Context, info sdk.RequestInfo, result sdk.RequestResult) {
	s := h.snapshot()
	if s.collector != nil {
		s.collector.RecordRequestFromSDK(info, result)
	}
	if s.metrics != nil {
		s.metrics.ObserveRequest(info, result)
	}
	if w := s.tracer(LevelRequests); w != nil {
		w.WriteRequestEnd(info, result)
	}
}

func (h *CLIHooks) OnRefresh(userID string, err error) {
	s := h.snapshot()
	if s.collector != nil {
		s.collector.RecordRefresh(RefreshMetrics{UserID: userID, Error: err})
	}
	if s.metrics != nil {
		s.metrics.ObserveRefresh(err)
	}
	if w := s.tracer(LevelRefreshes); w != nil {
		w.WriteRefresh(userID, err)
	}
}

func (h *CLIHooks) OnScheduled(userID string, at time.Time) {
	if w := h.snapshot().tracer(LevelRefreshes); w != nil {
		w.WriteScheduled(userID, at)
	}
}
