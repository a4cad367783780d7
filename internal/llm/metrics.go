package llm

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/normanking/switchboard/internal/logging"
	"github.com/normanking/switchboard/internal/metrics"
)

// MetricsBackend wraps a Backend with timing and error accounting.
// Every call is also exported to Prometheus under the backend's name.
type MetricsBackend struct {
	backend Backend
	name    string
	log     *logging.Logger

	totalCalls  int64
	totalErrors int64

	mu             sync.RWMutex
	totalLatency   time.Duration
	minLatency     time.Duration
	maxLatency     time.Duration
	latencyBuckets []int64 // <100ms, <500ms, <1s, <2s, <5s, 5s+
	lastError      string
}

// NewMetricsBackend wraps backend with metrics collection.
func NewMetricsBackend(backend Backend) *MetricsBackend {
	return &MetricsBackend{
		backend:        backend,
		name:           backend.Name(),
		log:            logging.Global().WithComponent("LLM-Metrics"),
		minLatency:     time.Hour,
		latencyBuckets: make([]int64, 6),
	}
}

var _ Backend = (*MetricsBackend)(nil)

// Generate implements Backend with metrics.
func (m *MetricsBackend) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	start := time.Now()
	m.log.Debug("starting %s call (%d prompt chars)", m.name, len(prompt))

	out, err := m.backend.Generate(ctx, prompt, opts...)
	latency := time.Since(start)

	atomic.AddInt64(&m.totalCalls, 1)
	metrics.BackendLatency.WithLabelValues(m.name).Observe(latency.Seconds())

	m.mu.Lock()
	m.totalLatency += latency
	if latency < m.minLatency {
		m.minLatency = latency
	}
	if latency > m.maxLatency {
		m.maxLatency = latency
	}
	m.latencyBuckets[bucketFor(latency)]++
	if err != nil {
		m.lastError = err.Error()
	}
	m.mu.Unlock()

	if err != nil {
		atomic.AddInt64(&m.totalErrors, 1)
		metrics.BackendErrors.WithLabelValues(m.name).Inc()
		m.log.Warn("%s failed after %s: %v", m.name, latency.Round(time.Millisecond), err)
		return "", err
	}

	m.log.Debug("%s completed in %s", m.name, latency.Round(time.Millisecond))
	return out, nil
}

func bucketFor(d time.Duration) int {
	switch {
	case d < 100*time.Millisecond:
		return 0
	case d < 500*time.Millisecond:
		return 1
	case d < time.Second:
		return 2
	case d < 2*time.Second:
		return 3
	case d < 5*time.Second:
		return 4
	default:
		return 5
	}
}

// Name implements Backend.
func (m *MetricsBackend) Name() string {
	return m.name
}

// Available implements Backend.
func (m *MetricsBackend) Available() bool {
	return m.backend.Available()
}

// GetMetrics returns a snapshot of the collected metrics.
func (m *MetricsBackend) GetMetrics() map[string]interface{} {
	calls := atomic.LoadInt64(&m.totalCalls)
	errs := atomic.LoadInt64(&m.totalErrors)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var avg, minL time.Duration
	if calls > 0 {
		avg = m.totalLatency / time.Duration(calls)
		minL = m.minLatency
	}

	errorRate := 0.0
	if calls > 0 {
		errorRate = float64(errs) / float64(calls)
	}

	buckets := make([]int64, len(m.latencyBuckets))
	copy(buckets, m.latencyBuckets)

	return map[string]interface{}{
		"backend":         m.name,
		"total_calls":     calls,
		"total_errors":    errs,
		"error_rate":      errorRate,
		"avg_latency_ms":  avg.Milliseconds(),
		"min_latency_ms":  minL.Milliseconds(),
		"max_latency_ms":  m.maxLatency.Milliseconds(),
		"latency_buckets": buckets,
		"last_error":      m.lastError,
	}
}

// Reset clears all counters.
func (m *MetricsBackend) Reset() {
	atomic.StoreInt64(&m.totalCalls, 0)
	atomic.StoreInt64(&m.totalErrors, 0)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalLatency = 0
	m.minLatency = time.Hour
	m.maxLatency = 0
	m.latencyBuckets = make([]int64, 6)
	m.lastError = ""
}

// Unwrap returns the wrapped backend.
func (m *MetricsBackend) Unwrap() Backend {
	return m.backend
}
