package llm

import (
	"sort"
	"sync"
)

// Registry holds the configured backends keyed by name
// ("local", "groq", "gemini", "kimi").
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds or replaces a backend under its Name.
func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.Name()] = b
}

// Get returns the backend registered under name, or nil.
func (r *Registry) Get(name string) Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.backends[name]
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Availability reports Available() for every registered backend.
func (r *Registry) Availability() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]bool, len(r.backends))
	for name, b := range r.backends {
		out[name] = b.Available()
	}
	return out
}

// GetAllMetrics returns metrics for every backend wrapped in MetricsBackend.
func (r *Registry) GetAllMetrics() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]interface{}, len(r.backends))
	for name, b := range r.backends {
		if mb, ok := b.(*MetricsBackend); ok {
			result[name] = mb.GetMetrics()
		}
	}
	return result
}

// GetSummary returns call totals across all backends.
func (r *Registry) GetSummary() map[string]interface{} {
	var totalCalls, totalErrors, localCalls, remoteCalls int64

	for name, m := range r.GetAllMetrics() {
		stats := m.(map[string]interface{})
		calls, _ := stats["total_calls"].(int64)
		errs, _ := stats["total_errors"].(int64)
		totalCalls += calls
		totalErrors += errs
		if name == "local" {
			localCalls += calls
		} else {
			remoteCalls += calls
		}
	}

	localPct := 0.0
	if totalCalls > 0 {
		localPct = float64(localCalls) / float64(totalCalls) * 100
	}

	return map[string]interface{}{
		"total_calls":  totalCalls,
		"total_errors": totalErrors,
		"local_calls":  localCalls,
		"remote_calls": remoteCalls,
		"local_pct":    localPct,
	}
}
