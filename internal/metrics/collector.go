package metrics

import (
	"strings"
	"sync"
	"time"
)

// RouteEvent records one answered message.
type RouteEvent struct {
	Route   string
	Reason  string
	Latency time.Duration
	At      time.Time
}

// Local reports whether the reply was produced on-device.
func (e RouteEvent) Local() bool {
	switch e.Route {
	case "local_simple", "local_rag", "local_fallback":
		return true
	}
	return false
}

// Failed reports whether every backend failed for this message.
func (e RouteEvent) Failed() bool {
	return e.Route == "error"
}

// Fallback reports whether a preferred backend was skipped.
func (e RouteEvent) Fallback() bool {
	if e.Route == "local_fallback" {
		return true
	}
	return strings.HasSuffix(e.Reason, "_unavailable") && e.Reason != "llm_classifier_unavailable"
}

// SessionStats holds current session metrics.
type SessionStats struct {
	StartTime      time.Time
	RequestCount   int
	SuccessCount   int
	FailureCount   int
	FallbackCount  int
	LocalRequests  int
	TotalLatencyMs int64
	ByRoute        map[string]int
	LastRoute      string
	LastReason     string
	LastEventTime  time.Time
}

// Collector aggregates route events for one interactive session.
type Collector struct {
	mu           sync.RWMutex
	session      *SessionStats
	recentEvents []RouteEvent
	maxEvents    int
}

// NewCollector creates a session collector.
func NewCollector() *Collector {
	return &Collector{
		session: &SessionStats{
			StartTime: time.Now(),
			ByRoute:   make(map[string]int),
		},
		maxEvents: 50,
	}
}

// Record adds an event to the session totals.
func (c *Collector) Record(e RouteEvent) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.recentEvents = append(c.recentEvents, e)
	if len(c.recentEvents) > c.maxEvents {
		c.recentEvents = c.recentEvents[1:]
	}

	s := c.session
	s.RequestCount++
	s.TotalLatencyMs += e.Latency.Milliseconds()
	s.ByRoute[e.Route]++
	s.LastRoute = e.Route
	s.LastReason = e.Reason
	s.LastEventTime = e.At

	if e.Failed() {
		s.FailureCount++
	} else {
		s.SuccessCount++
	}
	if e.Local() {
		s.LocalRequests++
	}
	if e.Fallback() {
		s.FallbackCount++
	}
}

// GetSessionStats returns a copy of the current session stats.
func (c *Collector) GetSessionStats() *SessionStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := *c.session
	stats.ByRoute = make(map[string]int, len(c.session.ByRoute))
	for k, v := range c.session.ByRoute {
		stats.ByRoute[k] = v
	}
	return &stats
}

// GetRecentEvents returns up to n of the most recent events, oldest first.
func (c *Collector) GetRecentEvents(n int) []RouteEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n > len(c.recentEvents) {
		n = len(c.recentEvents)
	}
	start := len(c.recentEvents) - n

	events := make([]RouteEvent, n)
	copy(events, c.recentEvents[start:])
	return events
}
