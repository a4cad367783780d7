package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/normanking/switchboard/internal/knowledge"
	"github.com/normanking/switchboard/internal/llm"
	"github.com/normanking/switchboard/internal/logging"
	"github.com/normanking/switchboard/internal/memory"
	"github.com/normanking/switchboard/internal/metrics"
	"github.com/normanking/switchboard/internal/persona"
)

// Router answers messages. It holds references to its collaborators and
// keeps no state besides statistics, so one instance serves all callers.
type Router struct {
	cfg        Config
	local      llm.Backend
	remotes    map[Route]llm.Backend
	classifier *Classifier
	knowledge  Retriever
	memory     memory.Store
	persona    *persona.Persona
	collector  *metrics.Collector
	log        *logging.Logger

	mu    sync.RWMutex
	stats Stats
}

// Option is a functional option for configuring Router.
type Option func(*Router)

// WithRemote registers a remote backend under route.
func WithRemote(route Route, b llm.Backend) Option {
	return func(r *Router) {
		if b != nil {
			r.remotes[route] = b
		}
	}
}

// WithRegistry registers every remote backend found in reg.
func WithRegistry(reg *llm.Registry) Option {
	return func(r *Router) {
		for _, route := range RemoteChain {
			if b := reg.Get(string(route)); b != nil {
				r.remotes[route] = b
			}
		}
	}
}

// WithKnowledge sets the retriever used for context injection.
func WithKnowledge(k Retriever) Option {
	return func(r *Router) { r.knowledge = k }
}

// WithMemory sets the conversation memory.
func WithMemory(m memory.Store) Option {
	return func(r *Router) { r.memory = m }
}

// WithPersona sets the persona used for system preambles.
func WithPersona(p *persona.Persona) Option {
	return func(r *Router) { r.persona = p }
}

// WithCollector feeds every result to a session collector.
func WithCollector(c *metrics.Collector) Option {
	return func(r *Router) { r.collector = c }
}

// WithLogger sets the router's logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Router) { r.log = l }
}

// New creates a Router around the local backend.
func New(cfg Config, local llm.Backend, opts ...Option) *Router {
	if cfg.ClassifierLabels == nil {
		cfg.ClassifierLabels = DefaultClassifierLabels()
	}
	if cfg.FallbackStrategy == "" {
		cfg.FallbackStrategy = FallbackLocal
	}
	if cfg.MemoryTimeout <= 0 {
		cfg.MemoryTimeout = 5 * time.Second
	}

	r := &Router{
		cfg:     cfg,
		local:   local,
		remotes: make(map[Route]llm.Backend),
		log:     logging.Global().WithComponent("Router"),
		stats: Stats{
			ByRoute:  make(map[Route]int64),
			ByReason: make(map[string]int64),
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.classifier = NewClassifier(local, cfg.ClassifierLabels)
	return r
}

// ═══════════════════════════════════════════════════════════════════════════════
// ENTRY POINTS
// ═══════════════════════════════════════════════════════════════════════════════

// Respond validates message and answers it.
func (r *Router) Respond(ctx context.Context, message, userID string) (Result, error) {
	if strings.TrimSpace(message) == "" {
		return Result{}, ErrEmptyMessage
	}
	return r.RespondWithRoute(ctx, message, userID), nil
}

// RespondWithRoute answers message. Backend and routing failures never
// escape: the worst case is RouteError with ApologyText.
func (r *Router) RespondWithRoute(ctx context.Context, message, userID string) Result {
	start := time.Now()
	message = truncateRunes(message, r.cfg.MaxInputChars)

	parts := PromptParts{
		Message:   message,
		Knowledge: r.retrieve(ctx, message),
		History:   r.history(ctx, userID),
	}

	decision := r.Decide(ctx, message)
	result := r.dispatch(ctx, decision, parts)

	if userID != "" && result.Route != RouteError {
		r.record(ctx, userID, message, result.Response)
	}

	r.observe(decision, result, time.Since(start))
	return result
}

// ═══════════════════════════════════════════════════════════════════════════════
// ROUTING POLICY
// ═══════════════════════════════════════════════════════════════════════════════

// Decide applies the routing tiers in order: short message, keywords,
// classifier, default.
func (r *Router) Decide(ctx context.Context, message string) Decision {
	start := time.Now()
	signals := DetectSignals(message)

	decision := Decision{Signals: signals}
	if target, reason, ok := fastPath(r.cfg, signals); ok {
		decision.Target, decision.Reason = target, reason
	} else if r.cfg.ClassifierEnabled {
		decision.Target, decision.Reason = r.classify(ctx, message)
	} else {
		decision.Target, decision.Reason = RouteLocalSimple, ReasonDefault
	}

	decision.Duration = time.Since(start)
	return decision
}

func (r *Router) classify(ctx context.Context, message string) (Route, string) {
	r.mu.Lock()
	r.stats.ClassifierCalls++
	r.mu.Unlock()

	route, err := r.classifier.Classify(ctx, message)
	if err != nil {
		r.log.Warn("classifier unavailable, answering locally: %v", err)
		return RouteLocalSimple, ReasonClassifierUnavail
	}
	if route.IsLocal() {
		return RouteLocalSimple, ReasonClassifierLocal
	}
	return route, ReasonClassifier
}

// ═══════════════════════════════════════════════════════════════════════════════
// DISPATCH AND FALLBACK
// ═══════════════════════════════════════════════════════════════════════════════

func (r *Router) dispatch(ctx context.Context, d Decision, parts PromptParts) Result {
	if !d.Target.IsRemote() {
		resp, err := r.generateLocal(ctx, parts)
		if err != nil {
			return r.outage(err)
		}
		return Result{Route: d.Target, Reason: d.Reason, Response: resp}
	}

	remotePrompt := BuildRemotePrompt(r.withSystem(parts, false))

	resp, err := r.generateRemote(ctx, d.Target, remotePrompt)
	if err == nil {
		return Result{Route: d.Target, Reason: d.Reason, Response: resp}
	}
	r.log.Warn("%s route failed (%v), falling back", d.Target, err)

	attempts := []error{err}
	fallbackReason := UnavailableReason(d.Target)

	if r.cfg.FallbackStrategy == FallbackChain {
		for _, next := range RemoteChain {
			if next == d.Target {
				continue
			}
			resp, err := r.generateRemote(ctx, next, remotePrompt)
			if err == nil {
				return Result{Route: next, Reason: fallbackReason, Response: resp}
			}
			r.log.Debug("chain fallback %s failed: %v", next, err)
			attempts = append(attempts, err)
		}
	}

	resp, err = r.generateLocal(ctx, parts)
	if err != nil {
		return r.outage(append(attempts, err)...)
	}
	return Result{Route: RouteLocalFallback, Reason: fallbackReason, Response: resp}
}

func (r *Router) generateRemote(ctx context.Context, route Route, prompt string) (string, error) {
	b, ok := r.remotes[route]
	if !ok {
		return "", &ConfigurationError{Backend: route, Err: errors.New("no backend registered")}
	}
	if !b.Available() {
		return "", &ConfigurationError{Backend: route, Err: llm.ErrNotConfigured}
	}

	resp, err := b.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return "", &ConfigurationError{Backend: route, Err: err}
		}
		return "", &TransientBackendError{Backend: route, Err: err}
	}
	if resp = strings.TrimSpace(resp); resp == "" {
		return "", &TransientBackendError{Backend: route, Err: llm.ErrEmptyResponse}
	}
	return resp, nil
}

func (r *Router) generateLocal(ctx context.Context, parts PromptParts) (string, error) {
	if r.local == nil {
		return "", &ConfigurationError{Backend: "local", Err: errors.New("no local backend")}
	}

	resp, err := r.local.Generate(ctx, BuildLocalPrompt(r.withSystem(parts, true)))
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return "", &ConfigurationError{Backend: "local", Err: err}
		}
		return "", &TransientBackendError{Backend: "local", Err: err}
	}
	if resp = strings.TrimSpace(resp); resp == "" {
		return "", &TransientBackendError{Backend: "local", Err: llm.ErrEmptyResponse}
	}
	return resp, nil
}

func (r *Router) outage(attempts ...error) Result {
	err := &TotalOutageError{Attempts: attempts}
	r.log.Error("%v", err)
	return Result{Route: RouteError, Reason: ReasonTotalOutage, Response: ApologyText}
}

func (r *Router) withSystem(parts PromptParts, local bool) PromptParts {
	switch {
	case r.persona != nil:
		parts.System = r.persona.SystemPrompt(local)
	case local:
		parts.System = defaultLocalSystem
	default:
		parts.System = defaultRemoteSystem
	}
	return parts
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONTEXT ENRICHMENT
// ═══════════════════════════════════════════════════════════════════════════════

func (r *Router) retrieve(ctx context.Context, message string) string {
	if r.knowledge == nil || r.cfg.TopK <= 0 {
		return ""
	}
	results, err := r.knowledge.Query(ctx, message, r.cfg.TopK)
	if err != nil {
		r.log.Warn("retrieval failed, continuing without context: %v", err)
		return ""
	}
	return knowledge.FormatContext(results)
}

func (r *Router) history(ctx context.Context, userID string) string {
	if r.memory == nil || userID == "" {
		return ""
	}
	block, err := r.memory.FormatForPrompt(ctx, userID)
	if err != nil {
		r.log.Warn("history unavailable for %s, continuing without it: %v", userID, err)
		return ""
	}
	return block
}

// record stores the exchange. It runs on a context detached from the
// caller so a disconnect does not drop half of the pair.
func (r *Router) record(ctx context.Context, userID, message, response string) {
	if r.memory == nil {
		return
	}

	wctx, cancel := logging.DetachContextWithTimeout(ctx, r.cfg.MemoryTimeout)
	defer cancel()

	if err := r.memory.AddTurn(wctx, userID, memory.RoleUser, message); err != nil {
		r.log.Warn("failed to record user turn for %s: %v", userID, err)
		return
	}
	if err := r.memory.AddTurn(wctx, userID, memory.RoleAssistant, response); err != nil {
		r.log.Warn("failed to record assistant turn for %s: %v", userID, err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// STATISTICS
// ═══════════════════════════════════════════════════════════════════════════════

func (r *Router) observe(d Decision, res Result, latency time.Duration) {
	r.mu.Lock()
	r.stats.TotalRequests++
	r.stats.ByRoute[res.Route]++
	r.stats.ByReason[res.Reason]++
	if res.Route == RouteError {
		r.stats.Outages++
	} else if res.Route != d.Target {
		r.stats.Fallbacks++
	}
	r.mu.Unlock()

	metrics.RouteDecisions.WithLabelValues(string(res.Route), res.Reason).Inc()
	if r.collector != nil {
		r.collector.Record(metrics.RouteEvent{
			Route:   string(res.Route),
			Reason:  res.Reason,
			Latency: latency,
			At:      time.Now(),
		})
	}

	r.log.Info("route=%s reason=%s target=%s decided_in=%s total=%s",
		res.Route, res.Reason, d.Target, d.Duration.Round(time.Millisecond), latency.Round(time.Millisecond))
}

// Stats returns a snapshot of the routing statistics.
func (r *Router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := r.stats
	out.ByRoute = make(map[Route]int64, len(r.stats.ByRoute))
	for k, v := range r.stats.ByRoute {
		out.ByRoute[k] = v
	}
	out.ByReason = make(map[string]int64, len(r.stats.ByReason))
	for k, v := range r.stats.ByReason {
		out.ByReason[k] = v
	}
	return out
}

// Backends reports availability of the local and every registered remote backend.
func (r *Router) Backends() map[string]bool {
	out := make(map[string]bool, len(r.remotes)+1)
	if r.local != nil {
		out["local"] = r.local.Available()
	}
	for route, b := range r.remotes {
		out[string(route)] = b.Available()
	}
	return out
}
