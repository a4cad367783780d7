// Package app assembles the switchboard components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/normanking/switchboard/internal/config"
	"github.com/normanking/switchboard/internal/ingestion"
	"github.com/normanking/switchboard/internal/knowledge"
	"github.com/normanking/switchboard/internal/llm"
	"github.com/normanking/switchboard/internal/logging"
	"github.com/normanking/switchboard/internal/memory"
	"github.com/normanking/switchboard/internal/metrics"
	"github.com/normanking/switchboard/internal/persona"
	"github.com/normanking/switchboard/internal/router"
	"github.com/normanking/switchboard/internal/server"
)

// ═══════════════════════════════════════════════════════════════════════════════
// APP
// ═══════════════════════════════════════════════════════════════════════════════

// App holds the wired components. Knowledge and Memory are nil when their
// backing stores could not be opened; the router then runs without them.
type App struct {
	Config    *config.Config
	Registry  *llm.Registry
	Knowledge *knowledge.Store
	Memory    memory.Store
	Persona   *persona.Persona
	Collector *metrics.Collector
	Router    *router.Router
	Pipeline  *ingestion.Pipeline

	log *logging.Logger
}

// Build wires every component from cfg. Only a broken persona file is
// fatal; unavailable stores are logged and skipped.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.Global().WithComponent("App")

	p, err := persona.LoadFromFile(cfg.Persona.Path)
	if err != nil {
		return nil, fmt.Errorf("persona: %w", err)
	}

	a := &App{
		Config:    cfg,
		Registry:  llm.NewRegistryFromConfig(cfg),
		Persona:   p,
		Collector: metrics.NewCollector(),
		log:       log,
	}

	if ks, err := OpenKnowledge(ctx, cfg); err != nil {
		log.Warn("knowledge store unavailable, answering without retrieval: %v", err)
	} else {
		a.Knowledge = ks
		a.Pipeline = ingestion.NewPipeline(ks, ingestion.ConfigFrom(cfg.Ingestion))
	}

	if ms, err := memory.New(cfg.Memory); err != nil {
		log.Warn("conversation memory unavailable: %v", err)
	} else {
		a.Memory = ms
	}

	opts := []router.Option{
		router.WithRegistry(a.Registry),
		router.WithPersona(a.Persona),
		router.WithCollector(a.Collector),
	}
	if a.Knowledge != nil {
		opts = append(opts, router.WithKnowledge(a.Knowledge))
	}
	if a.Memory != nil {
		opts = append(opts, router.WithMemory(a.Memory))
	}
	a.Router = router.New(router.ConfigFrom(cfg.Router), a.Registry.Get("local"), opts...)

	for name, ok := range a.Registry.Availability() {
		log.Debug("backend %s available=%t", name, ok)
	}
	return a, nil
}

// OpenKnowledge opens the knowledge store configured in cfg.
func OpenKnowledge(ctx context.Context, cfg *config.Config) (*knowledge.Store, error) {
	embedder, err := knowledge.NewEmbedder(cfg.Knowledge.Embedder)
	if err != nil {
		return nil, err
	}
	var opts []knowledge.Option
	if cfg.Knowledge.Dimension > 0 {
		opts = append(opts, knowledge.WithDimension(cfg.Knowledge.Dimension))
	}
	return knowledge.Open(ctx, cfg.Knowledge.DataDir, embedder, opts...)
}

// NewServer builds the HTTP API around the app's components.
func (a *App) NewServer() (*server.Server, error) {
	var opts []server.Option
	if a.Memory != nil {
		opts = append(opts, server.WithMemory(a.Memory))
	}
	if a.Knowledge != nil {
		opts = append(opts, server.WithKnowledge(a.Knowledge))
	}
	return server.New(server.ConfigFrom(a.Config.Server), a.Router, opts...)
}

// NewScheduler returns the watch-directory scheduler, or nil when no watch
// directory is configured.
func (a *App) NewScheduler() (*ingestion.Scheduler, error) {
	if a.Config.Ingestion.WatchDir == "" {
		return nil, nil
	}
	if a.Pipeline == nil {
		return nil, errors.New("watch_dir is set but the knowledge store is unavailable")
	}
	return ingestion.NewScheduler(a.Pipeline, a.Config.Ingestion.WatchDir, a.Config.Ingestion.Schedule)
}

// Close releases the stores.
func (a *App) Close() error {
	var errs []error
	if a.Memory != nil {
		errs = append(errs, a.Memory.Close())
	}
	if a.Knowledge != nil {
		errs = append(errs, a.Knowledge.Close())
	}
	return errors.Join(errs...)
}
