package ingestion

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/normanking/switchboard/internal/logging"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ═══════════════════════════════════════════════════════════════════════════════

// Scheduler re-scans a watch directory on a cron schedule. Runs that would
// overlap a still-running scan are skipped.
type Scheduler struct {
	cron     *cron.Cron
	pipeline *Pipeline
	dir      string
	log      *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler validates spec (standard 5-field cron or a descriptor such
// as "@every 15m") and prepares a scan of dir.
func NewScheduler(p *Pipeline, dir, spec string) (*Scheduler, error) {
	if dir == "" {
		return nil, fmt.Errorf("scheduler: watch dir is empty")
	}

	log := logging.Global().WithComponent("IngestScheduler")
	cl := cronLogger{log: log}

	s := &Scheduler{
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl))),
		pipeline: p,
		dir:      dir,
		log:      log,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if _, err := s.cron.AddFunc(spec, s.scan); err != nil {
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running scans in the background.
func (s *Scheduler) Start() {
	s.log.Info("watching %s", s.dir)
	s.cron.Start()
}

// Stop cancels an in-flight scan and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// RunNow performs one scan synchronously.
func (s *Scheduler) RunNow(ctx context.Context) (*Report, error) {
	return s.pipeline.Ingest(ctx, s.dir)
}

func (s *Scheduler) scan() {
	report, err := s.RunNow(s.ctx)
	if err != nil {
		s.log.Error("scheduled ingest failed: %v", err)
		return
	}
	if n := report.Count(OutcomeIngested); n > 0 {
		s.log.Info("scheduled ingest picked up %d files (%d chunks)", n, report.Chunks)
	}
	if n := report.Count(OutcomeFailed); n > 0 {
		s.log.Error("scheduled ingest failed for %d files: %v", n, report.Err())
	}
}

// cronLogger adapts the cron library's logger to ours.
type cronLogger struct {
	log *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: %s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: %s: %v %v", msg, err, keysAndValues)
}
