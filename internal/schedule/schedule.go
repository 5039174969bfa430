// Package schedule triggers monitor runs on a cron expression.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/north-cloud/regwatch/internal/logger"
)

// RunFunc performs one batch.
type RunFunc func(ctx context.Context) error

// parser accepts standard 5-field expressions and descriptors like @daily.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate reports whether spec is a usable cron expression.
func Validate(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

// Next returns the first activation of spec after t.
func Next(spec string, t time.Time) (time.Time, error) {
	s, err := parser.Parse(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return s.Next(t), nil
}

// Scheduler runs a RunFunc on a cron schedule. A tick that fires while the
// previous run is still going is skipped.
type Scheduler struct {
	log  logger.Logger
	spec string
	run  RunFunc
	cron *cron.Cron

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc

	busy sync.Mutex
}

// New creates a Scheduler. The expression is validated here.
func New(spec string, run RunFunc, log logger.Logger) (*Scheduler, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}
	return &Scheduler{
		log:  log,
		spec: spec,
		run:  run,
		cron: cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
	}, nil
}

// Start begins firing. Runs receive a context derived from ctx that Stop
// cancels.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.cron.AddFunc(s.spec, s.fire); err != nil {
		s.cancel()
		return fmt.Errorf("schedule run: %w", err)
	}
	s.cron.Start()
	s.running = true

	if next, err := Next(s.spec, time.Now()); err == nil {
		s.log.Info("Scheduler started", logger.String("cron", s.spec), logger.Time("next_run", next))
	}
	return nil
}

// Stop cancels an in-flight run and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
}

func (s *Scheduler) fire() {
	if !s.busy.TryLock() {
		s.log.Warn("Skipping scheduled run, previous run still in progress")
		return
	}
	defer s.busy.Unlock()

	start := time.Now()
	if err := s.run(s.ctx); err != nil {
		s.log.Error("Scheduled run failed", logger.Error(err), logger.Duration("duration", time.Since(start)))
		return
	}
	s.log.Info("Scheduled run finished", logger.Duration("duration", time.Since(start)))
}
