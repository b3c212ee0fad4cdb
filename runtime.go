package taskvault

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/taskvault/taskvault/service/scheduler"
	"github.com/taskvault/taskvault/service/source"
)

// Runtime is a started service: adapter runners, orchestrator workers and the
// scheduler, all bound to one context.
type Runtime struct {
	service  *Service
	cancel   context.CancelFunc
	runnerWg sync.WaitGroup
	stopOnce sync.Once
}

// Start launches every component and returns a handle to stop them.
func (s *Service) Start(ctx context.Context) (*Runtime, error) {
	ctx, cancel := context.WithCancel(ctx)
	r := &Runtime{service: s, cancel: cancel}

	for _, adapter := range s.adapters {
		runner := source.NewRunner(adapter, s.ingestion, s.monitor)
		r.runnerWg.Add(1)
		go func(runner *source.Runner) {
			defer r.runnerWg.Done()
			runner.Run(ctx)
		}(runner)
	}

	s.orchestrator.Start(ctx)

	s.scheduler.Add(scheduler.Job{
		Name:     "health-sweep",
		Interval: time.Duration(s.config.HealthInterval),
		Run: func(ctx context.Context) error {
			s.monitor.Sweep(ctx)
			return nil
		},
	})
	s.scheduler.Add(scheduler.Job{
		Name:     "daily-briefing",
		Interval: time.Duration(s.config.DailyInterval),
		Run:      s.briefing.Daily,
	})
	s.scheduler.Add(scheduler.Job{
		Name:     "weekly-briefing",
		Interval: time.Duration(s.config.WeeklyInterval),
		Run:      s.briefing.Weekly,
	})
	s.scheduler.Start(ctx)

	log.Printf("[taskvault] started: vault=%s adapters=%d", s.config.VaultPath, len(s.adapters))
	return r, nil
}

// Shutdown stops every component and waits for in-flight work.
func (r *Runtime) Shutdown() {
	r.stopOnce.Do(func() {
		r.cancel()
		r.runnerWg.Wait()
		r.service.orchestrator.Shutdown()
		r.service.scheduler.Shutdown()
		log.Printf("[taskvault] stopped")
	})
}
