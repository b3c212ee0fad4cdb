// Package scheduler runs the periodic chores around the task lifecycle:
// health sweeps, and the daily and weekly briefings written into the vault.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is a named periodic chore.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Service drives registered jobs on their intervals, one goroutine per job.
type Service struct {
	jobs []Job

	wg         sync.WaitGroup
	shutdownCh chan struct{}
	startOnce  sync.Once
	stopOnce   sync.Once
}

// New creates a scheduler with the given jobs.
func New(jobs ...Job) *Service {
	return &Service{jobs: jobs, shutdownCh: make(chan struct{})}
}

// Add registers another job. Only valid before Start.
func (s *Service) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start launches one ticker goroutine per job.
func (s *Service) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		for _, job := range s.jobs {
			if job.Interval <= 0 || job.Run == nil {
				continue
			}
			s.wg.Add(1)
			go s.loop(ctx, job)
		}
	})
}

// Shutdown stops all jobs and waits for in-flight runs.
func (s *Service) Shutdown() {
	s.stopOnce.Do(func() { close(s.shutdownCh) })
	s.wg.Wait()
}

func (s *Service) loop(ctx context.Context, job Job) {
	defer s.wg.Done()
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		case <-ticker.C:
			if err := job.Run(ctx); err != nil {
				log.Printf("[scheduler] job %s failed: %v", job.Name, err)
			}
		}
	}
}
