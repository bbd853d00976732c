// Package scheduler implements C11: a minimal periodic job runner for
// DN42 refresh, stats snapshotting, and KV TTL sweeping. Each job runs
// on its own ticker-driven goroutine so a slow job never delays
// connection handling; at shutdown Stop cancels the context shared by
// all jobs and waits for each job's goroutine to return.
package scheduler

import (
	"context"
	"sync"
	"time"

	"whoisgate/internal/logging"
)

// Job is one periodically-run unit of work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler owns a set of jobs, each on its own ticker.
type Scheduler struct {
	log    *logging.Logger
	jobs   []Job
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(log *logging.Logger) *Scheduler {
	return &Scheduler{log: log.With("scheduler")}
}

// Add registers a job. Jobs must be added before Start.
func (s *Scheduler) Add(j Job) {
	s.jobs = append(s.jobs, j)
}

// Start runs every registered job immediately once, then on its own
// ticker, until Stop cancels the context derived here from parent.
func (s *Scheduler) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runJob(ctx, job)
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	defer s.wg.Done()

	runOnce := func() {
		if err := job.Run(ctx); err != nil {
			s.log.Warn("job %s failed: %v", job.Name, err)
		}
	}
	runOnce()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Debug("job %s stopping", job.Name)
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// Stop cancels every job and waits for its current run to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
