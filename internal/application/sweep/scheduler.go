package sweep

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Job is one periodic pass. It returns how many entities it acted on.
type Job struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// Scheduler runs every job once per interval. Jobs are idempotent, so several
// replicas may run the same scheduler.
type Scheduler struct {
	jobs     []Job
	interval time.Duration
	logger   zerolog.Logger
}

func NewScheduler(interval time.Duration, logger zerolog.Logger, jobs ...Job) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		jobs:     jobs,
		interval: interval,
		logger:   logger.With().Str("component", "sweep").Logger(),
	}
}

// RunOnce runs each job in order. A failing job is logged and does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) map[string]int {
	counts := make(map[string]int, len(s.jobs))
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			break
		}
		n, err := job.Run(ctx)
		counts[job.Name] = n
		if err != nil {
			s.logger.Error().Err(err).Str("job", job.Name).Int("processed", n).Msg("sweep failed")
			continue
		}
		if n > 0 {
			s.logger.Debug().Str("job", job.Name).Int("processed", n).Msg("sweep finished")
		}
	}
	return counts
}

// Start blocks, running the jobs every interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info().Dur("interval", s.interval).Int("jobs", len(s.jobs)).Msg("sweep scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweep scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}
