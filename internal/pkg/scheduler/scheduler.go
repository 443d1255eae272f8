// Package scheduler runs periodic housekeeping jobs.
package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

type Job struct {
	Name     string
	Interval time.Duration
	Task     func()
}

type Scheduler struct {
	scheduler gocron.Scheduler
}

// Start schedules every job and begins running them. Jobs never overlap with
// themselves.
func Start(jobs ...Job) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	for _, job := range jobs {
		if job.Interval <= 0 {
			log.Info().Str("job", job.Name).Msg("Job disabled")
			continue
		}
		_, err := s.NewJob(
			gocron.DurationJob(job.Interval),
			gocron.NewTask(job.Task),
			gocron.WithName(job.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = s.Shutdown()
			return nil, fmt.Errorf("failed to schedule %s: %w", job.Name, err)
		}
	}

	s.Start()
	return &Scheduler{scheduler: s}, nil
}

func (s *Scheduler) Stop() {
	if err := s.scheduler.Shutdown(); err != nil {
		log.Warn().Err(err).Msg("Error stopping scheduler")
	}
}
