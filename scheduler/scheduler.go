package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"audionote-backend/service"
)

const (
	DedupSweepJob     = "dedup_sweep"
	StuckRecordingJob = "stuck_recording_sweep"
)

// Scheduler runs the periodic maintenance sweeps.
type Scheduler struct {
	scheduler gocron.Scheduler
	sweeper   service.Sweeper
	interval  time.Duration
}

func New(sweeper service.Sweeper, interval time.Duration) (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{
		scheduler: s,
		sweeper:   sweeper,
		interval:  interval,
	}, nil
}

// Start registers both sweeps and starts the scheduler. Sweep errors are
// logged by the sweeper and never stop the schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := map[string]func(context.Context) (int64, error){
		DedupSweepJob:     s.sweeper.SweepDeduplications,
		StuckRecordingJob: s.sweeper.ReconcileStuckRecordings,
	}

	for name, run := range jobs {
		logger := zerolog.Ctx(ctx).With().Str("job", name).Logger()
		jobCtx := logger.WithContext(ctx)
		_, err := s.scheduler.NewJob(
			gocron.DurationJob(s.interval),
			gocron.NewTask(func() {
				_, _ = run(jobCtx)
			}),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to register %s: %w", name, err)
		}
	}

	s.scheduler.Start()
	zerolog.Ctx(ctx).Info().Dur("interval", s.interval).Msg("scheduler started")
	return nil
}

func (s *Scheduler) Jobs() []gocron.Job {
	return s.scheduler.Jobs()
}

func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}
