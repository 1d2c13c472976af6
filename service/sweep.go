package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"audionote-backend/repository"
)

const StuckProcessingMessage = "processing timed out"

type Sweeper interface {
	SweepDeduplications(ctx context.Context) (int64, error)
	ReconcileStuckRecordings(ctx context.Context) (int64, error)
}

type sweeper struct {
	repo       repository.Repository
	ledger     *DedupLedger
	stuckAfter time.Duration
	now        func() time.Time
}

func NewSweeper(repo repository.Repository, ledger *DedupLedger, stuckAfter time.Duration, now func() time.Time) Sweeper {
	if now == nil {
		now = time.Now
	}
	return &sweeper{
		repo:       repo,
		ledger:     ledger,
		stuckAfter: stuckAfter,
		now:        now,
	}
}

func (s *sweeper) SweepDeduplications(ctx context.Context) (int64, error) {
	deleted, err := s.ledger.Sweep(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("dedup sweep failed")
		return 0, err
	}
	zerolog.Ctx(ctx).Info().Int64("deleted", deleted).Msg("dedup sweep finished")
	return deleted, nil
}

// ReconcileStuckRecordings fails recordings whose processing started longer
// than stuckAfter ago, e.g. after a worker was killed mid-flight.
func (s *sweeper) ReconcileStuckRecordings(ctx context.Context) (int64, error) {
	now := s.now()
	failed, err := s.repo.FailStuckRecordings(ctx, now.Add(-s.stuckAfter), StuckProcessingMessage, now)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("stuck recording sweep failed")
		return 0, err
	}
	if failed > 0 {
		zerolog.Ctx(ctx).Warn().Int64("failed", failed).Msg("failed recordings stuck in processing")
	}
	return failed, nil
}
