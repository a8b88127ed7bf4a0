package service

import (
	"context"
	"time"

	"labbook/internal/slots/repository"
	apperrors "labbook/pkg/errors"
	"labbook/pkg/logger"
)

// Sweeper retires slots whose window has passed: every non-terminal
// row with end_at in the past moves to completed. It runs on a timer
// and can be forced through the management API. Rows are processed in
// bounded batches so the sweep never holds a long-running write.
type Sweeper struct {
	repo      repository.SlotRepository
	interval  time.Duration
	batchSize int
	log       *logger.Logger
	stopCh    chan struct{}
}

func NewSweeper(repo repository.SlotRepository, interval time.Duration, batchSize int, log *logger.Logger) *Sweeper {
	return &Sweeper{
		repo:      repo,
		interval:  interval,
		batchSize: batchSize,
		log:       log,
		stopCh:    make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.log.Info("Starting expiry sweeper", "interval", s.interval, "batch_size", s.batchSize)
	go s.run(ctx)
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
}

func (s *Sweeper) run(ctx context.Context) {
	// First pass right away so a restart does not leave stale rows
	// sitting until the first tick.
	s.sweepAndLog(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepAndLog(ctx)
		case <-s.stopCh:
			s.log.Info("Expiry sweeper stopped")
			return
		case <-ctx.Done():
			s.log.Info("Expiry sweeper cancelled")
			return
		}
	}
}

func (s *Sweeper) sweepAndLog(ctx context.Context) {
	updated, err := s.Sweep(ctx)
	if err != nil {
		s.log.Error("Expiry sweep failed", "error", err)
		return
	}
	if updated > 0 {
		s.log.Info("Expiry sweep completed", "updated_count", updated)
	}
}

// Sweep retires expired rows and reports how many it updated. The scan
// predicate excludes terminal rows, so repeated sweeps are no-ops on
// already-processed slots. A row that a manager transitions between
// the scan and the write is skipped by the guarded update and picked
// up, if still active, on the next pass.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	now := time.Now().UTC()

	var total int64
	for {
		ids, err := s.repo.FindExpiredIDs(ctx, now, s.batchSize)
		if err != nil {
			return total, apperrors.Internal("Failed to scan for expired slots", err)
		}
		if len(ids) == 0 {
			break
		}

		updated, err := s.repo.MarkCompleted(ctx, ids)
		if err != nil {
			return total, apperrors.Internal("Failed to retire expired slots", err)
		}
		total += updated

		if len(ids) < s.batchSize {
			break
		}
	}

	return total, nil
}
