package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"labbook/internal/notify"
	"labbook/internal/slots/repository"
	"labbook/internal/slots/validator"
	"labbook/pkg/config"
	apperrors "labbook/pkg/errors"
	"labbook/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// SlotService publishes bookable time windows. Every insert goes
// through the overlap check inside an advisory lock and a store
// transaction, so two concurrent publishers cannot both claim the same
// window on an infrastructure.
type SlotService interface {
	Create(ctx context.Context, spec *model.SlotSpec) (*model.Slot, error)
	CreateBatch(ctx context.Context, spec *model.BatchSpec) (*model.BatchResult, error)
	ListAvailable(ctx context.Context, infrastructureID string, date string, limit int, offset int64) ([]*model.Slot, int64, error)
}

type slotService struct {
	repo       repository.SlotRepository
	lockRepo   repository.SlotLockRepository
	validator  *validator.SlotValidator
	dispatcher notify.Dispatcher
	cfg        *config.Config
}

func NewSlotService(
	repo repository.SlotRepository,
	lockRepo repository.SlotLockRepository,
	v *validator.SlotValidator,
	dispatcher notify.Dispatcher,
	cfg *config.Config,
) SlotService {
	return &slotService{
		repo:       repo,
		lockRepo:   lockRepo,
		validator:  v,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

func (s *slotService) Create(ctx context.Context, spec *model.SlotSpec) (*model.Slot, error) {
	if err := s.validator.ValidateSpec(spec, time.Now()); err != nil {
		s.cfg.Log.Warn("Slot validation failed", "error", err)
		return nil, apperrors.Validation("Invalid slot specification", map[string]any{"error": err.Error()})
	}

	startAt, err := combineDateTime(spec.Date, spec.StartTime)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	endAt, err := combineDateTime(spec.Date, spec.EndTime)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	slot := newTimeslot(spec.InfrastructureID, spec.Date, startAt, endAt)
	if err := s.createOne(ctx, slot); err != nil {
		return nil, err
	}

	s.dispatcher.SlotCreated(ctx, slot)

	s.cfg.Log.Info("Slot created",
		"id", slot.ID,
		"infrastructure_id", slot.InfrastructureID,
		"booking_date", slot.BookingDate,
		"start_at", slot.StartAt,
	)
	return slot, nil
}

// CreateBatch expands the daily grid over the date range and commits
// each candidate independently; an overlapping candidate is skipped
// and never aborts the remainder of the batch.
func (s *slotService) CreateBatch(ctx context.Context, spec *model.BatchSpec) (*model.BatchResult, error) {
	if err := s.validator.ValidateBatch(spec, time.Now()); err != nil {
		s.cfg.Log.Warn("Batch validation failed", "error", err)
		return nil, apperrors.Validation("Invalid batch specification", map[string]any{"error": err.Error()})
	}

	startDate, _ := time.Parse(model.DateLayout, spec.StartDate)
	endDate, _ := time.Parse(model.DateLayout, spec.EndDate)
	duration := time.Duration(spec.SlotDurationMinutes) * time.Minute

	result := &model.BatchResult{}
	for day := startDate; !day.After(endDate); day = day.AddDate(0, 0, 1) {
		date := day.Format(model.DateLayout)
		dayStart, err := combineDateTime(date, spec.DailyStartTime)
		if err != nil {
			return nil, apperrors.InvalidInput(err.Error())
		}

		for k := 0; k < spec.SlotsPerDay; k++ {
			startAt := dayStart.Add(time.Duration(k) * duration)
			slot := newTimeslot(spec.InfrastructureID, date, startAt, startAt.Add(duration))

			err := s.createOne(ctx, slot)
			switch {
			case err == nil:
				result.Created++
			case isConflict(err):
				result.Skipped++
			default:
				s.cfg.Log.Error("Batch slot creation failed",
					"infrastructure_id", spec.InfrastructureID,
					"booking_date", date,
					"start_at", startAt,
					"error", err,
				)
				return nil, err
			}
		}
	}

	s.cfg.Log.Info("Batch slot creation completed",
		"infrastructure_id", spec.InfrastructureID,
		"start_date", spec.StartDate,
		"end_date", spec.EndDate,
		"created", result.Created,
		"skipped", result.Skipped,
	)
	return result, nil
}

func (s *slotService) ListAvailable(ctx context.Context, infrastructureID string, date string, limit int, offset int64) ([]*model.Slot, int64, error) {
	if infrastructureID == "" {
		return nil, 0, apperrors.InvalidInput("infrastructure_id is required")
	}

	var count int64
	var slots []*model.Slot
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountAvailable(ctx, infrastructureID, date)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count available slots", "infrastructure_id", infrastructureID, "error", errCount)
			errCount = apperrors.Internal("Failed to count available slots", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		slots, errFind = s.repo.FindAvailable(ctx, infrastructureID, date, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list available slots", "infrastructure_id", infrastructureID, "error", errFind)
			errFind = apperrors.Internal("Failed to list available slots", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return slots, count, nil
}

// createOne runs the overlap-check-and-insert pair for one candidate
// window: advisory lock on the infrastructure/day, then a transaction
// holding the check and the insert together.
func (s *slotService) createOne(ctx context.Context, slot *model.Slot) error {
	lockID, err := s.acquireWindowLock(ctx, slot)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := s.lockRepo.Delete(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	return s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		overlapping, err := s.repo.CountOverlapping(sessCtx, slot.InfrastructureID, slot.BookingDate, slot.StartAt, slot.EndAt, "")
		if err != nil {
			return apperrors.Internal("Failed to check for overlapping slots", err)
		}
		if overlapping > 0 {
			return apperrors.Conflict(fmt.Sprintf(
				"Window %s - %s overlaps an existing slot",
				slot.StartAt.Format(time.RFC3339),
				slot.EndAt.Format(time.RFC3339),
			)).WithReason(apperrors.ReasonOverlap)
		}

		if err := s.repo.Insert(sessCtx, slot); err != nil {
			return apperrors.Internal("Failed to insert slot", err)
		}
		return nil
	})
}

// acquireWindowLock serializes publication per infrastructure and day.
// The overlap count and the insert run on a transaction snapshot, so
// two writers holding different locks would never see each other's
// uncommitted rows; a narrower key (per start time) would let two
// overlapping-but-distinct windows both commit.
func (s *slotService) acquireWindowLock(ctx context.Context, slot *model.Slot) (string, error) {
	lockID := fmt.Sprintf("slot_lock_%s_%s", slot.InfrastructureID, slot.BookingDate)

	lock := &repository.SlotLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(10 * time.Second),
	}

	if _, err := s.lockRepo.Create(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("This window is currently being published by another request. Please try again.").
				WithReason(apperrors.ReasonOverlap)
		}
		return "", apperrors.Internal("Failed to acquire slot lock", err)
	}

	return lockID, nil
}

func newTimeslot(infrastructureID, date string, startAt, endAt time.Time) *model.Slot {
	return &model.Slot{
		InfrastructureID: infrastructureID,
		BookingDate:      date,
		StartAt:          startAt,
		EndAt:            endAt,
		Kind:             model.KindTimeslot,
		Status:           model.StatusAvailable,
	}
}

func combineDateTime(date, clock string) (time.Time, error) {
	t, err := time.Parse(model.DateLayout+" "+model.TimeLayout, date+" "+clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time %q %q", date, clock)
	}
	return t, nil
}

func isConflict(err error) bool {
	var appErr *apperrors.AppError
	return errors.As(err, &appErr) && appErr.Code == apperrors.CodeConflict
}
