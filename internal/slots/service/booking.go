package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"labbook/internal/notify"
	"labbook/internal/questions"
	slotserrors "labbook/internal/slots/errors"
	"labbook/internal/slots/repository"
	"labbook/internal/slots/validator"
	"labbook/pkg/config"
	apperrors "labbook/pkg/errors"
	"labbook/pkg/model"
	"labbook/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

// BookingService owns every status transition of the slot lifecycle.
// All transitions are conditional writes keyed on the row's current
// status, so concurrent callers cannot skip or reverse an edge.
type BookingService interface {
	Request(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Slot, error)
	Approve(ctx context.Context, actor model.Actor, bookingID string) (*model.Slot, error)
	Reject(ctx context.Context, actor model.Actor, bookingID string) (*model.Slot, *model.Slot, error)
	Cancel(ctx context.Context, actor model.Actor, bookingID string) (*model.Slot, error)
	GetByID(ctx context.Context, id string) (*model.Slot, []model.Answer, error)
	List(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Slot, int64, error)
}

type bookingService struct {
	repo       repository.SlotRepository
	answerRepo repository.AnswerRepository
	provider   questions.Provider
	validator  *validator.SlotValidator
	dispatcher notify.Dispatcher
	cfg        *config.Config
}

func NewBookingService(
	repo repository.SlotRepository,
	answerRepo repository.AnswerRepository,
	provider questions.Provider,
	v *validator.SlotValidator,
	dispatcher notify.Dispatcher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:       repo,
		answerRepo: answerRepo,
		provider:   provider,
		validator:  v,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

// Request claims an available timeslot for the actor. The claim is a
// single conditional update on status=available, never a
// read-then-write pair, so of N concurrent requesters exactly one
// wins. Answers to the infrastructure's required questions must all be
// present before anything is written.
func (s *bookingService) Request(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Slot, error) {
	if err := s.validator.ValidateBookingRequest(req); err != nil {
		s.cfg.Log.Warn("Booking request validation failed", "error", err)
		return nil, apperrors.Validation("Invalid booking request", map[string]any{"error": err.Error()})
	}

	slot, err := s.findSlot(ctx, req.SlotID)
	if err != nil {
		return nil, err
	}

	if err := s.checkRequiredAnswers(ctx, slot.InfrastructureID, req.Answers); err != nil {
		return nil, err
	}

	purpose := sanitizer.NormalizePurpose(req.Purpose)

	var claimed *model.Slot
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var txErr error
		claimed, txErr = s.repo.ClaimAvailable(sessCtx, req.SlotID, actor.Email, purpose)
		if txErr != nil {
			if errors.Is(txErr, slotserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Slot", req.SlotID)
			}
			if errors.Is(txErr, slotserrors.ErrStatusConflict) {
				return apperrors.Conflict("Slot has already been claimed").
					WithReason(apperrors.ReasonAlreadyClaimed)
			}
			return apperrors.Internal("Failed to claim slot", txErr)
		}

		answers := make([]model.Answer, len(req.Answers))
		copy(answers, req.Answers)
		for i := range answers {
			answers[i].BookingID = claimed.ID
		}
		if txErr = s.answerRepo.InsertMany(sessCtx, answers); txErr != nil {
			return apperrors.Internal("Failed to persist answers", txErr)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to request booking", "slot_id", req.SlotID, "error", err)
		return nil, err
	}

	s.dispatcher.BookingRequested(ctx, claimed)

	s.cfg.Log.Info("Booking requested",
		"id", claimed.ID,
		"infrastructure_id", claimed.InfrastructureID,
		"user_email", claimed.UserEmail,
		"start_at", claimed.StartAt,
	)
	return claimed, nil
}

func (s *bookingService) Approve(ctx context.Context, actor model.Actor, bookingID string) (*model.Slot, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}

	approved, err := s.transition(ctx, bookingID, []string{model.StatusPending}, model.StatusApproved)
	if err != nil {
		return nil, err
	}

	s.dispatcher.BookingApproved(ctx, approved, actor)

	s.cfg.Log.Info("Booking approved", "id", approved.ID, "approved_by", actor.Email)
	return approved, nil
}

// Reject moves a pending booking to its terminal rejected state and,
// in the same transaction, re-offers the window by inserting a fresh
// available timeslot with the identical coordinates. No overlap check
// is needed for the replacement: the rejected row is leaving the
// active set as the new one enters it.
func (s *bookingService) Reject(ctx context.Context, actor model.Actor, bookingID string) (*model.Slot, *model.Slot, error) {
	if err := requireManager(actor); err != nil {
		return nil, nil, err
	}

	var rejected, replacement *model.Slot
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var txErr error
		rejected, txErr = s.repo.TransitionStatus(sessCtx, bookingID, []string{model.StatusPending}, model.StatusRejected)
		if txErr != nil {
			return s.mapTransitionError(txErr, bookingID)
		}

		replacement = &model.Slot{
			InfrastructureID: rejected.InfrastructureID,
			BookingDate:      rejected.BookingDate,
			StartAt:          rejected.StartAt,
			EndAt:            rejected.EndAt,
			Kind:             model.KindTimeslot,
			Status:           model.StatusAvailable,
		}
		if txErr = s.repo.Insert(sessCtx, replacement); txErr != nil {
			return apperrors.Internal("Failed to regenerate slot", txErr)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to reject booking", "id", bookingID, "error", err)
		return nil, nil, err
	}

	s.dispatcher.BookingRejected(ctx, rejected, replacement.ID, actor)

	s.cfg.Log.Info("Booking rejected",
		"id", rejected.ID,
		"replacement_slot_id", replacement.ID,
		"rejected_by", actor.Email,
	)
	return rejected, replacement, nil
}

// Cancel retires a pending or approved booking. End users may only
// cancel their own bookings and only while the start is still further
// away than the cutoff; managers and admins are bound by neither rule.
// Cancellation never re-offers the window.
func (s *bookingService) Cancel(ctx context.Context, actor model.Actor, bookingID string) (*model.Slot, error) {
	slot, err := s.findSlot(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if slot.IsTerminal() {
		return nil, apperrors.Conflict("Booking is not in a valid status for this transition").
			WithReason(apperrors.ReasonInvalidStatus)
	}

	if !actor.Role.CanManage() {
		if slot.UserEmail != actor.Email {
			return nil, apperrors.Forbidden("Only the booking owner may cancel it").
				WithReason(apperrors.ReasonRoleMismatch)
		}
		if time.Until(slot.StartAt) < s.cfg.CancelCutoff {
			return nil, apperrors.Forbidden("Booking starts within the cancellation cutoff window").
				WithReason(apperrors.ReasonWithinCutoff)
		}
	}

	canceled, err := s.transition(ctx, bookingID, []string{model.StatusPending, model.StatusApproved}, model.StatusCanceled)
	if err != nil {
		return nil, err
	}

	s.dispatcher.BookingCanceled(ctx, canceled, actor)

	s.cfg.Log.Info("Booking canceled", "id", canceled.ID, "canceled_by", actor.Email)
	return canceled, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Slot, []model.Answer, error) {
	slot, err := s.findSlot(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if slot.Kind != model.KindBooking {
		return slot, nil, nil
	}

	answers, err := s.answerRepo.FindByBooking(ctx, slot.ID)
	if err != nil {
		s.cfg.Log.Error("Failed to load booking answers", "id", id, "error", err)
		return nil, nil, apperrors.Internal("Failed to load booking answers", err)
	}
	return slot, answers, nil
}

// List returns the actor's own bookings; managers see all bookings.
func (s *bookingService) List(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Slot, int64, error) {
	var count int64
	var bookings []*model.Slot
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if actor.Role.CanManage() {
			count, errCount = s.repo.CountBookings(ctx)
		} else {
			count, errCount = s.repo.CountBookingsByEmail(ctx, actor.Email)
		}
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		if actor.Role.CanManage() {
			bookings, errFind = s.repo.FindBookings(ctx, limit, offset)
		} else {
			bookings, errFind = s.repo.FindBookingsByEmail(ctx, actor.Email, limit, offset)
		}
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Internal("Failed to list bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

// --- Helpers ---

func (s *bookingService) findSlot(ctx context.Context, id string) (*model.Slot, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}

	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, slotserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Slot", id)
		}
		if errors.Is(err, slotserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid slot ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve slot", err)
	}
	return slot, nil
}

func (s *bookingService) checkRequiredAnswers(ctx context.Context, infrastructureID string, answers []model.Answer) error {
	requiredIDs, err := s.provider.RequiredQuestionIDs(ctx, infrastructureID)
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.Internal("Failed to load required questions", err)
	}

	answered := make(map[string]bool, len(answers))
	for _, a := range answers {
		if !a.Empty() {
			answered[a.QuestionID] = true
		}
	}

	var missing []string
	for _, questionID := range requiredIDs {
		if !answered[questionID] {
			missing = append(missing, questionID)
		}
	}

	if len(missing) > 0 {
		return apperrors.InvalidInput("Required questions are missing answers").WithDetails(map[string]any{
			"reason":               apperrors.ReasonMissingAnswers,
			"missing_question_ids": missing,
		})
	}
	return nil
}

func (s *bookingService) transition(ctx context.Context, id string, fromStatuses []string, toStatus string) (*model.Slot, error) {
	slot, err := s.repo.TransitionStatus(ctx, id, fromStatuses, toStatus)
	if err != nil {
		mapped := s.mapTransitionError(err, id)
		s.cfg.Log.Warn("Status transition failed", "id", id, "to_status", toStatus, "error", mapped)
		return nil, mapped
	}
	return slot, nil
}

func (s *bookingService) mapTransitionError(err error, id string) error {
	if errors.Is(err, slotserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Booking", id)
	}
	if errors.Is(err, slotserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid booking ID format")
	}
	if errors.Is(err, slotserrors.ErrStatusConflict) {
		return apperrors.Conflict("Booking is not in a valid status for this transition").
			WithReason(apperrors.ReasonInvalidStatus)
	}
	return apperrors.Internal("Failed to update booking", err)
}

func requireManager(actor model.Actor) error {
	if !actor.Role.CanManage() {
		return apperrors.Forbidden("This operation requires a manager or admin role").
			WithReason(apperrors.ReasonRoleMismatch)
	}
	return nil
}
