package service

import (
	"context"
	"time"

	"labbook/internal/slots/repository"
	"labbook/pkg/config"
	mongotx "labbook/pkg/db/mongo"
	"labbook/pkg/logger"
	"labbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Mock repositories for testing

type mockSlotRepository struct {
	insertFunc               func(ctx context.Context, slot *model.Slot) error
	findByIDFunc             func(ctx context.Context, id string) (*model.Slot, error)
	findAvailableFunc        func(ctx context.Context, infrastructureID string, date string, limit int, offset int64) ([]*model.Slot, error)
	countAvailableFunc       func(ctx context.Context, infrastructureID string, date string) (int64, error)
	findBookingsByEmailFunc  func(ctx context.Context, userEmail string, limit int, offset int64) ([]*model.Slot, error)
	countBookingsByEmailFunc func(ctx context.Context, userEmail string) (int64, error)
	findBookingsFunc         func(ctx context.Context, limit int, offset int64) ([]*model.Slot, error)
	countBookingsFunc        func(ctx context.Context) (int64, error)
	countOverlappingFunc     func(ctx context.Context, infrastructureID string, date string, start, end time.Time, excludeID string) (int64, error)
	claimAvailableFunc       func(ctx context.Context, id string, userEmail string, purpose string) (*model.Slot, error)
	transitionStatusFunc     func(ctx context.Context, id string, fromStatuses []string, toStatus string) (*model.Slot, error)
	findExpiredIDsFunc       func(ctx context.Context, now time.Time, limit int) ([]primitive.ObjectID, error)
	markCompletedFunc        func(ctx context.Context, ids []primitive.ObjectID) (int64, error)
}

func (m *mockSlotRepository) Insert(ctx context.Context, slot *model.Slot) error {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, slot)
	}
	return nil
}

func (m *mockSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return &model.Slot{ID: id}, nil
}

func (m *mockSlotRepository) FindAvailable(ctx context.Context, infrastructureID string, date string, limit int, offset int64) ([]*model.Slot, error) {
	if m.findAvailableFunc != nil {
		return m.findAvailableFunc(ctx, infrastructureID, date, limit, offset)
	}
	return []*model.Slot{}, nil
}

func (m *mockSlotRepository) CountAvailable(ctx context.Context, infrastructureID string, date string) (int64, error) {
	if m.countAvailableFunc != nil {
		return m.countAvailableFunc(ctx, infrastructureID, date)
	}
	return 0, nil
}

func (m *mockSlotRepository) FindBookingsByEmail(ctx context.Context, userEmail string, limit int, offset int64) ([]*model.Slot, error) {
	if m.findBookingsByEmailFunc != nil {
		return m.findBookingsByEmailFunc(ctx, userEmail, limit, offset)
	}
	return []*model.Slot{}, nil
}

func (m *mockSlotRepository) CountBookingsByEmail(ctx context.Context, userEmail string) (int64, error) {
	if m.countBookingsByEmailFunc != nil {
		return m.countBookingsByEmailFunc(ctx, userEmail)
	}
	return 0, nil
}

func (m *mockSlotRepository) FindBookings(ctx context.Context, limit int, offset int64) ([]*model.Slot, error) {
	if m.findBookingsFunc != nil {
		return m.findBookingsFunc(ctx, limit, offset)
	}
	return []*model.Slot{}, nil
}

func (m *mockSlotRepository) CountBookings(ctx context.Context) (int64, error) {
	if m.countBookingsFunc != nil {
		return m.countBookingsFunc(ctx)
	}
	return 0, nil
}

func (m *mockSlotRepository) CountOverlapping(ctx context.Context, infrastructureID string, date string, start, end time.Time, excludeID string) (int64, error) {
	if m.countOverlappingFunc != nil {
		return m.countOverlappingFunc(ctx, infrastructureID, date, start, end, excludeID)
	}
	return 0, nil
}

func (m *mockSlotRepository) ClaimAvailable(ctx context.Context, id string, userEmail string, purpose string) (*model.Slot, error) {
	if m.claimAvailableFunc != nil {
		return m.claimAvailableFunc(ctx, id, userEmail, purpose)
	}
	return &model.Slot{ID: id, UserEmail: userEmail, Purpose: purpose, Kind: model.KindBooking, Status: model.StatusPending}, nil
}

func (m *mockSlotRepository) TransitionStatus(ctx context.Context, id string, fromStatuses []string, toStatus string) (*model.Slot, error) {
	if m.transitionStatusFunc != nil {
		return m.transitionStatusFunc(ctx, id, fromStatuses, toStatus)
	}
	return &model.Slot{ID: id, Status: toStatus}, nil
}

func (m *mockSlotRepository) FindExpiredIDs(ctx context.Context, now time.Time, limit int) ([]primitive.ObjectID, error) {
	if m.findExpiredIDsFunc != nil {
		return m.findExpiredIDsFunc(ctx, now, limit)
	}
	return nil, nil
}

func (m *mockSlotRepository) MarkCompleted(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	if m.markCompletedFunc != nil {
		return m.markCompletedFunc(ctx, ids)
	}
	return int64(len(ids)), nil
}

// ExecuteTransaction runs the callback directly; the mocks it calls
// never touch a real session.
func (m *mockSlotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockLockRepository struct {
	createFunc func(ctx context.Context, lock *repository.SlotLock) (*repository.SlotLock, error)
	deleteFunc func(ctx context.Context, lockID string) error
}

func (m *mockLockRepository) Create(ctx context.Context, lock *repository.SlotLock) (*repository.SlotLock, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, lock)
	}
	return lock, nil
}

func (m *mockLockRepository) Delete(ctx context.Context, lockID string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, lockID)
	}
	return nil
}

type mockAnswerRepository struct {
	insertManyFunc    func(ctx context.Context, answers []model.Answer) error
	findByBookingFunc func(ctx context.Context, bookingID string) ([]model.Answer, error)
}

func (m *mockAnswerRepository) InsertMany(ctx context.Context, answers []model.Answer) error {
	if m.insertManyFunc != nil {
		return m.insertManyFunc(ctx, answers)
	}
	return nil
}

func (m *mockAnswerRepository) FindByBooking(ctx context.Context, bookingID string) ([]model.Answer, error) {
	if m.findByBookingFunc != nil {
		return m.findByBookingFunc(ctx, bookingID)
	}
	return nil, nil
}

type mockProvider struct {
	requiredFunc func(ctx context.Context, infrastructureID string) ([]string, error)
}

func (m *mockProvider) RequiredQuestionIDs(ctx context.Context, infrastructureID string) ([]string, error) {
	if m.requiredFunc != nil {
		return m.requiredFunc(ctx, infrastructureID)
	}
	return nil, nil
}

// mockDispatcher records which lifecycle events were published.
type mockDispatcher struct {
	slotCreated      []*model.Slot
	requested        []*model.Slot
	approved         []*model.Slot
	rejected         []*model.Slot
	rejectedReplaced []string
	canceled         []*model.Slot
}

func (m *mockDispatcher) SlotCreated(_ context.Context, slot *model.Slot) {
	m.slotCreated = append(m.slotCreated, slot)
}

func (m *mockDispatcher) BookingRequested(_ context.Context, slot *model.Slot) {
	m.requested = append(m.requested, slot)
}

func (m *mockDispatcher) BookingApproved(_ context.Context, slot *model.Slot, _ model.Actor) {
	m.approved = append(m.approved, slot)
}

func (m *mockDispatcher) BookingRejected(_ context.Context, slot *model.Slot, replacementSlotID string, _ model.Actor) {
	m.rejected = append(m.rejected, slot)
	m.rejectedReplaced = append(m.rejectedReplaced, replacementSlotID)
}

func (m *mockDispatcher) BookingCanceled(_ context.Context, slot *model.Slot, _ model.Actor) {
	m.canceled = append(m.canceled, slot)
}

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:     "error",
			Format:    logger.JSON,
			AddSource: false,
			Service:   "test",
		}),
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		CancelCutoff:   24 * time.Hour,
		MaxBatchDays:   92,
		MaxSlotsPerDay: 48,
	}
}
