package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	slotserrors "labbook/internal/slots/errors"
	"labbook/pkg/config"
	mongotx "labbook/pkg/db/mongo"
	"labbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Slots"
)

type mongoSlotRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type SlotRepository interface {
	Insert(ctx context.Context, slot *model.Slot) error
	FindByID(ctx context.Context, id string) (*model.Slot, error)
	FindAvailable(ctx context.Context, infrastructureID string, date string, limit int, offset int64) ([]*model.Slot, error)
	CountAvailable(ctx context.Context, infrastructureID string, date string) (int64, error)
	FindBookingsByEmail(ctx context.Context, userEmail string, limit int, offset int64) ([]*model.Slot, error)
	CountBookingsByEmail(ctx context.Context, userEmail string) (int64, error)
	FindBookings(ctx context.Context, limit int, offset int64) ([]*model.Slot, error)
	CountBookings(ctx context.Context) (int64, error)
	CountOverlapping(ctx context.Context, infrastructureID string, date string, start, end time.Time, excludeID string) (int64, error)
	ClaimAvailable(ctx context.Context, id string, userEmail string, purpose string) (*model.Slot, error)
	TransitionStatus(ctx context.Context, id string, fromStatuses []string, toStatus string) (*model.Slot, error)
	FindExpiredIDs(ctx context.Context, now time.Time, limit int) ([]primitive.ObjectID, error)
	MarkCompleted(ctx context.Context, ids []primitive.ObjectID) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout unless we are already
// inside a transaction; a SessionContext cannot be wrapped without
// breaking transaction semantics.
func (r *mongoSlotRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithTimeout(ctx, time.Until(deadline))
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoSlotRepository) Insert(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	slot.CreatedAt = now
	slot.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, slot)
	if err != nil {
		return fmt.Errorf("failed to insert slot: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		slot.ID = oid.Hex()
	}
	return nil
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}

	var slot model.Slot
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, slotserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}

	return &slot, nil
}

func (r *mongoSlotRepository) availableFilter(infrastructureID string, date string) bson.M {
	filter := bson.M{
		"infrastructure_id": infrastructureID,
		"kind":              model.KindTimeslot,
		"status":            model.StatusAvailable,
	}
	if date != "" {
		filter["booking_date"] = date
	}
	return filter
}

func (r *mongoSlotRepository) FindAvailable(ctx context.Context, infrastructureID string, date string, limit int, offset int64) ([]*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_at", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, r.availableFilter(infrastructureID, date), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find available slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.Slot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}

	return slots, nil
}

func (r *mongoSlotRepository) CountAvailable(ctx context.Context, infrastructureID string, date string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, r.availableFilter(infrastructureID, date))
	if err != nil {
		return 0, fmt.Errorf("failed to count available slots: %w", err)
	}
	return count, nil
}

func (r *mongoSlotRepository) FindBookingsByEmail(ctx context.Context, userEmail string, limit int, offset int64) ([]*model.Slot, error) {
	return r.findBookings(ctx, bson.M{"kind": model.KindBooking, "user_email": userEmail}, limit, offset)
}

func (r *mongoSlotRepository) CountBookingsByEmail(ctx context.Context, userEmail string) (int64, error) {
	return r.countBookings(ctx, bson.M{"kind": model.KindBooking, "user_email": userEmail})
}

func (r *mongoSlotRepository) FindBookings(ctx context.Context, limit int, offset int64) ([]*model.Slot, error) {
	return r.findBookings(ctx, bson.M{"kind": model.KindBooking}, limit, offset)
}

func (r *mongoSlotRepository) CountBookings(ctx context.Context) (int64, error) {
	return r.countBookings(ctx, bson.M{"kind": model.KindBooking})
}

func (r *mongoSlotRepository) findBookings(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_at", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.Slot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return slots, nil
}

func (r *mongoSlotRepository) countBookings(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// CountOverlapping counts active rows on the same infrastructure and
// date whose half-open window intersects [start, end). Terminal rows
// never block a window. Callers run this on the session context of the
// transaction that performs the subsequent write.
func (r *mongoSlotRepository) CountOverlapping(ctx context.Context, infrastructureID string, date string, start, end time.Time, excludeID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"infrastructure_id": infrastructureID,
		"booking_date":      date,
		"status":            bson.M{"$in": model.ActiveStatuses},
		"start_at":          bson.M{"$lt": end},
		"end_at":            bson.M{"$gt": start},
	}

	if excludeID != "" {
		objectID, err := primitive.ObjectIDFromHex(excludeID)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, excludeID)
		}
		filter["_id"] = bson.M{"$ne": objectID}
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count overlapping slots: %w", err)
	}
	return count, nil
}

// ClaimAvailable atomically converts an available timeslot into a
// pending booking. The status predicate is part of the update filter,
// so two concurrent claimants can never both succeed; the loser sees
// ErrStatusConflict (or ErrNotFound if the row does not exist at all).
func (r *mongoSlotRepository) ClaimAvailable(ctx context.Context, id string, userEmail string, purpose string) (*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":    objectID,
		"kind":   model.KindTimeslot,
		"status": model.StatusAvailable,
	}
	update := bson.M{
		"$set": bson.M{
			"kind":       model.KindBooking,
			"status":     model.StatusPending,
			"user_email": userEmail,
			"purpose":    purpose,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var slot model.Slot
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.resolveConditionalMiss(ctx, objectID)
		}
		return nil, fmt.Errorf("failed to claim slot: %w", err)
	}

	return &slot, nil
}

// TransitionStatus performs a guarded status move: the update matches
// only while the row is in one of fromStatuses, which is what keeps
// the lifecycle monotonic under concurrent writers.
func (r *mongoSlotRepository) TransitionStatus(ctx context.Context, id string, fromStatuses []string, toStatus string) (*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":    objectID,
		"status": bson.M{"$in": fromStatuses},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     toStatus,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var slot model.Slot
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.resolveConditionalMiss(ctx, objectID)
		}
		return nil, fmt.Errorf("failed to transition slot status: %w", err)
	}

	return &slot, nil
}

// resolveConditionalMiss distinguishes "row absent" from "row present
// but in the wrong status" after a conditional update matched nothing.
func (r *mongoSlotRepository) resolveConditionalMiss(ctx context.Context, objectID primitive.ObjectID) error {
	err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return slotserrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to inspect slot after conditional miss: %w", err)
	}
	return slotserrors.ErrStatusConflict
}

func (r *mongoSlotRepository) FindExpiredIDs(ctx context.Context, now time.Time, limit int) ([]primitive.ObjectID, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"end_at": bson.M{"$lt": now},
		"status": bson.M{"$in": model.ActiveStatuses},
	}
	opts := options.Find().
		SetLimit(int64(limit)).
		SetProjection(bson.M{"_id": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired slots: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode expired slot ids: %w", err)
	}

	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// MarkCompleted retires the given rows. The status predicate is
// repeated here so a row that was approved, rejected or canceled
// between the scan and this write is handled by its later transition,
// not clobbered.
func (r *mongoSlotRepository) MarkCompleted(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id":    bson.M{"$in": ids},
		"status": bson.M{"$in": model.ActiveStatuses},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     model.StatusCompleted,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to mark slots completed: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *mongoSlotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
