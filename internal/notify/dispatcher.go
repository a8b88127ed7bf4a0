package notify

import (
	"context"
	"time"

	"labbook/pkg/kafka"
	"labbook/pkg/logger"
	"labbook/pkg/model"
)

// Event types published on the notification topic.
const (
	EventSlotCreated      = "slot.created"
	EventBookingRequested = "booking.requested"
	EventBookingApproved  = "booking.approved"
	EventBookingRejected  = "booking.rejected"
	EventBookingCanceled  = "booking.canceled"
)

const publishTimeout = 5 * time.Second

// Event is the payload delivery consumers receive. ReplacementSlotID
// is set only on rejection, pointing at the regenerated timeslot.
type Event struct {
	Type              string      `json:"type"`
	Slot              *model.Slot `json:"slot"`
	ReplacementSlotID string      `json:"replacement_slot_id,omitempty"`
	ActorEmail        string      `json:"actor_email,omitempty"`
	OccurredAt        time.Time   `json:"occurred_at"`
}

// Dispatcher delivers lifecycle events after the owning transaction
// has committed. Delivery is best effort: implementations log failures
// and never return them, so a notification outage cannot fail or roll
// back a booking operation.
type Dispatcher interface {
	SlotCreated(ctx context.Context, slot *model.Slot)
	BookingRequested(ctx context.Context, slot *model.Slot)
	BookingApproved(ctx context.Context, slot *model.Slot, actor model.Actor)
	BookingRejected(ctx context.Context, slot *model.Slot, replacementSlotID string, actor model.Actor)
	BookingCanceled(ctx context.Context, slot *model.Slot, actor model.Actor)
}

type kafkaDispatcher struct {
	producer *kafka.Producer
	source   string
	log      *logger.Logger
}

func NewKafkaDispatcher(producer *kafka.Producer, source string, log *logger.Logger) Dispatcher {
	return &kafkaDispatcher{
		producer: producer,
		source:   source,
		log:      log,
	}
}

func (d *kafkaDispatcher) SlotCreated(ctx context.Context, slot *model.Slot) {
	d.publish(ctx, Event{Type: EventSlotCreated, Slot: slot})
}

func (d *kafkaDispatcher) BookingRequested(ctx context.Context, slot *model.Slot) {
	d.publish(ctx, Event{Type: EventBookingRequested, Slot: slot, ActorEmail: slot.UserEmail})
}

func (d *kafkaDispatcher) BookingApproved(ctx context.Context, slot *model.Slot, actor model.Actor) {
	d.publish(ctx, Event{Type: EventBookingApproved, Slot: slot, ActorEmail: actor.Email})
}

func (d *kafkaDispatcher) BookingRejected(ctx context.Context, slot *model.Slot, replacementSlotID string, actor model.Actor) {
	d.publish(ctx, Event{
		Type:              EventBookingRejected,
		Slot:              slot,
		ReplacementSlotID: replacementSlotID,
		ActorEmail:        actor.Email,
	})
}

func (d *kafkaDispatcher) BookingCanceled(ctx context.Context, slot *model.Slot, actor model.Actor) {
	d.publish(ctx, Event{Type: EventBookingCanceled, Slot: slot, ActorEmail: actor.Email})
}

func (d *kafkaDispatcher) publish(ctx context.Context, event Event) {
	event.OccurredAt = time.Now().UTC()

	// Detach from the request context: the mutation already committed,
	// so a caller disconnect must not abort delivery.
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	msg := kafka.NewMessage().
		WithKey(event.Slot.ID).
		WithValue(event).
		WithEventType(event.Type).
		WithSource(d.source).
		Build()

	if err := d.producer.Publish(publishCtx, msg); err != nil {
		d.log.Error("Failed to publish notification event",
			"event_type", event.Type,
			"slot_id", event.Slot.ID,
			"error", err,
		)
	}
}

type nopDispatcher struct{}

// NewNopDispatcher is used when no broker is configured; events are
// dropped silently.
func NewNopDispatcher() Dispatcher {
	return nopDispatcher{}
}

func (nopDispatcher) SlotCreated(context.Context, *model.Slot) {}

func (nopDispatcher) BookingRequested(context.Context, *model.Slot) {}

func (nopDispatcher) BookingApproved(context.Context, *model.Slot, model.Actor) {}

func (nopDispatcher) BookingRejected(context.Context, *model.Slot, string, model.Actor) {}

func (nopDispatcher) BookingCanceled(context.Context, *model.Slot, model.Actor) {}
