package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"residence-billing-backend/internal/model"
)

// EventPaymentStatusChanged is emitted once per effective charge transition.
const EventPaymentStatusChanged = "payment.status_changed"

// Event is what the engine hands to the notification collaborator. ID lets
// consumers drop duplicates caused by retried deliveries.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	OccupantID int64     `json:"occupant_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// NewEvent stamps a new event with a fresh ID.
func NewEvent(name string, occupantID int64, payload any, at time.Time) Event {
	return Event{ID: uuid.New(), Name: name, OccupantID: occupantID, OccurredAt: at, Payload: payload}
}

// PaymentStatusChanged is the payload of EventPaymentStatusChanged.
type PaymentStatusChanged struct {
	ChargeID    int64               `json:"charge_id"`
	PaymentType string              `json:"payment_type"`
	From        model.PaymentStatus `json:"from"`
	To          model.PaymentStatus `json:"to"`
	ActorID     *int64              `json:"actor_id,omitempty"`
}

// Dispatcher accepts events for delivery. Dispatch never blocks.
type Dispatcher interface {
	Dispatch(ev Event)
}

// Sink delivers an event to one destination. Returning an error asks the
// worker pool to try again later.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}
