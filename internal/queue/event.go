// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

import (
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/spot-rental/internal/model"
)

// Queue names, one per event type.  The routing key equals the queue name.
const (
    BookingCreated   = "booking.created"
    BookingCancelled = "booking.cancelled"
)

// BookingEvent is published when a booking is created or cancelled.  It
// carries enough for downstream consumers to log or notify without
// querying the primary database.
type BookingEvent struct {
    EventID    string `json:"event_id"`
    Type       string `json:"type"`
    BookingID  uint64 `json:"booking_id"`
    SpotID     uint64 `json:"spot_id"`
    UserID     uint64 `json:"user_id"`
    StartDate  string `json:"start_date"`
    EndDate    string `json:"end_date"`
    OccurredAt string `json:"occurred_at"`
}

// NewBookingEvent builds an event of the given type for b.
func NewBookingEvent(kind string, b model.Booking, at time.Time) BookingEvent {
    return BookingEvent{
        EventID:    uuid.NewString(),
        Type:       kind,
        BookingID:  b.ID,
        SpotID:     b.SpotID,
        UserID:     b.UserID,
        StartDate:  b.StartDate.Format(model.DateLayout),
        EndDate:    b.EndDate.Format(model.DateLayout),
        OccurredAt: at.UTC().Format(time.RFC3339),
    }
}
