package model

import "time"

// DateLayout is the wire and storage format of booking dates.
const DateLayout = "2006-01-02"

// Booking reserves a spot for a user over [StartDate, EndDate).  Dates are
// whole days in UTC.
type Booking struct {
    ID        uint64    // bookings.id
    SpotID    uint64    // bookings.spot_id
    UserID    uint64    // bookings.user_id (booker)
    StartDate time.Time // bookings.start_date
    EndDate   time.Time // bookings.end_date
    CreatedAt time.Time // bookings.created_at
    UpdatedAt time.Time // bookings.updated_at
}

// OwnedBy returns the booking user id.
func (b *Booking) OwnedBy() uint64 { return b.UserID }

// Overlaps reports whether b and the range [start, end) share at least one night.
func (b *Booking) Overlaps(start, end time.Time) bool {
    return start.Before(b.EndDate) && b.StartDate.Before(end)
}

// BookingDetail joins a booking with the spot it reserves and the booker.
type BookingDetail struct {
    Booking
    Spot         Spot
    PreviewImage *string
    User         User
}
