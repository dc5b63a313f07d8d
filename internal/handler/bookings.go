package handler

import (
    "context"
    "log/slog"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/spot-rental/internal/access"
    "github.com/iliyamo/spot-rental/internal/logger"
    "github.com/iliyamo/spot-rental/internal/model"
    "github.com/iliyamo/spot-rental/internal/queue"
    "github.com/iliyamo/spot-rental/internal/repository"
    "github.com/iliyamo/spot-rental/internal/validation"
)

// BookingHandler serves bookings.  Booking writes publish an event; a
// broker failure is logged and never fails the request.
type BookingHandler struct {
    Bookings BookingStore
    Spots    SpotStore
    Events   EventPublisher // may be nil
    Log      *slog.Logger
    shape    shaper
    now      func() time.Time
}

// NewBookingHandler wires a BookingHandler.
func NewBookingHandler(bookings BookingStore, spots SpotStore, events EventPublisher, legacy bool, log *slog.Logger) *BookingHandler {
    if bookings == nil || spots == nil {
        panic("nil repository passed to NewBookingHandler")
    }
    return &BookingHandler{Bookings: bookings, Spots: spots, Events: events, Log: log, shape: shaper{legacy: legacy}, now: time.Now}
}

type bookingReq struct {
    StartDate string `json:"startDate" validate:"required,datetime=2006-01-02" msg:"startDate must be a date in YYYY-MM-DD format"`
    EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02" msg:"endDate must be a date in YYYY-MM-DD format"`
}

// dates parses the validated request and checks the range.
func (r bookingReq) dates() (time.Time, time.Time, error) {
    start, err := time.ParseInLocation(model.DateLayout, r.StartDate, time.UTC)
    if err != nil {
        return time.Time{}, time.Time{}, validation.FieldErrors{"startDate": "startDate must be a date in YYYY-MM-DD format"}
    }
    end, err := time.ParseInLocation(model.DateLayout, r.EndDate, time.UTC)
    if err != nil {
        return time.Time{}, time.Time{}, validation.FieldErrors{"endDate": "endDate must be a date in YYYY-MM-DD format"}
    }
    if !end.After(start) {
        return time.Time{}, time.Time{}, validation.FieldErrors{"endDate": "endDate cannot be on or before startDate"}
    }
    return start, end, nil
}

// today is the current UTC date at midnight.
func (h *BookingHandler) today() time.Time {
    y, m, d := h.now().UTC().Date()
    return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// publish sends an event for b.  Errors are logged only.
func (h *BookingHandler) publish(ctx context.Context, kind string, b model.Booking) {
    if h.Events == nil {
        return
    }
    ev := queue.NewBookingEvent(kind, b, h.now())
    if err := h.Events.PublishBooking(ctx, ev); err != nil {
        logger.WithContext(ctx, h.Log).Warn("booking event not published",
            "type", kind, "booking_id", b.ID, "error", err)
    }
}

// ListCurrent handles GET /api/bookings/current.
func (h *BookingHandler) ListCurrent(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "Authentication required")
    }
    ctx, cancel := requestCtx(c)
    defer cancel()
    bookings, err := h.Bookings.ListByUser(ctx, uid)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, map[string]any{"Bookings": h.shape.userBookings(bookings)})
}

// ListBySpot handles GET /api/spots/:spotId/bookings.  The spot owner sees
// who booked; everyone else only sees the occupied dates.
func (h *BookingHandler) ListBySpot(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "Authentication required")
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    id, ok := pathID(c, "spotId")
    if !ok {
        return respondError(c, h.Log, repository.ErrSpotNotFound)
    }
    spot, err := h.Spots.GetByID(ctx, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    bookings, err := h.Bookings.ListBySpot(ctx, spot.ID)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    asOwner := access.Authorize(uid, spot) == nil
    return c.JSON(http.StatusOK, map[string]any{"Bookings": spotBookings(bookings, asOwner)})
}

// Create handles POST /api/spots/:spotId/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "Authentication required")
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    id, ok := pathID(c, "spotId")
    if !ok {
        return respondError(c, h.Log, repository.ErrSpotNotFound)
    }
    spot, err := h.Spots.GetByID(ctx, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    if access.Authorize(uid, spot) == nil {
        return fail(c, http.StatusForbidden, msgForbidden)
    }

    var req bookingReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }
    start, end, err := req.dates()
    if err != nil {
        return respondError(c, h.Log, err)
    }
    if start.Before(h.today()) {
        return failValidation(c, validation.FieldErrors{"startDate": "startDate cannot be in the past"})
    }

    b := model.Booking{SpotID: spot.ID, UserID: uid, StartDate: start, EndDate: end}
    if err := h.Bookings.Create(ctx, &b); err != nil {
        return respondError(c, h.Log, err)
    }
    h.publish(ctx, queue.BookingCreated, b)
    return c.JSON(http.StatusCreated, toBookingDTO(b))
}

// Update handles PUT /api/bookings/:bookingId.  Only the booker may move a
// booking, and only while it has not ended.
func (h *BookingHandler) Update(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "Authentication required")
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    id, ok := pathID(c, "bookingId")
    if !ok {
        return respondError(c, h.Log, repository.ErrBookingNotFound)
    }
    b, err := access.Load(uid, func() (*model.Booking, error) {
        b, _, err := h.Bookings.GetByID(ctx, id)
        return b, err
    })
    if err != nil {
        return respondError(c, h.Log, err)
    }

    if b.EndDate.Before(h.today()) {
        return fail(c, http.StatusForbidden, "Past bookings can't be modified")
    }

    var req bookingReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }
    start, end, err := req.dates()
    if err != nil {
        return respondError(c, h.Log, err)
    }
    if start.Before(h.today()) {
        return failValidation(c, validation.FieldErrors{"startDate": "startDate cannot be in the past"})
    }

    b.StartDate, b.EndDate = start, end
    if err := h.Bookings.Update(ctx, b); err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, toBookingDTO(*b))
}

// Delete handles DELETE /api/bookings/:bookingId.  The booker or the owner
// of the booked spot may cancel a booking that has not started.
func (h *BookingHandler) Delete(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "Authentication required")
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    id, ok := pathID(c, "bookingId")
    if !ok {
        return respondError(c, h.Log, repository.ErrBookingNotFound)
    }
    b, spotOwner, err := h.Bookings.GetByID(ctx, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    if err := access.AuthorizeAny(uid, b, access.OwnerID(spotOwner)); err != nil {
        return respondError(c, h.Log, err)
    }
    if !b.StartDate.After(h.today()) {
        return fail(c, http.StatusForbidden, "Bookings that have been started can't be deleted")
    }
    if err := h.Bookings.Delete(ctx, b.ID); err != nil {
        return respondError(c, h.Log, err)
    }
    h.publish(ctx, queue.BookingCancelled, *b)
    return deleted(c)
}
