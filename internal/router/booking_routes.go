package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/spot-rental/internal/handler"
	"github.com/iliyamo/spot-rental/internal/middleware"
)

// RegisterBookings registers /api/bookings.  Booking creation and the
// per-spot listing live with the spot routes.
func RegisterBookings(api *echo.Group, b *handler.BookingHandler) {
	g := api.Group("/bookings", middleware.RequireAuth())
	g.GET("/current", b.ListCurrent)
	g.PUT("/:bookingId", b.Update)
	g.DELETE("/:bookingId", b.Delete)
}
