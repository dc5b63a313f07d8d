package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/spot-rental/internal/handler"
	"github.com/iliyamo/spot-rental/internal/middleware"
)

// RegisterSpots registers /api/spots and the review and booking routes
// nested under a spot.  Only the public listing is served through the
// response cache.
func RegisterSpots(api *echo.Group, s *handler.SpotHandler, r *handler.ReviewHandler, b *handler.BookingHandler, listingCache echo.MiddlewareFunc) {
	auth := middleware.RequireAuth()

	if listingCache != nil {
		api.GET("/spots", s.List, listingCache)
	} else {
		api.GET("/spots", s.List)
	}
	api.GET("/spots/current", s.ListCurrent, auth)
	api.GET("/spots/:spotId", s.Get)
	api.POST("/spots", s.Create, auth)
	api.PUT("/spots/:spotId", s.Update, auth)
	api.DELETE("/spots/:spotId", s.Delete, auth)
	api.POST("/spots/:spotId/images", s.AddImage, auth)

	api.GET("/spots/:spotId/reviews", r.ListBySpot)
	api.POST("/spots/:spotId/reviews", r.Create, auth)

	api.GET("/spots/:spotId/bookings", b.ListBySpot, auth)
	api.POST("/spots/:spotId/bookings", b.Create, auth)
}
