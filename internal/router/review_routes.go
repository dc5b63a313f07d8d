package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/spot-rental/internal/handler"
	"github.com/iliyamo/spot-rental/internal/middleware"
)

// RegisterReviews registers /api/reviews.  Every route requires a session;
// authorship is checked in the handler after the review was found.
func RegisterReviews(api *echo.Group, r *handler.ReviewHandler) {
	g := api.Group("/reviews", middleware.RequireAuth())
	g.GET("/current", r.ListCurrent)
	g.PUT("/:reviewId", r.Update)
	g.DELETE("/:reviewId", r.Delete)
	g.POST("/:reviewId/images", r.AddImage)
}

// RegisterImages registers the image delete endpoints.
func RegisterImages(api *echo.Group, h *handler.ImageHandler) {
	auth := middleware.RequireAuth()
	api.DELETE("/spot-images/:imageId", h.DeleteSpotImage, auth)
	api.DELETE("/review-images/:imageId", h.DeleteReviewImage, auth)
}
