package handler

import (
    "context"
    "log/slog"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/spot-rental/internal/access"
    "github.com/iliyamo/spot-rental/internal/model"
    "github.com/iliyamo/spot-rental/internal/repository"
)

// ReviewHandler serves reviews and review images.
type ReviewHandler struct {
    Reviews ReviewStore
    Spots   SpotStore
    Images  ImageStore
    Cache   CacheInvalidator // may be nil
    Log     *slog.Logger
    shape   shaper
}

// NewReviewHandler wires a ReviewHandler.
func NewReviewHandler(reviews ReviewStore, spots SpotStore, images ImageStore, cache CacheInvalidator, legacy bool, log *slog.Logger) *ReviewHandler {
    if reviews == nil || spots == nil || images == nil {
        panic("nil repository passed to NewReviewHandler")
    }
    return &ReviewHandler{Reviews: reviews, Spots: spots, Images: images, Cache: cache, Log: log, shape: shaper{legacy: legacy}}
}

type reviewReq struct {
    Review string `json:"review" validate:"required" msg:"Review text is required"`
    Stars  *int   `json:"stars" validate:"required,min=1,max=5" msg:"Stars must be an integer from 1 to 5"`
}

type reviewImageReq struct {
    URL string `json:"url" validate:"required,max=2048" msg:"URL is required"`
}

// loadOwnedReview runs the existence check then the authorship check.
func (h *ReviewHandler) loadOwnedReview(ctx context.Context, c echo.Context, uid uint64) (*model.Review, error) {
    id, ok := pathID(c, "reviewId")
    if !ok {
        return nil, repository.ErrReviewNotFound
    }
    return access.Load(uid, func() (*model.Review, error) { return h.Reviews.GetByID(ctx, id) })
}

// spotExists resolves :spotId or returns ErrSpotNotFound.
func (h *ReviewHandler) spotExists(ctx context.Context, c echo.Context) (*model.Spot, error) {
    id, ok := pathID(c, "spotId")
    if !ok {
        return nil, repository.ErrSpotNotFound
    }
    return h.Spots.GetByID(ctx, id)
}

// ListBySpot handles GET /api/spots/:spotId/reviews.
func (h *ReviewHandler) ListBySpot(c echo.Context) error {
    ctx, cancel := requestCtx(c)
    defer cancel()
    spot, err := h.spotExists(ctx, c)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    reviews, err := h.Reviews.ListBySpot(ctx, spot.ID)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, map[string]any{"Reviews": h.shape.reviews(reviews)})
}

// ListCurrent handles GET /api/reviews/current.
func (h *ReviewHandler) ListCurrent(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "Authentication required")
    }
    ctx, cancel := requestCtx(c)
    defer cancel()
    reviews, err := h.Reviews.ListByUser(ctx, uid)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, map[string]any{"Reviews": h.shape.reviews(reviews)})
}

// Create handles POST /api/spots/:spotId/reviews.  A user reviews a spot
// at most once.
func (h *ReviewHandler) Create(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "Authentication required")
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    spot, err := h.spotExists(ctx, c)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    var req reviewReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }
    rv := model.Review{SpotID: spot.ID, UserID: uid, Review: strings.TrimSpace(req.Review), Stars: *req.Stars}
    if err := h.Reviews.Create(ctx, &rv); err != nil {
        return respondError(c, h.Log, err)
    }
    invalidateListings(ctx, h.Cache, h.Log)
    return c.JSON(http.StatusCreated, toReviewDTO(rv))
}

// Update handles PUT /api/reviews/:reviewId.
func (h *ReviewHandler) Update(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "Authentication required")
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    rv, err := h.loadOwnedReview(ctx, c, uid)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    var req reviewReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }
    rv.Review = strings.TrimSpace(req.Review)
    rv.Stars = *req.Stars
    if err := h.Reviews.Update(ctx, rv); err != nil {
        return respondError(c, h.Log, err)
    }
    invalidateListings(ctx, h.Cache, h.Log)
    return c.JSON(http.StatusOK, toReviewDTO(*rv))
}

// Delete handles DELETE /api/reviews/:reviewId.
func (h *ReviewHandler) Delete(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "Authentication required")
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    rv, err := h.loadOwnedReview(ctx, c, uid)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    if err := h.Reviews.Delete(ctx, rv.ID); err != nil {
        return respondError(c, h.Log, err)
    }
    invalidateListings(ctx, h.Cache, h.Log)
    return deleted(c)
}

// AddImage handles POST /api/reviews/:reviewId/images.  The cap of
// model.MaxImagesPerResource is enforced by the image store inside a
// transaction holding the review row lock.
func (h *ReviewHandler) AddImage(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "Authentication required")
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    rv, err := h.loadOwnedReview(ctx, c, uid)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    var req reviewImageReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }
    img, err := h.Images.AddReviewImage(ctx, rv.ID, strings.TrimSpace(req.URL))
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, reviewImageDTO{ID: img.ID, URL: img.URL})
}
