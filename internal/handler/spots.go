package handler

import (
    "context"
    "log/slog"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/spot-rental/internal/access"
    "github.com/iliyamo/spot-rental/internal/logger"
    "github.com/iliyamo/spot-rental/internal/model"
    "github.com/iliyamo/spot-rental/internal/repository"
)

// SpotHandler serves spot listings, spot CRUD and spot images.
type SpotHandler struct {
    Spots  SpotStore
    Images ImageStore
    Cache  CacheInvalidator // may be nil
    Log    *slog.Logger
    shape  shaper
}

// NewSpotHandler wires a SpotHandler.  legacy switches the missing-preview
// marker from null to the old string form.
func NewSpotHandler(spots SpotStore, images ImageStore, cache CacheInvalidator, legacy bool, log *slog.Logger) *SpotHandler {
    if spots == nil || images == nil {
        panic("nil repository passed to NewSpotHandler")
    }
    return &SpotHandler{Spots: spots, Images: images, Cache: cache, Log: log, shape: shaper{legacy: legacy}}
}

type spotReq struct {
    Address     string   `json:"address" validate:"required" msg:"Street address is required"`
    City        string   `json:"city" validate:"required" msg:"City is required"`
    State       string   `json:"state" validate:"required" msg:"State is required"`
    Country     string   `json:"country" validate:"required" msg:"Country is required"`
    Lat         *float64 `json:"lat" validate:"required,min=-90,max=90" msg:"Latitude is not valid"`
    Lng         *float64 `json:"lng" validate:"required,min=-180,max=180" msg:"Longitude is not valid"`
    Name        string   `json:"name" validate:"required,max=50" msg:"Name must be less than 50 characters"`
    Description string   `json:"description" validate:"required" msg:"Description is required"`
    Price       *float64 `json:"price" validate:"required,gt=0" msg:"Price per day is required"`
}

// apply copies the request onto s.
func (r spotReq) apply(s *model.Spot) {
    s.Address = strings.TrimSpace(r.Address)
    s.City = strings.TrimSpace(r.City)
    s.State = strings.TrimSpace(r.State)
    s.Country = strings.TrimSpace(r.Country)
    s.Lat = *r.Lat
    s.Lng = *r.Lng
    s.Name = strings.TrimSpace(r.Name)
    s.Description = strings.TrimSpace(r.Description)
    s.Price = *r.Price
}

type spotImageReq struct {
    URL     string `json:"url" validate:"required,max=2048" msg:"URL is required"`
    Preview bool   `json:"preview"`
}

// invalidateListings drops cached spot listings after a write that changes
// them.  Failures only cost freshness and are logged.
func invalidateListings(ctx context.Context, cache CacheInvalidator, log *slog.Logger) {
    if cache == nil {
        return
    }
    if err := cache.Invalidate(ctx); err != nil {
        logger.WithContext(ctx, log).Warn("listing cache invalidation failed", "error", err)
    }
}

// loadOwnedSpot runs the existence check then the ownership check.
func (h *SpotHandler) loadOwnedSpot(ctx context.Context, c echo.Context, uid uint64) (*model.Spot, error) {
    id, ok := pathID(c, "spotId")
    if !ok {
        return nil, repository.ErrSpotNotFound
    }
    return access.Load(uid, func() (*model.Spot, error) { return h.Spots.GetByID(ctx, id) })
}

// List handles GET /api/spots.
func (h *SpotHandler) List(c echo.Context) error {
    ctx, cancel := requestCtx(c)
    defer cancel()
    spots, err := h.Spots.ListSummaries(ctx)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, map[string]any{"Spots": h.shape.spotSummaries(spots)})
}

// ListCurrent handles GET /api/spots/current.
func (h *SpotHandler) ListCurrent(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "Authentication required")
    }
    ctx, cancel := requestCtx(c)
    defer cancel()
    spots, err := h.Spots.ListSummariesByOwner(ctx, uid)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, map[string]any{"Spots": h.shape.spotSummaries(spots)})
}

// Get handles GET /api/spots/:spotId.
func (h *SpotHandler) Get(c echo.Context) error {
    id, ok := pathID(c, "spotId")
    if !ok {
        return respondError(c, h.Log, repository.ErrSpotNotFound)
    }
    ctx, cancel := requestCtx(c)
    defer cancel()
    d, err := h.Spots.GetDetail(ctx, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, toSpotDetail(*d))
}

// Create handles POST /api/spots.
func (h *SpotHandler) Create(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "Authentication required")
    }
    var req spotReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    spot := model.Spot{OwnerID: uid}
    req.apply(&spot)
    if err := h.Spots.Create(ctx, &spot); err != nil {
        return respondError(c, h.Log, err)
    }
    invalidateListings(ctx, h.Cache, h.Log)
    return c.JSON(http.StatusCreated, toSpotDTO(spot))
}

// Update handles PUT /api/spots/:spotId.
func (h *SpotHandler) Update(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "Authentication required")
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    spot, err := h.loadOwnedSpot(ctx, c, uid)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    var req spotReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }
    req.apply(spot)
    if err := h.Spots.Update(ctx, spot); err != nil {
        return respondError(c, h.Log, err)
    }
    invalidateListings(ctx, h.Cache, h.Log)
    return c.JSON(http.StatusOK, toSpotDTO(*spot))
}

// Delete handles DELETE /api/spots/:spotId.  Reviews, images and bookings
// of the spot are removed with it.
func (h *SpotHandler) Delete(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "Authentication required")
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    spot, err := h.loadOwnedSpot(ctx, c, uid)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    if err := h.Spots.Delete(ctx, spot.ID); err != nil {
        return respondError(c, h.Log, err)
    }
    invalidateListings(ctx, h.Cache, h.Log)
    return deleted(c)
}

// AddImage handles POST /api/spots/:spotId/images.  Setting preview clears
// the flag on the spot's other images.
func (h *SpotHandler) AddImage(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "Authentication required")
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    spot, err := h.loadOwnedSpot(ctx, c, uid)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    var req spotImageReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }
    img, err := h.Images.AddSpotImage(ctx, spot.ID, strings.TrimSpace(req.URL), req.Preview)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    invalidateListings(ctx, h.Cache, h.Log)
    return c.JSON(http.StatusOK, spotImageDTO{ID: img.ID, URL: img.URL, Preview: img.Preview})
}
