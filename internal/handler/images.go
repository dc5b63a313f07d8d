package handler

import (
    "log/slog"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/spot-rental/internal/access"
    "github.com/iliyamo/spot-rental/internal/repository"
)

// ImageHandler deletes spot and review images.  Images are authorized
// through their parent: the spot owner or the review author.
type ImageHandler struct {
    Images ImageStore
    Cache  CacheInvalidator // may be nil
    Log    *slog.Logger
}

// NewImageHandler wires an ImageHandler.
func NewImageHandler(images ImageStore, cache CacheInvalidator, log *slog.Logger) *ImageHandler {
    if images == nil {
        panic("nil repository passed to NewImageHandler")
    }
    return &ImageHandler{Images: images, Cache: cache, Log: log}
}

// DeleteSpotImage handles DELETE /api/spot-images/:imageId.
func (h *ImageHandler) DeleteSpotImage(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "Authentication required")
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    id, ok := pathID(c, "imageId")
    if !ok {
        return respondError(c, h.Log, repository.ErrSpotImageNotFound)
    }
    img, owner, err := h.Images.GetSpotImage(ctx, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    if err := access.Authorize(uid, access.OwnerID(owner)); err != nil {
        return respondError(c, h.Log, err)
    }
    if err := h.Images.DeleteSpotImage(ctx, img.ID); err != nil {
        return respondError(c, h.Log, err)
    }
    invalidateListings(ctx, h.Cache, h.Log)
    return deleted(c)
}

// DeleteReviewImage handles DELETE /api/review-images/:imageId.
func (h *ImageHandler) DeleteReviewImage(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "Authentication required")
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    id, ok := pathID(c, "imageId")
    if !ok {
        return respondError(c, h.Log, repository.ErrReviewImageNotFound)
    }
    img, author, err := h.Images.GetReviewImage(ctx, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    if err := access.Authorize(uid, access.OwnerID(author)); err != nil {
        return respondError(c, h.Log, err)
    }
    if err := h.Images.DeleteReviewImage(ctx, img.ID); err != nil {
        return respondError(c, h.Log, err)
    }
    return deleted(c)
}
