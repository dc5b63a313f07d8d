package handler

import (
    "context"

    "github.com/iliyamo/spot-rental/internal/model"
    "github.com/iliyamo/spot-rental/internal/queue"
)

// The store interfaces below are satisfied by the repository types; tests
// substitute in-memory versions.

// UserStore is the credential store.
type UserStore interface {
    Create(ctx context.Context, u model.User, password string, cost int) (model.User, error)
    GetByCredential(ctx context.Context, credential string) (model.User, error)
    GetByID(ctx context.Context, id uint64) (model.User, error)
}

// SpotStore persists spots and builds the listing views.
type SpotStore interface {
    Create(ctx context.Context, s *model.Spot) error
    GetByID(ctx context.Context, id uint64) (*model.Spot, error)
    Update(ctx context.Context, s *model.Spot) error
    Delete(ctx context.Context, id uint64) error
    ListSummaries(ctx context.Context) ([]model.SpotSummary, error)
    ListSummariesByOwner(ctx context.Context, ownerID uint64) ([]model.SpotSummary, error)
    GetDetail(ctx context.Context, id uint64) (*model.SpotDetail, error)
}

// ReviewStore persists reviews.
type ReviewStore interface {
    Create(ctx context.Context, r *model.Review) error
    GetByID(ctx context.Context, id uint64) (*model.Review, error)
    Update(ctx context.Context, r *model.Review) error
    Delete(ctx context.Context, id uint64) error
    ListBySpot(ctx context.Context, spotID uint64) ([]model.ReviewDetail, error)
    ListByUser(ctx context.Context, userID uint64) ([]model.ReviewDetail, error)
}

// ImageStore persists spot and review images and enforces the image cap.
// The Get methods also return the owning user id of the parent.
type ImageStore interface {
    AddSpotImage(ctx context.Context, spotID uint64, url string, preview bool) (*model.SpotImage, error)
    AddReviewImage(ctx context.Context, reviewID uint64, url string) (*model.ReviewImage, error)
    GetSpotImage(ctx context.Context, id uint64) (*model.SpotImage, uint64, error)
    GetReviewImage(ctx context.Context, id uint64) (*model.ReviewImage, uint64, error)
    DeleteSpotImage(ctx context.Context, id uint64) error
    DeleteReviewImage(ctx context.Context, id uint64) error
}

// BookingStore persists bookings.  GetByID also returns the owner of the
// booked spot.
type BookingStore interface {
    Create(ctx context.Context, b *model.Booking) error
    Update(ctx context.Context, b *model.Booking) error
    GetByID(ctx context.Context, id uint64) (*model.Booking, uint64, error)
    Delete(ctx context.Context, id uint64) error
    ListByUser(ctx context.Context, userID uint64) ([]model.BookingDetail, error)
    ListBySpot(ctx context.Context, spotID uint64) ([]model.BookingDetail, error)
}

// EventPublisher sends booking events to the broker.
type EventPublisher interface {
    PublishBooking(ctx context.Context, ev queue.BookingEvent) error
}

// CacheInvalidator drops cached listing responses after a write.
type CacheInvalidator interface {
    Invalidate(ctx context.Context) error
}
