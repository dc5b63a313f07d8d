package model

import "time"

// Review is feedback left by one user on one spot.  Only the author may
// edit or delete it.
type Review struct {
    ID        uint64    // reviews.id
    SpotID    uint64    // reviews.spot_id
    UserID    uint64    // reviews.user_id (author)
    Review    string    // reviews.review
    Stars     int       // reviews.stars, 1..5
    CreatedAt time.Time // reviews.created_at
    UpdatedAt time.Time // reviews.updated_at
}

// OwnedBy returns the authoring user id.
func (r *Review) OwnedBy() uint64 { return r.UserID }

// ReviewDetail is a review together with its author, images and, for the
// current-user listing, the reviewed spot.
type ReviewDetail struct {
    Review
    Author       User
    Images       []ReviewImage
    Spot         *Spot
    PreviewImage *string
}
