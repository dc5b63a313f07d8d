package model

import "time"

// MaxImagesPerResource caps the images attached to a spot or a review.
const MaxImagesPerResource = 10

// SpotImage is an image URL attached to a spot.  At most one image per spot
// carries the preview flag.
type SpotImage struct {
    ID        uint64
    SpotID    uint64
    URL       string
    Preview   bool
    CreatedAt time.Time
    UpdatedAt time.Time
}

// ReviewImage is an image URL attached to a review.
type ReviewImage struct {
    ID        uint64
    ReviewID  uint64
    URL       string
    CreatedAt time.Time
    UpdatedAt time.Time
}
