package model

import "time"

// Spot is a rentable listing owned by a single user.  Only the owner may
// mutate the spot or attach images to it.
type Spot struct {
    ID          uint64    // spots.id
    OwnerID     uint64    // spots.owner_id
    Address     string    // spots.address
    City        string    // spots.city
    State       string    // spots.state
    Country     string    // spots.country
    Lat         float64   // spots.lat, within [-90, 90]
    Lng         float64   // spots.lng, within [-180, 180]
    Name        string    // spots.name, at most 50 characters
    Description string    // spots.description
    Price       float64   // spots.price per night
    CreatedAt   time.Time // spots.created_at
    UpdatedAt   time.Time // spots.updated_at
}

// OwnedBy returns the owning user id.
func (s *Spot) OwnedBy() uint64 { return s.OwnerID }

// SpotSummary is a spot enriched with the aggregates shown in listings.
// AvgRating is 0 when the spot has no reviews.  PreviewImage is nil when no
// image carries the preview flag.
type SpotSummary struct {
    Spot
    AvgRating    float64
    PreviewImage *string
}

// SpotDetail backs the single spot endpoint.  AvgStarRating is nil when
// there are no reviews.
type SpotDetail struct {
    Spot
    NumReviews    int
    AvgStarRating *float64
    Images        []SpotImage
    Owner         User
}
