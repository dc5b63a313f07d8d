package handler

import (
    "encoding/json"
    "time"

    "github.com/iliyamo/spot-rental/internal/model"
)

// Legacy markers emitted instead of null / [] when wire compatibility with
// older clients is switched on.
const (
    legacySpotPreview    = "null"
    legacyReviewPreview  = "no preview image available"
    legacyBookingPreview = "No preview image available"
    legacyNoReviewImages = "no review images available"
)

// shaper maps internal records to response DTOs.  Records are never
// modified; every response is a fresh value.
type shaper struct {
    legacy bool
}

func (s shaper) preview(url *string, sentinel string) *string {
    if url == nil && s.legacy {
        v := sentinel
        return &v
    }
    return url
}

type spotDTO struct {
    ID          uint64    `json:"id"`
    OwnerID     uint64    `json:"ownerId"`
    Address     string    `json:"address"`
    City        string    `json:"city"`
    State       string    `json:"state"`
    Country     string    `json:"country"`
    Lat         float64   `json:"lat"`
    Lng         float64   `json:"lng"`
    Name        string    `json:"name"`
    Description string    `json:"description"`
    Price       float64   `json:"price"`
    CreatedAt   time.Time `json:"createdAt"`
    UpdatedAt   time.Time `json:"updatedAt"`
}

func toSpotDTO(s model.Spot) spotDTO {
    return spotDTO{
        ID: s.ID, OwnerID: s.OwnerID, Address: s.Address, City: s.City, State: s.State,
        Country: s.Country, Lat: s.Lat, Lng: s.Lng, Name: s.Name, Description: s.Description,
        Price: s.Price, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt,
    }
}

// spotSummaryDTO is one entry of {"Spots": [...]}.  avgRating is always a
// number.
type spotSummaryDTO struct {
    spotDTO
    AvgRating    float64 `json:"avgRating"`
    PreviewImage *string `json:"previewImage"`
}

func (s shaper) spotSummaries(in []model.SpotSummary) []spotSummaryDTO {
    out := make([]spotSummaryDTO, 0, len(in))
    for _, sp := range in {
        out = append(out, spotSummaryDTO{
            spotDTO:      toSpotDTO(sp.Spot),
            AvgRating:    sp.AvgRating,
            PreviewImage: s.preview(sp.PreviewImage, legacySpotPreview),
        })
    }
    return out
}

type spotImageDTO struct {
    ID      uint64 `json:"id"`
    URL     string `json:"url"`
    Preview bool   `json:"preview"`
}

// userRefDTO is the reduced user shown next to spots, reviews and bookings.
type userRefDTO struct {
    ID        uint64 `json:"id"`
    FirstName string `json:"firstName"`
    LastName  string `json:"lastName"`
}

func toUserRef(u model.User) userRefDTO {
    return userRefDTO{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName}
}

type spotDetailDTO struct {
    spotDTO
    NumReviews    int            `json:"numReviews"`
    AvgStarRating *float64       `json:"avgStarRating"`
    SpotImages    []spotImageDTO `json:"SpotImages"`
    Owner         userRefDTO     `json:"Owner"`
}

func toSpotDetail(d model.SpotDetail) spotDetailDTO {
    images := make([]spotImageDTO, 0, len(d.Images))
    for _, img := range d.Images {
        images = append(images, spotImageDTO{ID: img.ID, URL: img.URL, Preview: img.Preview})
    }
    return spotDetailDTO{
        spotDTO:       toSpotDTO(d.Spot),
        NumReviews:    d.NumReviews,
        AvgStarRating: d.AvgStarRating,
        SpotImages:    images,
        Owner:         toUserRef(d.Owner),
    }
}

// spotBriefDTO is the spot nested in review and booking listings.
type spotBriefDTO struct {
    ID           uint64  `json:"id"`
    OwnerID      uint64  `json:"ownerId"`
    Address      string  `json:"address"`
    City         string  `json:"city"`
    State        string  `json:"state"`
    Country      string  `json:"country"`
    Lat          float64 `json:"lat"`
    Lng          float64 `json:"lng"`
    Name         string  `json:"name"`
    Price        float64 `json:"price"`
    PreviewImage *string `json:"previewImage"`
}

func toSpotBrief(sp model.Spot, preview *string) spotBriefDTO {
    return spotBriefDTO{
        ID: sp.ID, OwnerID: sp.OwnerID, Address: sp.Address, City: sp.City, State: sp.State,
        Country: sp.Country, Lat: sp.Lat, Lng: sp.Lng, Name: sp.Name, Price: sp.Price,
        PreviewImage: preview,
    }
}

type reviewDTO struct {
    ID        uint64    `json:"id"`
    UserID    uint64    `json:"userId"`
    SpotID    uint64    `json:"spotId"`
    Review    string    `json:"review"`
    Stars     int       `json:"stars"`
    CreatedAt time.Time `json:"createdAt"`
    UpdatedAt time.Time `json:"updatedAt"`
}

func toReviewDTO(r model.Review) reviewDTO {
    return reviewDTO{ID: r.ID, UserID: r.UserID, SpotID: r.SpotID, Review: r.Review, Stars: r.Stars,
        CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

type reviewImageDTO struct {
    ID  uint64 `json:"id"`
    URL string `json:"url"`
}

// reviewImageList marshals as an array, or as the legacy marker string
// when empty and legacy output is on.
type reviewImageList struct {
    items  []reviewImageDTO
    legacy bool
}

func (l reviewImageList) MarshalJSON() ([]byte, error) {
    if len(l.items) == 0 {
        if l.legacy {
            return json.Marshal(legacyNoReviewImages)
        }
        return []byte("[]"), nil
    }
    return json.Marshal(l.items)
}

type reviewItemDTO struct {
    reviewDTO
    User         userRefDTO      `json:"User"`
    Spot         *spotBriefDTO   `json:"Spot,omitempty"`
    ReviewImages reviewImageList `json:"ReviewImages"`
}

func (s shaper) reviews(in []model.ReviewDetail) []reviewItemDTO {
    out := make([]reviewItemDTO, 0, len(in))
    for _, d := range in {
        images := make([]reviewImageDTO, 0, len(d.Images))
        for _, img := range d.Images {
            images = append(images, reviewImageDTO{ID: img.ID, URL: img.URL})
        }
        item := reviewItemDTO{
            reviewDTO:    toReviewDTO(d.Review),
            User:         toUserRef(d.Author),
            ReviewImages: reviewImageList{items: images, legacy: s.legacy},
        }
        if d.Spot != nil {
            brief := toSpotBrief(*d.Spot, s.preview(d.PreviewImage, legacyReviewPreview))
            item.Spot = &brief
        }
        out = append(out, item)
    }
    return out
}

type bookingDTO struct {
    ID        uint64    `json:"id"`
    SpotID    uint64    `json:"spotId"`
    UserID    uint64    `json:"userId"`
    StartDate string    `json:"startDate"`
    EndDate   string    `json:"endDate"`
    CreatedAt time.Time `json:"createdAt"`
    UpdatedAt time.Time `json:"updatedAt"`
}

func toBookingDTO(b model.Booking) bookingDTO {
    return bookingDTO{
        ID: b.ID, SpotID: b.SpotID, UserID: b.UserID,
        StartDate: b.StartDate.Format(model.DateLayout), EndDate: b.EndDate.Format(model.DateLayout),
        CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt,
    }
}

type bookingWithSpotDTO struct {
    bookingDTO
    Spot spotBriefDTO `json:"Spot"`
}

func (s shaper) userBookings(in []model.BookingDetail) []bookingWithSpotDTO {
    out := make([]bookingWithSpotDTO, 0, len(in))
    for _, d := range in {
        out = append(out, bookingWithSpotDTO{
            bookingDTO: toBookingDTO(d.Booking),
            Spot:       toSpotBrief(d.Spot, s.preview(d.PreviewImage, legacyBookingPreview)),
        })
    }
    return out
}

// bookingWithUserDTO is what the spot owner sees for each booking.
type bookingWithUserDTO struct {
    User userRefDTO `json:"User"`
    bookingDTO
}

// bookingDatesDTO is what everyone else sees: only the occupied dates.
type bookingDatesDTO struct {
    SpotID    uint64 `json:"spotId"`
    StartDate string `json:"startDate"`
    EndDate   string `json:"endDate"`
}

func spotBookings(in []model.BookingDetail, asOwner bool) any {
    if asOwner {
        out := make([]bookingWithUserDTO, 0, len(in))
        for _, d := range in {
            out = append(out, bookingWithUserDTO{User: toUserRef(d.User), bookingDTO: toBookingDTO(d.Booking)})
        }
        return out
    }
    out := make([]bookingDatesDTO, 0, len(in))
    for _, d := range in {
        out = append(out, bookingDatesDTO{
            SpotID:    d.SpotID,
            StartDate: d.StartDate.Format(model.DateLayout),
            EndDate:   d.EndDate.Format(model.DateLayout),
        })
    }
    return out
}
