package handler

import (
    "context"
    "strings"
    "sync"
    "time"

    "github.com/iliyamo/spot-rental/internal/model"
    "github.com/iliyamo/spot-rental/internal/queue"
    "github.com/iliyamo/spot-rental/internal/repository"
    "github.com/iliyamo/spot-rental/internal/utils"
)

// memDB is an in-memory stand-in for the MySQL schema.  The store types
// below view it through the handler store interfaces.
type memDB struct {
    mu       sync.Mutex
    seq      uint64
    users    map[uint64]model.User
    spots    map[uint64]model.Spot
    reviews  map[uint64]model.Review
    spotImgs map[uint64]model.SpotImage
    revImgs  map[uint64]model.ReviewImage
    bookings map[uint64]model.Booking
}

func newMemDB() *memDB {
    return &memDB{
        users:    map[uint64]model.User{},
        spots:    map[uint64]model.Spot{},
        reviews:  map[uint64]model.Review{},
        spotImgs: map[uint64]model.SpotImage{},
        revImgs:  map[uint64]model.ReviewImage{},
        bookings: map[uint64]model.Booking{},
    }
}

func (m *memDB) nextID() uint64 {
    m.seq++
    return m.seq
}

// previewOf returns the newest preview image url of a spot.  Caller holds mu.
func (m *memDB) previewOf(spotID uint64) *string {
    var best *model.SpotImage
    for _, img := range m.spotImgs {
        if img.SpotID == spotID && img.Preview && (best == nil || img.ID > best.ID) {
            i := img
            best = &i
        }
    }
    if best == nil {
        return nil
    }
    url := best.URL
    return &url
}

// ratingOf returns the review count and star sum of a spot.  Caller holds mu.
func (m *memDB) ratingOf(spotID uint64) (int, int) {
    n, sum := 0, 0
    for _, r := range m.reviews {
        if r.SpotID == spotID {
            n++
            sum += r.Stars
        }
    }
    return n, sum
}

func (m *memDB) reviewImages(reviewID uint64) []model.ReviewImage {
    out := make([]model.ReviewImage, 0)
    for _, img := range m.revImgs {
        if img.ReviewID == reviewID {
            out = append(out, img)
        }
    }
    return out
}

type memUsers struct{ *memDB }

func (m memUsers) Create(_ context.Context, u model.User, password string, cost int) (model.User, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    for _, x := range m.users {
        if strings.EqualFold(x.Username, u.Username) {
            return model.User{}, repository.ErrUsernameExists
        }
        if strings.EqualFold(x.Email, u.Email) {
            return model.User{}, repository.ErrEmailExists
        }
    }
    hash, err := utils.HashPassword(password, cost)
    if err != nil {
        return model.User{}, err
    }
    u.ID = m.nextID()
    u.HashedPassword = hash
    u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
    m.users[u.ID] = u
    return u, nil
}

func (m memUsers) GetByCredential(_ context.Context, credential string) (model.User, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    for _, u := range m.users {
        if u.Username == credential || u.Email == credential {
            return u, nil
        }
    }
    return model.User{}, repository.ErrUserNotFound
}

func (m memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if u, ok := m.users[id]; ok {
        return u, nil
    }
    return model.User{}, repository.ErrUserNotFound
}

type memSpots struct{ *memDB }

func (m memSpots) Create(_ context.Context, s *model.Spot) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    s.ID = m.nextID()
    s.CreatedAt, s.UpdatedAt = time.Now(), time.Now()
    m.spots[s.ID] = *s
    return nil
}

func (m memSpots) GetByID(_ context.Context, id uint64) (*model.Spot, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    s, ok := m.spots[id]
    if !ok {
        return nil, repository.ErrSpotNotFound
    }
    return &s, nil
}

func (m memSpots) Update(_ context.Context, s *model.Spot) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, ok := m.spots[s.ID]; !ok {
        return repository.ErrSpotNotFound
    }
    s.UpdatedAt = time.Now()
    m.spots[s.ID] = *s
    return nil
}

func (m memSpots) Delete(_ context.Context, id uint64) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, ok := m.spots[id]; !ok {
        return repository.ErrSpotNotFound
    }
    delete(m.spots, id)
    for rid, r := range m.reviews {
        if r.SpotID == id {
            delete(m.reviews, rid)
        }
    }
    for iid, img := range m.spotImgs {
        if img.SpotID == id {
            delete(m.spotImgs, iid)
        }
    }
    for bid, b := range m.bookings {
        if b.SpotID == id {
            delete(m.bookings, bid)
        }
    }
    return nil
}

func (m memSpots) summaries(keep func(model.Spot) bool) []model.SpotSummary {
    m.mu.Lock()
    defer m.mu.Unlock()
    out := make([]model.SpotSummary, 0)
    for id := uint64(1); id <= m.seq; id++ {
        s, ok := m.spots[id]
        if !ok || !keep(s) {
            continue
        }
        sum := model.SpotSummary{Spot: s, PreviewImage: m.previewOf(id)}
        if n, total := m.ratingOf(id); n > 0 {
            sum.AvgRating = float64(total) / float64(n)
        }
        out = append(out, sum)
    }
    return out
}

func (m memSpots) ListSummaries(context.Context) ([]model.SpotSummary, error) {
    return m.summaries(func(model.Spot) bool { return true }), nil
}

func (m memSpots) ListSummariesByOwner(_ context.Context, ownerID uint64) ([]model.SpotSummary, error) {
    return m.summaries(func(s model.Spot) bool { return s.OwnerID == ownerID }), nil
}

func (m memSpots) GetDetail(_ context.Context, id uint64) (*model.SpotDetail, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    s, ok := m.spots[id]
    if !ok {
        return nil, repository.ErrSpotNotFound
    }
    d := model.SpotDetail{Spot: s, Owner: m.users[s.OwnerID], Images: make([]model.SpotImage, 0)}
    n, total := m.ratingOf(id)
    d.NumReviews = n
    if n > 0 {
        avg := float64(total) / float64(n)
        d.AvgStarRating = &avg
    }
    for _, img := range m.spotImgs {
        if img.SpotID == id {
            d.Images = append(d.Images, img)
        }
    }
    return &d, nil
}

type memReviews struct{ *memDB }

func (m memReviews) Create(_ context.Context, r *model.Review) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    for _, x := range m.reviews {
        if x.SpotID == r.SpotID && x.UserID == r.UserID {
            return repository.ErrReviewExists
        }
    }
    r.ID = m.nextID()
    r.CreatedAt, r.UpdatedAt = time.Now(), time.Now()
    m.reviews[r.ID] = *r
    return nil
}

func (m memReviews) GetByID(_ context.Context, id uint64) (*model.Review, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    r, ok := m.reviews[id]
    if !ok {
        return nil, repository.ErrReviewNotFound
    }
    return &r, nil
}

func (m memReviews) Update(_ context.Context, r *model.Review) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    r.UpdatedAt = time.Now()
    m.reviews[r.ID] = *r
    return nil
}

func (m memReviews) Delete(_ context.Context, id uint64) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, ok := m.reviews[id]; !ok {
        return repository.ErrReviewNotFound
    }
    delete(m.reviews, id)
    for iid, img := range m.revImgs {
        if img.ReviewID == id {
            delete(m.revImgs, iid)
        }
    }
    return nil
}

func (m memReviews) list(keep func(model.Review) bool, withSpot bool) []model.ReviewDetail {
    m.mu.Lock()
    defer m.mu.Unlock()
    out := make([]model.ReviewDetail, 0)
    for id := m.seq; id > 0; id-- {
        r, ok := m.reviews[id]
        if !ok || !keep(r) {
            continue
        }
        d := model.ReviewDetail{Review: r, Author: m.users[r.UserID], Images: m.reviewImages(id)}
        if withSpot {
            s := m.spots[r.SpotID]
            d.Spot = &s
            d.PreviewImage = m.previewOf(r.SpotID)
        }
        out = append(out, d)
    }
    return out
}

func (m memReviews) ListBySpot(_ context.Context, spotID uint64) ([]model.ReviewDetail, error) {
    return m.list(func(r model.Review) bool { return r.SpotID == spotID }, false), nil
}

func (m memReviews) ListByUser(_ context.Context, userID uint64) ([]model.ReviewDetail, error) {
    return m.list(func(r model.Review) bool { return r.UserID == userID }, true), nil
}

type memImages struct{ *memDB }

func (m memImages) AddSpotImage(_ context.Context, spotID uint64, url string, preview bool) (*model.SpotImage, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, ok := m.spots[spotID]; !ok {
        return nil, repository.ErrSpotNotFound
    }
    n := 0
    for iid, img := range m.spotImgs {
        if img.SpotID != spotID {
            continue
        }
        n++
        if preview && img.Preview {
            img.Preview = false
            m.spotImgs[iid] = img
        }
    }
    if n >= model.MaxImagesPerResource {
        return nil, repository.ErrImageLimit
    }
    img := model.SpotImage{ID: m.nextID(), SpotID: spotID, URL: url, Preview: preview}
    m.spotImgs[img.ID] = img
    return &img, nil
}

func (m memImages) AddReviewImage(_ context.Context, reviewID uint64, url string) (*model.ReviewImage, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, ok := m.reviews[reviewID]; !ok {
        return nil, repository.ErrReviewNotFound
    }
    if len(m.reviewImages(reviewID)) >= model.MaxImagesPerResource {
        return nil, repository.ErrImageLimit
    }
    img := model.ReviewImage{ID: m.nextID(), ReviewID: reviewID, URL: url}
    m.revImgs[img.ID] = img
    return &img, nil
}

func (m memImages) GetSpotImage(_ context.Context, id uint64) (*model.SpotImage, uint64, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    img, ok := m.spotImgs[id]
    if !ok {
        return nil, 0, repository.ErrSpotImageNotFound
    }
    return &img, m.spots[img.SpotID].OwnerID, nil
}

func (m memImages) GetReviewImage(_ context.Context, id uint64) (*model.ReviewImage, uint64, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    img, ok := m.revImgs[id]
    if !ok {
        return nil, 0, repository.ErrReviewImageNotFound
    }
    return &img, m.reviews[img.ReviewID].UserID, nil
}

func (m memImages) DeleteSpotImage(_ context.Context, id uint64) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, ok := m.spotImgs[id]; !ok {
        return repository.ErrSpotImageNotFound
    }
    delete(m.spotImgs, id)
    return nil
}

func (m memImages) DeleteReviewImage(_ context.Context, id uint64) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, ok := m.revImgs[id]; !ok {
        return repository.ErrReviewImageNotFound
    }
    delete(m.revImgs, id)
    return nil
}

type memBookings struct{ *memDB }

// conflicts reports whether b overlaps another booking.  Caller holds mu.
func (m memBookings) conflicts(b *model.Booking) bool {
    for _, x := range m.bookings {
        if x.SpotID == b.SpotID && x.ID != b.ID && x.Overlaps(b.StartDate, b.EndDate) {
            return true
        }
    }
    return false
}

func (m memBookings) Create(_ context.Context, b *model.Booking) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, ok := m.spots[b.SpotID]; !ok {
        return repository.ErrSpotNotFound
    }
    b.ID = 0
    if m.conflicts(b) {
        return repository.ErrBookingConflict
    }
    b.ID = m.nextID()
    b.CreatedAt, b.UpdatedAt = time.Now(), time.Now()
    m.bookings[b.ID] = *b
    return nil
}

func (m memBookings) Update(_ context.Context, b *model.Booking) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, ok := m.bookings[b.ID]; !ok {
        return repository.ErrBookingNotFound
    }
    if m.conflicts(b) {
        return repository.ErrBookingConflict
    }
    b.UpdatedAt = time.Now()
    m.bookings[b.ID] = *b
    return nil
}

func (m memBookings) GetByID(_ context.Context, id uint64) (*model.Booking, uint64, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    b, ok := m.bookings[id]
    if !ok {
        return nil, 0, repository.ErrBookingNotFound
    }
    return &b, m.spots[b.SpotID].OwnerID, nil
}

func (m memBookings) Delete(_ context.Context, id uint64) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, ok := m.bookings[id]; !ok {
        return repository.ErrBookingNotFound
    }
    delete(m.bookings, id)
    return nil
}

func (m memBookings) list(keep func(model.Booking) bool) []model.BookingDetail {
    m.mu.Lock()
    defer m.mu.Unlock()
    out := make([]model.BookingDetail, 0)
    for id := uint64(1); id <= m.seq; id++ {
        b, ok := m.bookings[id]
        if !ok || !keep(b) {
            continue
        }
        out = append(out, model.BookingDetail{
            Booking:      b,
            Spot:         m.spots[b.SpotID],
            PreviewImage: m.previewOf(b.SpotID),
            User:         m.users[b.UserID],
        })
    }
    return out
}

func (m memBookings) ListByUser(_ context.Context, userID uint64) ([]model.BookingDetail, error) {
    return m.list(func(b model.Booking) bool { return b.UserID == userID }), nil
}

func (m memBookings) ListBySpot(_ context.Context, spotID uint64) ([]model.BookingDetail, error) {
    return m.list(func(b model.Booking) bool { return b.SpotID == spotID }), nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
    mu     sync.Mutex
    events []queue.BookingEvent
    err    error
}

func (p *recordingPublisher) PublishBooking(_ context.Context, ev queue.BookingEvent) error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.events = append(p.events, ev)
    return p.err
}

func (p *recordingPublisher) types() []string {
    p.mu.Lock()
    defer p.mu.Unlock()
    out := make([]string, 0, len(p.events))
    for _, ev := range p.events {
        out = append(out, ev.Type)
    }
    return out
}

// countingCache counts invalidations.
type countingCache struct {
    mu sync.Mutex
    n  int
}

func (c *countingCache) Invalidate(context.Context) error {
    c.mu.Lock()
    defer c.mu.Unlock()
    c.n++
    return nil
}

func (c *countingCache) count() int {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.n
}
