package handler

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "log/slog"
    "net/http"
    "net/http/httptest"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "golang.org/x/crypto/bcrypt"

    "github.com/iliyamo/spot-rental/internal/middleware"
    "github.com/iliyamo/spot-rental/internal/model"
    "github.com/iliyamo/spot-rental/internal/queue"
    "github.com/iliyamo/spot-rental/internal/utils"
    "github.com/iliyamo/spot-rental/internal/validation"
)

var testToday = time.Date(2030, time.January, 10, 15, 0, 0, 0, time.UTC)

type testServer struct {
    e      *echo.Echo
    db     *memDB
    events *recordingPublisher
    cache  *countingCache
}

func newTestServer(t *testing.T, legacy bool) *testServer {
    t.Helper()
    log := slog.New(slog.NewTextHandler(io.Discard, nil))
    db := newMemDB()
    ts := &testServer{e: echo.New(), db: db, events: &recordingPublisher{}, cache: &countingCache{}}

    users, spots, reviews, images, bookings := memUsers{db}, memSpots{db}, memReviews{db}, memImages{db}, memBookings{db}
    issuer := utils.NewSessionIssuer("test-secret", time.Hour)

    sh := NewSessionHandler(users, issuer, CookieOptions{SameSite: http.SameSiteLaxMode}, bcrypt.MinCost, log)
    sp := NewSpotHandler(spots, images, ts.cache, legacy, log)
    rv := NewReviewHandler(reviews, spots, images, ts.cache, legacy, log)
    bk := NewBookingHandler(bookings, spots, ts.events, legacy, log)
    bk.now = func() time.Time { return testToday }
    im := NewImageHandler(images, ts.cache, log)

    e := ts.e
    e.Validator = validation.New()
    e.HTTPErrorHandler = NewHTTPErrorHandler(log)
    e.Use(middleware.RestoreSession(issuer, users, log))
    auth := middleware.RequireAuth()

    api := e.Group("/api")
    api.GET("/session", sh.Restore)
    api.POST("/session", sh.Login)
    api.DELETE("/session", sh.Logout)
    api.POST("/users", sh.Signup)
    api.GET("/csrf/restore", func(c echo.Context) error {
        c.Set("csrf", "test-csrf")
        return sh.CSRFRestore(c)
    })

    api.GET("/spots", sp.List)
    api.GET("/spots/current", sp.ListCurrent, auth)
    api.GET("/spots/:spotId", sp.Get)
    api.POST("/spots", sp.Create, auth)
    api.PUT("/spots/:spotId", sp.Update, auth)
    api.DELETE("/spots/:spotId", sp.Delete, auth)
    api.POST("/spots/:spotId/images", sp.AddImage, auth)
    api.GET("/spots/:spotId/reviews", rv.ListBySpot)
    api.POST("/spots/:spotId/reviews", rv.Create, auth)
    api.GET("/spots/:spotId/bookings", bk.ListBySpot, auth)
    api.POST("/spots/:spotId/bookings", bk.Create, auth)

    api.GET("/reviews/current", rv.ListCurrent, auth)
    api.PUT("/reviews/:reviewId", rv.Update, auth)
    api.DELETE("/reviews/:reviewId", rv.Delete, auth)
    api.POST("/reviews/:reviewId/images", rv.AddImage, auth)

    api.GET("/bookings/current", bk.ListCurrent, auth)
    api.PUT("/bookings/:bookingId", bk.Update, auth)
    api.DELETE("/bookings/:bookingId", bk.Delete, auth)

    api.DELETE("/spot-images/:imageId", im.DeleteSpotImage, auth)
    api.DELETE("/review-images/:imageId", im.DeleteReviewImage, auth)
    return ts
}

func (ts *testServer) do(method, path, body string, ck *http.Cookie) *httptest.ResponseRecorder {
    var r io.Reader
    if body != "" {
        r = strings.NewReader(body)
    }
    req := httptest.NewRequest(method, path, r)
    if body != "" {
        req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    }
    if ck != nil {
        req.AddCookie(ck)
    }
    rec := httptest.NewRecorder()
    ts.e.ServeHTTP(rec, req)
    return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
    for _, ck := range rec.Result().Cookies() {
        if ck.Name == middleware.SessionCookie {
            return ck
        }
    }
    return nil
}

// signup registers a user and returns its session cookie.
func (ts *testServer) signup(t *testing.T, username string) *http.Cookie {
    t.Helper()
    body := fmt.Sprintf(`{"username":%q,"email":"%s@example.com","password":"secret1","firstName":"F","lastName":"L"}`, username, username)
    rec := ts.do(http.MethodPost, "/api/users", body, nil)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    ck := sessionCookie(rec)
    require.NotNil(t, ck)
    return ck
}

const spotBody = `{"address":"1 Main St","city":"Springfield","state":"IL","country":"USA",
"lat":39.78,"lng":-89.65,"name":"Quiet driveway","description":"Close to downtown","price":25}`

// createSpot creates a spot as ck and returns its id.
func (ts *testServer) createSpot(t *testing.T, ck *http.Cookie) uint64 {
    t.Helper()
    rec := ts.do(http.MethodPost, "/api/spots", spotBody, ck)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    var out struct {
        ID uint64 `json:"id"`
    }
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
    return out.ID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
    t.Helper()
    var out map[string]any
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
    return out
}

func TestSignupLoginRestore(t *testing.T) {
    ts := newTestServer(t, false)
    ck := ts.signup(t, "demo-lition")

    rec := ts.do(http.MethodGet, "/api/session", "", ck)
    assert.Equal(t, http.StatusOK, rec.Code)
    user := decode(t, rec)["user"].(map[string]any)
    assert.Equal(t, "demo-lition", user["username"])
    assert.NotContains(t, rec.Body.String(), "ashedPassword")

    // restoring twice yields the same identity
    again := ts.do(http.MethodGet, "/api/session", "", ck)
    assert.JSONEq(t, rec.Body.String(), again.Body.String())

    for _, cred := range []string{"demo-lition", "demo-lition@example.com"} {
        rec = ts.do(http.MethodPost, "/api/session", fmt.Sprintf(`{"credential":%q,"password":"secret1"}`, cred), nil)
        assert.Equal(t, http.StatusOK, rec.Code, cred)
        login := sessionCookie(rec)
        require.NotNil(t, login)
        assert.True(t, login.HttpOnly)
    }
}

func TestLogin_Failures(t *testing.T) {
    ts := newTestServer(t, false)
    ts.signup(t, "demo-lition")

    tests := []struct {
        name string
        body string
        code int
        want string
    }{
        {"wrong password", `{"credential":"demo-lition","password":"nope!!"}`, 401,
            `{"message":"Invalid credentials","statusCode":401}`},
        {"unknown user", `{"credential":"ghost","password":"secret1"}`, 401,
            `{"message":"Invalid credentials","statusCode":401}`},
        {"missing fields", `{}`, 400,
            `{"message":"Bad Request","statusCode":400,"errors":{"credential":"Email or username is required","password":"Password is required"}}`},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            rec := ts.do(http.MethodPost, "/api/session", tt.body, nil)
            assert.Equal(t, tt.code, rec.Code)
            assert.JSONEq(t, tt.want, rec.Body.String())
            assert.Nil(t, sessionCookie(rec))
        })
    }
}

func TestSignup_Validation(t *testing.T) {
    ts := newTestServer(t, false)
    ts.signup(t, "taken")

    tests := []struct {
        name  string
        body  string
        field string
        msg   string
    }{
        {"username is email", `{"username":"a@b.io","email":"x@example.com","password":"secret1","firstName":"F","lastName":"L"}`,
            "username", "Username cannot be an email."},
        {"username too short", `{"username":"abc","email":"x@example.com","password":"secret1","firstName":"F","lastName":"L"}`,
            "username", "Username is required"},
        {"duplicate username", `{"username":"taken","email":"x@example.com","password":"secret1","firstName":"F","lastName":"L"}`,
            "username", "User with that username already exists"},
        {"duplicate email", `{"username":"fresh","email":"taken@example.com","password":"secret1","firstName":"F","lastName":"L"}`,
            "email", "User with that email already exists"},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            rec := ts.do(http.MethodPost, "/api/users", tt.body, nil)
            require.Equal(t, http.StatusBadRequest, rec.Code)
            errs := decode(t, rec)["errors"].(map[string]any)
            assert.Equal(t, tt.msg, errs[tt.field])
        })
    }
}

func TestLogout_ClearsCookie(t *testing.T) {
    ts := newTestServer(t, false)
    ck := ts.signup(t, "demo-lition")
    rec := ts.do(http.MethodDelete, "/api/session", "", ck)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"message":"success"}`, rec.Body.String())
    cleared := sessionCookie(rec)
    require.NotNil(t, cleared)
    assert.Empty(t, cleared.Value)
    assert.True(t, cleared.MaxAge < 0)
}

func TestCSRFRestore(t *testing.T) {
    ts := newTestServer(t, false)
    rec := ts.do(http.MethodGet, "/api/csrf/restore", "", nil)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"XSRF-Token":"test-csrf"}`, rec.Body.String())
}

func TestRequireAuth_Envelope(t *testing.T) {
    ts := newTestServer(t, false)
    rec := ts.do(http.MethodPost, "/api/spots", spotBody, nil)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
    assert.JSONEq(t, `{"message":"Authentication required","statusCode":401}`, rec.Body.String())
}

func TestSpots_ListShapes(t *testing.T) {
    ts := newTestServer(t, false)
    owner := ts.signup(t, "owner")
    id := ts.createSpot(t, owner)

    rec := ts.do(http.MethodGet, "/api/spots", "", nil)
    require.Equal(t, http.StatusOK, rec.Code)
    spots := decode(t, rec)["Spots"].([]any)
    require.Len(t, spots, 1)
    first := spots[0].(map[string]any)
    assert.Equal(t, float64(0), first["avgRating"])
    assert.Nil(t, first["previewImage"])

    rec = ts.do(http.MethodPost, fmt.Sprintf("/api/spots/%d/images", id), `{"url":"https://img/1.png","preview":true}`, owner)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, fmt.Sprintf(`{"id":%d,"url":"https://img/1.png","preview":true}`, id+1), rec.Body.String())

    first = decode(t, ts.do(http.MethodGet, "/api/spots", "", nil))["Spots"].([]any)[0].(map[string]any)
    assert.Equal(t, "https://img/1.png", first["previewImage"])
}

func TestSpots_LegacyPreviewMarker(t *testing.T) {
    ts := newTestServer(t, true)
    owner := ts.signup(t, "owner")
    ts.createSpot(t, owner)

    first := decode(t, ts.do(http.MethodGet, "/api/spots", "", nil))["Spots"].([]any)[0].(map[string]any)
    assert.Equal(t, "null", first["previewImage"])
}

func TestSpots_Validation(t *testing.T) {
    ts := newTestServer(t, false)
    owner := ts.signup(t, "owner")
    rec := ts.do(http.MethodPost, "/api/spots", `{"lat":120,"lng":10,"name":"x","price":0}`, owner)
    require.Equal(t, http.StatusBadRequest, rec.Code)
    body := decode(t, rec)
    assert.Equal(t, "Bad Request", body["message"])
    errs := body["errors"].(map[string]any)
    assert.Equal(t, "Street address is required", errs["address"])
    assert.Equal(t, "Latitude is not valid", errs["lat"])
    assert.Equal(t, "Price per day is required", errs["price"])
    assert.NotContains(t, errs, "lng")
}

func TestSpots_DetailAndCurrent(t *testing.T) {
    ts := newTestServer(t, false)
    owner := ts.signup(t, "owner")
    other := ts.signup(t, "other")
    id := ts.createSpot(t, owner)

    rec := ts.do(http.MethodGet, fmt.Sprintf("/api/spots/%d", id), "", nil)
    require.Equal(t, http.StatusOK, rec.Code)
    detail := decode(t, rec)
    assert.Equal(t, float64(0), detail["numReviews"])
    assert.Nil(t, detail["avgStarRating"])
    assert.Equal(t, []any{}, detail["SpotImages"])
    assert.Equal(t, "F", detail["Owner"].(map[string]any)["firstName"])

    rec = ts.do(http.MethodGet, "/api/spots/999", "", nil)
    assert.Equal(t, http.StatusNotFound, rec.Code)
    assert.JSONEq(t, `{"message":"Spot couldn't be found","statusCode":404}`, rec.Body.String())

    assert.Len(t, decode(t, ts.do(http.MethodGet, "/api/spots/current", "", owner))["Spots"], 1)
    assert.Len(t, decode(t, ts.do(http.MethodGet, "/api/spots/current", "", other))["Spots"], 0)
}

func TestSpots_OwnershipOrder(t *testing.T) {
    ts := newTestServer(t, false)
    owner := ts.signup(t, "owner")
    other := ts.signup(t, "other")
    id := ts.createSpot(t, owner)
    path := fmt.Sprintf("/api/spots/%d", id)

    // a missing spot is 404 even with an invalid body
    rec := ts.do(http.MethodPut, "/api/spots/999", `{}`, other)
    assert.Equal(t, http.StatusNotFound, rec.Code)

    rec = ts.do(http.MethodPut, path, spotBody, other)
    assert.Equal(t, http.StatusForbidden, rec.Code)
    assert.JSONEq(t, `{"message":"Forbidden","statusCode":403}`, rec.Body.String())

    rec = ts.do(http.MethodDelete, path, "", other)
    assert.Equal(t, http.StatusForbidden, rec.Code)

    before := ts.cache.count()
    rec = ts.do(http.MethodDelete, path, "", owner)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"message":"Successfully deleted","statusCode":200}`, rec.Body.String())
    assert.Equal(t, before+1, ts.cache.count())

    rec = ts.do(http.MethodGet, path, "", nil)
    assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSpotImages_Cap(t *testing.T) {
    ts := newTestServer(t, false)
    owner := ts.signup(t, "owner")
    id := ts.createSpot(t, owner)
    path := fmt.Sprintf("/api/spots/%d/images", id)

    for i := 0; i < model.MaxImagesPerResource; i++ {
        rec := ts.do(http.MethodPost, path, fmt.Sprintf(`{"url":"https://img/%d.png"}`, i), owner)
        require.Equal(t, http.StatusOK, rec.Code)
    }
    rec := ts.do(http.MethodPost, path, `{"url":"https://img/extra.png"}`, owner)
    assert.Equal(t, http.StatusForbidden, rec.Code)
    assert.JSONEq(t, `{"message":"Maximum number of images for this resource was reached","statusCode":403}`, rec.Body.String())
}

func TestSpotImages_CapUnderConcurrency(t *testing.T) {
    ts := newTestServer(t, false)
    owner := ts.signup(t, "owner")
    id := ts.createSpot(t, owner)
    path := fmt.Sprintf("/api/spots/%d/images", id)

    codes := make([]int, model.MaxImagesPerResource+1)
    var wg sync.WaitGroup
    for i := range codes {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            codes[i] = ts.do(http.MethodPost, path, fmt.Sprintf(`{"url":"https://img/%d.png"}`, i), owner).Code
        }(i)
    }
    wg.Wait()

    ok, capped := 0, 0
    for _, code := range codes {
        switch code {
        case http.StatusOK:
            ok++
        case http.StatusForbidden:
            capped++
        }
    }
    assert.Equal(t, model.MaxImagesPerResource, ok)
    assert.Equal(t, 1, capped)
}

func TestSpotImages_Delete(t *testing.T) {
    ts := newTestServer(t, false)
    owner := ts.signup(t, "owner")
    other := ts.signup(t, "other")
    id := ts.createSpot(t, owner)
    rec := ts.do(http.MethodPost, fmt.Sprintf("/api/spots/%d/images", id), `{"url":"https://img/1.png"}`, owner)
    imgID := uint64(decode(t, rec)["id"].(float64))
    path := fmt.Sprintf("/api/spot-images/%d", imgID)

    assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, "/api/spot-images/999", "", owner).Code)
    assert.Equal(t, http.StatusForbidden, ts.do(http.MethodDelete, path, "", other).Code)
    assert.Equal(t, http.StatusOK, ts.do(http.MethodDelete, path, "", owner).Code)

    rec = ts.do(http.MethodDelete, path, "", owner)
    assert.JSONEq(t, `{"message":"Spot Image couldn't be found","statusCode":404}`, rec.Body.String())
}

func TestReviews_Lifecycle(t *testing.T) {
    ts := newTestServer(t, false)
    owner := ts.signup(t, "owner")
    guest := ts.signup(t, "guest")
    spotID := ts.createSpot(t, owner)
    reviewsPath := fmt.Sprintf("/api/spots/%d/reviews", spotID)

    rec := ts.do(http.MethodPost, reviewsPath, `{"review":"Great","stars":4}`, guest)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    reviewID := uint64(decode(t, rec)["id"].(float64))

    rec = ts.do(http.MethodPost, reviewsPath, `{"review":"Again","stars":5}`, guest)
    assert.Equal(t, http.StatusForbidden, rec.Code)
    assert.JSONEq(t, `{"message":"User already has a review for this spot","statusCode":403}`, rec.Body.String())

    rec = ts.do(http.MethodPost, reviewsPath, `{"review":"","stars":6}`, owner)
    require.Equal(t, http.StatusBadRequest, rec.Code)
    errs := decode(t, rec)["errors"].(map[string]any)
    assert.Equal(t, "Review text is required", errs["review"])
    assert.Equal(t, "Stars must be an integer from 1 to 5", errs["stars"])

    first := decode(t, ts.do(http.MethodGet, "/api/spots", "", nil))["Spots"].([]any)[0].(map[string]any)
    assert.Equal(t, float64(4), first["avgRating"])

    rec = ts.do(http.MethodGet, reviewsPath, "", nil)
    require.Equal(t, http.StatusOK, rec.Code)
    item := decode(t, rec)["Reviews"].([]any)[0].(map[string]any)
    assert.Equal(t, []any{}, item["ReviewImages"])
    assert.Equal(t, "F", item["User"].(map[string]any)["firstName"])
    assert.NotContains(t, item, "Spot")

    assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/spots/999/reviews", "", nil).Code)

    // existence is checked before authorship
    rec = ts.do(http.MethodPut, "/api/reviews/99", `{"review":"x","stars":1}`, guest)
    assert.Equal(t, http.StatusNotFound, rec.Code)
    assert.JSONEq(t, `{"message":"Review couldn't be found","statusCode":404}`, rec.Body.String())
    rec = ts.do(http.MethodPut, fmt.Sprintf("/api/reviews/%d", reviewID), `{"review":"x","stars":1}`, owner)
    assert.Equal(t, http.StatusForbidden, rec.Code)

    rec = ts.do(http.MethodPut, fmt.Sprintf("/api/reviews/%d", reviewID), `{"review":"Better","stars":5}`, guest)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, float64(5), decode(t, rec)["stars"])

    rec = ts.do(http.MethodDelete, fmt.Sprintf("/api/reviews/%d", reviewID), "", guest)
    assert.Equal(t, http.StatusOK, rec.Code)
    first = decode(t, ts.do(http.MethodGet, "/api/spots", "", nil))["Spots"].([]any)[0].(map[string]any)
    assert.Equal(t, float64(0), first["avgRating"])
}

func TestReviews_CurrentShapes(t *testing.T) {
    for _, legacy := range []bool{false, true} {
        t.Run(fmt.Sprintf("legacy=%v", legacy), func(t *testing.T) {
            ts := newTestServer(t, legacy)
            owner := ts.signup(t, "owner")
            guest := ts.signup(t, "guest")
            spotID := ts.createSpot(t, owner)
            rec := ts.do(http.MethodPost, fmt.Sprintf("/api/spots/%d/reviews", spotID), `{"review":"Fine","stars":3}`, guest)
            require.Equal(t, http.StatusCreated, rec.Code)

            rec = ts.do(http.MethodGet, "/api/reviews/current", "", guest)
            require.Equal(t, http.StatusOK, rec.Code)
            item := decode(t, rec)["Reviews"].([]any)[0].(map[string]any)
            spot := item["Spot"].(map[string]any)
            if legacy {
                assert.Equal(t, "no preview image available", spot["previewImage"])
                assert.Equal(t, "no review images available", item["ReviewImages"])
            } else {
                assert.Nil(t, spot["previewImage"])
                assert.Equal(t, []any{}, item["ReviewImages"])
            }
        })
    }
}

func TestReviewImages(t *testing.T) {
    ts := newTestServer(t, false)
    owner := ts.signup(t, "owner")
    guest := ts.signup(t, "guest")
    spotID := ts.createSpot(t, owner)
    rec := ts.do(http.MethodPost, fmt.Sprintf("/api/spots/%d/reviews", spotID), `{"review":"Fine","stars":3}`, guest)
    reviewID := uint64(decode(t, rec)["id"].(float64))
    path := fmt.Sprintf("/api/reviews/%d/images", reviewID)

    rec = ts.do(http.MethodPost, path, `{}`, guest)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    assert.JSONEq(t, `{"message":"Bad Request","statusCode":400,"errors":{"url":"URL is required"}}`, rec.Body.String())

    assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, path, `{"url":"https://img/r.png"}`, owner).Code)
    assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPost, "/api/reviews/999/images", `{"url":"https://img/r.png"}`, guest).Code)

    var firstImage uint64
    for i := 0; i < model.MaxImagesPerResource; i++ {
        rec = ts.do(http.MethodPost, path, fmt.Sprintf(`{"url":"https://img/r%d.png"}`, i), guest)
        require.Equal(t, http.StatusOK, rec.Code)
        if i == 0 {
            body := decode(t, rec)
            firstImage = uint64(body["id"].(float64))
            assert.Equal(t, "https://img/r0.png", body["url"])
        }
    }
    rec = ts.do(http.MethodPost, path, `{"url":"https://img/extra.png"}`, guest)
    assert.Equal(t, http.StatusForbidden, rec.Code)

    imgPath := fmt.Sprintf("/api/review-images/%d", firstImage)
    assert.Equal(t, http.StatusForbidden, ts.do(http.MethodDelete, imgPath, "", owner).Code)
    assert.Equal(t, http.StatusOK, ts.do(http.MethodDelete, imgPath, "", guest).Code)
    rec = ts.do(http.MethodDelete, imgPath, "", guest)
    assert.JSONEq(t, `{"message":"Review Image couldn't be found","statusCode":404}`, rec.Body.String())
}

func bookingBody(start, end string) string {
    return fmt.Sprintf(`{"startDate":%q,"endDate":%q}`, start, end)
}

func TestBookings_Create(t *testing.T) {
    ts := newTestServer(t, false)
    owner := ts.signup(t, "owner")
    guest := ts.signup(t, "guest")
    spotID := ts.createSpot(t, owner)
    path := fmt.Sprintf("/api/spots/%d/bookings", spotID)

    rec := ts.do(http.MethodGet, "/api/bookings/current", "", guest)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"Bookings":[]}`, rec.Body.String())

    rec = ts.do(http.MethodPost, path, bookingBody("2030-02-01", "2030-02-05"), owner)
    assert.Equal(t, http.StatusForbidden, rec.Code)

    rec = ts.do(http.MethodPost, "/api/spots/999/bookings", bookingBody("2030-02-01", "2030-02-05"), guest)
    assert.Equal(t, http.StatusNotFound, rec.Code)

    rec = ts.do(http.MethodPost, path, bookingBody("2030-02-05", "2030-02-05"), guest)
    require.Equal(t, http.StatusBadRequest, rec.Code)
    assert.Equal(t, "endDate cannot be on or before startDate", decode(t, rec)["errors"].(map[string]any)["endDate"])

    rec = ts.do(http.MethodPost, path, bookingBody("02/01/2030", "2030-02-05"), guest)
    assert.Equal(t, http.StatusBadRequest, rec.Code)

    rec = ts.do(http.MethodPost, path, bookingBody("2030-02-01", "2030-02-05"), guest)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    body := decode(t, rec)
    assert.Equal(t, "2030-02-01", body["startDate"])
    assert.Equal(t, "2030-02-05", body["endDate"])

    // checkout day is free for the next guest
    rec = ts.do(http.MethodPost, path, bookingBody("2030-02-05", "2030-02-07"), ts.signup(t, "third"))
    assert.Equal(t, http.StatusCreated, rec.Code)

    rec = ts.do(http.MethodPost, path, bookingBody("2030-02-03", "2030-02-04"), guest)
    assert.Equal(t, http.StatusForbidden, rec.Code)
    conflict := decode(t, rec)
    assert.Equal(t, "Sorry, this spot is already booked for the specified dates", conflict["message"])
    assert.Contains(t, conflict["errors"], "startDate")

    assert.Equal(t, []string{queue.BookingCreated, queue.BookingCreated}, ts.events.types())

    rec = ts.do(http.MethodGet, "/api/bookings/current", "", guest)
    items := decode(t, rec)["Bookings"].([]any)
    require.Len(t, items, 1)
    spot := items[0].(map[string]any)["Spot"].(map[string]any)
    assert.Nil(t, spot["previewImage"])
}

func TestBookings_SpotViewDependsOnOwner(t *testing.T) {
    ts := newTestServer(t, false)
    owner := ts.signup(t, "owner")
    guest := ts.signup(t, "guest")
    spotID := ts.createSpot(t, owner)
    path := fmt.Sprintf("/api/spots/%d/bookings", spotID)
    require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, path, bookingBody("2030-03-01", "2030-03-03"), guest).Code)

    rec := ts.do(http.MethodGet, path, "", guest)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, fmt.Sprintf(`{"Bookings":[{"spotId":%d,"startDate":"2030-03-01","endDate":"2030-03-03"}]}`, spotID), rec.Body.String())

    rec = ts.do(http.MethodGet, path, "", owner)
    item := decode(t, rec)["Bookings"].([]any)[0].(map[string]any)
    assert.Contains(t, item, "User")
    assert.Contains(t, item, "id")

    assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/spots/999/bookings", "", guest).Code)
}

func TestBookings_UpdateAndDelete(t *testing.T) {
    ts := newTestServer(t, false)
    owner := ts.signup(t, "owner")
    guest := ts.signup(t, "guest")
    stranger := ts.signup(t, "stranger")
    spotID := ts.createSpot(t, owner)

    spots := memSpots{ts.db}
    spot, err := spots.GetByID(context.Background(), spotID)
    require.NoError(t, err)

    // seed bookings directly: one already over, one running today
    past := model.Booking{SpotID: spot.ID, UserID: 2, StartDate: testToday.AddDate(0, 0, -5), EndDate: testToday.AddDate(0, 0, -2)}
    running := model.Booking{SpotID: spot.ID, UserID: 2, StartDate: testToday.AddDate(0, 0, -1), EndDate: testToday.AddDate(0, 0, 2)}
    require.NoError(t, memBookings{ts.db}.Create(context.Background(), &past))
    require.NoError(t, memBookings{ts.db}.Create(context.Background(), &running))

    rec := ts.do(http.MethodPost, fmt.Sprintf("/api/spots/%d/bookings", spotID), bookingBody("2030-04-01", "2030-04-03"), guest)
    require.Equal(t, http.StatusCreated, rec.Code)
    id := uint64(decode(t, rec)["id"].(float64))
    path := fmt.Sprintf("/api/bookings/%d", id)

    rec = ts.do(http.MethodPut, "/api/bookings/999", bookingBody("2030-04-02", "2030-04-04"), guest)
    assert.JSONEq(t, `{"message":"Booking couldn't be found","statusCode":404}`, rec.Body.String())
    assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPut, path, bookingBody("2030-04-02", "2030-04-04"), owner).Code)

    rec = ts.do(http.MethodPut, fmt.Sprintf("/api/bookings/%d", past.ID), bookingBody("2030-05-01", "2030-05-02"), guest)
    assert.Equal(t, http.StatusForbidden, rec.Code)
    assert.JSONEq(t, `{"message":"Past bookings can't be modified","statusCode":403}`, rec.Body.String())
    // a finished booking is rejected before its body is looked at
    rec = ts.do(http.MethodPut, fmt.Sprintf("/api/bookings/%d", past.ID), `{}`, guest)
    assert.Equal(t, http.StatusForbidden, rec.Code)

    rec = ts.do(http.MethodPut, path, bookingBody("2029-01-10", "2029-01-13"), guest)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    assert.JSONEq(t, `{"message":"Bad Request","statusCode":400,"errors":{"startDate":"startDate cannot be in the past"}}`, rec.Body.String())
    unchanged, _, err := memBookings{ts.db}.GetByID(context.Background(), id)
    require.NoError(t, err)
    assert.Equal(t, "2030-04-01", unchanged.StartDate.Format(model.DateLayout))

    rec = ts.do(http.MethodPut, path, bookingBody("2030-04-02", "2030-04-06"), guest)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "2030-04-06", decode(t, rec)["endDate"])

    rec = ts.do(http.MethodDelete, fmt.Sprintf("/api/bookings/%d", running.ID), "", guest)
    assert.JSONEq(t, `{"message":"Bookings that have been started can't be deleted","statusCode":403}`, rec.Body.String())

    assert.Equal(t, http.StatusForbidden, ts.do(http.MethodDelete, path, "", stranger).Code)

    // the spot owner may cancel a guest's booking
    rec = ts.do(http.MethodDelete, path, "", owner)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, []string{queue.BookingCreated, queue.BookingCancelled}, ts.events.types())
}

func TestBookings_PublishFailureDoesNotFail(t *testing.T) {
    ts := newTestServer(t, false)
    ts.events.err = errors.New("broker down")
    owner := ts.signup(t, "owner")
    guest := ts.signup(t, "guest")
    spotID := ts.createSpot(t, owner)

    rec := ts.do(http.MethodPost, fmt.Sprintf("/api/spots/%d/bookings", spotID), bookingBody("2030-06-01", "2030-06-02"), guest)
    assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestUnknownRoute_Envelope(t *testing.T) {
    ts := newTestServer(t, false)
    rec := ts.do(http.MethodGet, "/api/nope", "", nil)
    assert.Equal(t, http.StatusNotFound, rec.Code)
    assert.JSONEq(t, `{"message":"Not Found","statusCode":404}`, rec.Body.String())
}

func TestReviewImageList_Marshal(t *testing.T) {
    bs, err := json.Marshal(reviewImageList{})
    require.NoError(t, err)
    assert.Equal(t, "[]", string(bs))

    bs, err = json.Marshal(reviewImageList{legacy: true})
    require.NoError(t, err)
    assert.Equal(t, `"no review images available"`, string(bs))

    bs, err = json.Marshal(reviewImageList{items: []reviewImageDTO{{ID: 1, URL: "u"}}, legacy: true})
    require.NoError(t, err)
    assert.JSONEq(t, `[{"id":1,"url":"u"}]`, string(bs))
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
    e := echo.New()
    e.GET("/healthz", Health(stubPinger{}))
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "ok", rec.Body.String())

    e = echo.New()
    e.GET("/healthz", Health(stubPinger{err: errors.New("down")}))
    rec = httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
