package router // package router defines how HTTP routes are registered for the API

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/spot-rental/internal/handler"
	"github.com/iliyamo/spot-rental/internal/middleware"
	"github.com/iliyamo/spot-rental/internal/validation"
)

// CSRF cookie and header names understood by the browser client.
const (
	CSRFCookie = "XSRF-TOKEN"
	csrfLookup = "header:X-CSRF-Token,header:XSRF-Token"
)

// Options carries what the global middleware chain needs.  RateLimit and
// ListingCache may be nil, in which case that layer is skipped.
type Options struct {
	Log            *slog.Logger
	Tokens         middleware.TokenParser
	Users          middleware.UserLoader
	RateLimit      echo.MiddlewareFunc
	ListingCache   echo.MiddlewareFunc
	AllowOrigins   []string
	CookieSecure   bool
	CookieSameSite http.SameSite
	BodyLimit      string
}

// Handlers bundles the API handlers registered under /api.
type Handlers struct {
	Session  *handler.SessionHandler
	Spots    *handler.SpotHandler
	Reviews  *handler.ReviewHandler
	Bookings *handler.BookingHandler
	Images   *handler.ImageHandler
}

// Setup installs the global middleware chain.  Every request gets a request
// id, a log line and its session restored; state-changing requests must
// echo the XSRF-TOKEN cookie in a header.
func Setup(e *echo.Echo, opts Options) {
	bodyLimit := opts.BodyLimit
	if bodyLimit == "" {
		bodyLimit = "1M"
	}
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(opts.Log))
	e.Use(echomw.Secure())
	if len(opts.AllowOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     opts.AllowOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAccept, "X-CSRF-Token", "XSRF-Token"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	e.Use(echomw.BodyLimit(bodyLimit))
	e.Use(middleware.RestoreSession(opts.Tokens, opts.Users, opts.Log))
	e.Use(echomw.CSRFWithConfig(echomw.CSRFConfig{
		Skipper:        func(c echo.Context) bool { return !strings.HasPrefix(c.Request().URL.Path, "/api") },
		TokenLookup:    csrfLookup,
		CookieName:     CSRFCookie,
		CookiePath:     "/",
		CookieHTTPOnly: false,
		CookieSecure:   opts.CookieSecure,
		CookieSameSite: opts.CookieSameSite,
		ContextKey:     "csrf",
	}))
	if opts.RateLimit != nil {
		e.Use(opts.RateLimit)
	}
}

// RegisterRoutes registers routes that live outside /api.  Currently it
// exposes only the health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAPI registers every /api route.
func RegisterAPI(e *echo.Echo, h Handlers, listingCache echo.MiddlewareFunc) {
	api := e.Group("/api")
	RegisterSession(api, h.Session)
	RegisterSpots(api, h.Spots, h.Reviews, h.Bookings, listingCache)
	RegisterReviews(api, h.Reviews)
	RegisterBookings(api, h.Bookings)
	RegisterImages(api, h.Images)
}

// New builds a configured Echo instance with all routes registered.
func New(opts Options, h Handlers, db handler.Pinger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(opts.Log)
	e.Validator = validation.New()
	Setup(e, opts)
	RegisterRoutes(e, db)
	RegisterAPI(e, h, opts.ListingCache)
	return e
}

// RegisterSession registers login, logout, session restore, signup and the
// csrf token endpoint.  None of them require a session.
func RegisterSession(api *echo.Group, h *handler.SessionHandler) {
	api.GET("/csrf/restore", h.CSRFRestore)
	api.GET("/session", h.Restore)
	api.POST("/session", h.Login)
	api.DELETE("/session", h.Logout)
	api.POST("/users", h.Signup)
}
