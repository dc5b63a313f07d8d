package middleware

// identity.go holds the helpers that read the identity stored by
// RestoreSession.  Handlers and the rate limiter go through these instead
// of touching the context keys directly.

import (
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/spot-rental/internal/model"
)

// UserID returns the authenticated caller's id or 0 for anonymous requests.
func UserID(c echo.Context) uint64 {
    switch v := c.Get(ContextUserID).(type) {
    case uint64:
        return v
    case int64:
        if v > 0 {
            return uint64(v)
        }
    case int:
        if v > 0 {
            return uint64(v)
        }
    }
    return 0
}

// CurrentUser returns the caller restored from the session cookie.
func CurrentUser(c echo.Context) (model.User, bool) {
    u, ok := c.Get(ContextUser).(model.User)
    return u, ok
}

// userKey is the identity component of rate limit keys.
func userKey(c echo.Context) string {
    if id := UserID(c); id != 0 {
        return strconv.FormatUint(id, 10)
    }
    return "anon"
}
