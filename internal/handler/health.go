package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// Pinger reports whether a backing store is reachable.  *sql.DB satisfies it.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// Health returns the liveness probe for GET /healthz.  It answers "ok"
// while the database responds and 503 otherwise.  A nil db skips the ping.
func Health(db Pinger) echo.HandlerFunc {
    return func(c echo.Context) error {
        if db != nil {
            ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
            defer cancel()
            if err := db.PingContext(ctx); err != nil {
                return c.String(http.StatusServiceUnavailable, "database unavailable")
            }
        }
        return c.String(http.StatusOK, "ok")
    }
}
