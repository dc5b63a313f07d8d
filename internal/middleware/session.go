package middleware // middleware provides shared request processing for handlers

import (
    "context"
    "log/slog"

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/spot-rental/internal/logger"
    "github.com/iliyamo/spot-rental/internal/model"
)

// SessionCookie is the name of the HttpOnly cookie carrying the signed
// session token.
const SessionCookie = "token"

// Context keys set by RestoreSession.
const (
    ContextUser   = "user"    // model.User of the caller
    ContextUserID = "user_id" // uint64 id of the caller
)

// TokenParser verifies a raw session token and returns the user id it is
// bound to.
type TokenParser interface {
    Parse(raw string) (uint64, error)
}

// UserLoader re-fetches the caller so current attributes are used instead
// of anything carried in the token.
type UserLoader interface {
    GetByID(ctx context.Context, id uint64) (model.User, error)
}

// RestoreSession resolves the session cookie into an identity.  It never
// rejects a request: a missing, malformed, expired or badly signed token,
// or a user that no longer exists, simply leaves the request anonymous.
// Routes that need a caller add RequireAuth after it.
func RestoreSession(tokens TokenParser, users UserLoader, log *slog.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            ck, err := c.Cookie(SessionCookie)
            if err != nil || ck.Value == "" {
                return next(c)
            }
            id, err := tokens.Parse(ck.Value)
            if err != nil {
                return next(c)
            }
            ctx := c.Request().Context()
            u, err := users.GetByID(ctx, id)
            if err != nil {
                // storage failures are logged; the request continues anonymous
                if log != nil {
                    logger.WithContext(ctx, log).Debug("session restore failed", "user_id", id, "error", err)
                }
                return next(c)
            }
            c.Set(ContextUser, u)
            c.Set(ContextUserID, u.ID)
            rid := c.Response().Header().Get(echo.HeaderXRequestID)
            c.SetRequest(c.Request().WithContext(logger.WithRequest(ctx, rid, u.ID)))
            return next(c)
        }
    }
}
