package handler // handler defines http handlers

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/spot-rental/internal/middleware"
    "github.com/iliyamo/spot-rental/internal/validation"
)

// dbTimeout bounds the storage work of a single request.
const dbTimeout = 5 * time.Second

// errNoIdentity is returned by getUserID outside RequireAuth.
var errNoIdentity = errors.New("no authenticated user in context")

// getUserID returns the caller restored by the session middleware.
func getUserID(c echo.Context) (uint64, error) {
    if id := middleware.UserID(c); id != 0 {
        return id, nil
    }
    return 0, errNoIdentity
}

// requestCtx derives the storage context of a request.
func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
    return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// pathID parses a positive numeric path parameter.  Ids that do not parse
// cannot match a row, so callers answer them like a missing resource.
func pathID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, false
    }
    return id, true
}

// bindValid binds and validates req.  When ok is false a 400 has been
// written or err must be returned as is.
func bindValid(c echo.Context, req any) (ok bool, err error) {
    if err := c.Bind(req); err != nil {
        return false, fail(c, http.StatusBadRequest, msgBadRequest)
    }
    if err := c.Validate(req); err != nil {
        var fe validation.FieldErrors
        if errors.As(err, &fe) {
            return false, failValidation(c, fe)
        }
        return false, err
    }
    return true, nil
}

// deleted is the body of a successful delete.
func deleted(c echo.Context) error {
    return c.JSON(http.StatusOK, map[string]any{"message": msgDeleted, "statusCode": http.StatusOK})
}
