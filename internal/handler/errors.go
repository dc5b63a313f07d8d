package handler

import (
    "errors"
    "fmt"
    "log/slog"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/spot-rental/internal/logger"
    "github.com/iliyamo/spot-rental/internal/repository"
    "github.com/iliyamo/spot-rental/internal/validation"
)

// Client messages shared by several handlers.
const (
    msgForbidden          = "Forbidden"
    msgInvalidCredentials = "Invalid credentials"
    msgBadRequest         = "Bad Request"
    msgInternal           = "Internal server error"
    msgImageLimit         = "Maximum number of images for this resource was reached"
    msgDeleted            = "Successfully deleted"
)

// errorBody is the envelope of every error response.
type errorBody struct {
    Message    string            `json:"message"`
    StatusCode int               `json:"statusCode"`
    Errors     map[string]string `json:"errors,omitempty"`
}

// fail writes an error envelope.
func fail(c echo.Context, status int, msg string) error {
    return c.JSON(status, errorBody{Message: msg, StatusCode: status})
}

// failValidation writes a 400 with per-field messages.
func failValidation(c echo.Context, fe validation.FieldErrors) error {
    return c.JSON(http.StatusBadRequest, errorBody{Message: msgBadRequest, StatusCode: http.StatusBadRequest, Errors: fe})
}

// notFoundMessages maps not-found sentinels to their client messages.
var notFoundMessages = []struct {
    err error
    msg string
}{
    {repository.ErrSpotNotFound, "Spot couldn't be found"},
    {repository.ErrReviewNotFound, "Review couldn't be found"},
    {repository.ErrBookingNotFound, "Booking couldn't be found"},
    {repository.ErrSpotImageNotFound, "Spot Image couldn't be found"},
    {repository.ErrReviewImageNotFound, "Review Image couldn't be found"},
}

// respondError translates repository and guard errors into responses.
// Anything unrecognised is logged and reported as a bare 500.
func respondError(c echo.Context, log *slog.Logger, err error) error {
    for _, nf := range notFoundMessages {
        if errors.Is(err, nf.err) {
            return fail(c, http.StatusNotFound, nf.msg)
        }
    }
    var fe validation.FieldErrors
    switch {
    case errors.As(err, &fe):
        return failValidation(c, fe)
    case errors.Is(err, repository.ErrForbidden):
        return fail(c, http.StatusForbidden, msgForbidden)
    case errors.Is(err, repository.ErrImageLimit):
        return fail(c, http.StatusForbidden, msgImageLimit)
    case errors.Is(err, repository.ErrReviewExists):
        return fail(c, http.StatusForbidden, "User already has a review for this spot")
    case errors.Is(err, repository.ErrBookingConflict):
        return c.JSON(http.StatusForbidden, errorBody{
            Message:    "Sorry, this spot is already booked for the specified dates",
            StatusCode: http.StatusForbidden,
            Errors: map[string]string{
                "startDate": "Start date conflicts with an existing booking",
                "endDate":   "End date conflicts with an existing booking",
            },
        })
    }
    logger.WithContext(c.Request().Context(), log).Error("request failed",
        "method", c.Request().Method, "path", c.Path(), "error", err)
    return fail(c, http.StatusInternalServerError, msgInternal)
}

// NewHTTPErrorHandler renders errors that escape handlers (unknown routes,
// bind failures, csrf rejections, recovered panics) in the same envelope.
// 5xx details are logged, never sent.
func NewHTTPErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
    return func(err error, c echo.Context) {
        if c.Response().Committed {
            return
        }
        status := http.StatusInternalServerError
        msg := msgInternal
        var he *echo.HTTPError
        if errors.As(err, &he) {
            status = he.Code
            if status < http.StatusInternalServerError {
                msg = fmt.Sprint(he.Message)
            }
        }
        if status >= http.StatusInternalServerError {
            logger.WithContext(c.Request().Context(), log).Error("unhandled error",
                "method", c.Request().Method, "path", c.Request().URL.Path, "error", err)
        }
        if c.Request().Method == http.MethodHead {
            _ = c.NoContent(status)
            return
        }
        _ = fail(c, status, msg)
    }
}
