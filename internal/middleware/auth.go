package middleware // middleware provides shared request processing for handlers

import (
    "net/http"

    "github.com/labstack/echo/v4" // echo provides middleware chaining and context
)

// RequireAuth rejects requests for which RestoreSession found no identity
// with 401 and the standard error envelope.
func RequireAuth() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if UserID(c) == 0 {
                return c.JSON(http.StatusUnauthorized, map[string]any{
                    "message":    "Authentication required",
                    "statusCode": http.StatusUnauthorized,
                })
            }
            return next(c)
        }
    }
}
