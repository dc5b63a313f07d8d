package middleware

import (
    "context"
    "log/slog"

    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
)

// RequestLogger writes one structured line per request.  Server errors are
// logged at error level with the underlying error, which never reaches the
// client.
func RequestLogger(log *slog.Logger) echo.MiddlewareFunc {
    if log == nil {
        log = slog.Default()
    }
    return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogMethod:    true,
        LogURI:       true,
        LogStatus:    true,
        LogLatency:   true,
        LogRequestID: true,
        LogRemoteIP:  true,
        LogError:     true,
        HandleError:  true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            level := slog.LevelInfo
            attrs := []slog.Attr{
                slog.String("method", v.Method),
                slog.String("uri", v.URI),
                slog.Int("status", v.Status),
                slog.Duration("latency", v.Latency),
                slog.String("request_id", v.RequestID),
                slog.String("remote_ip", v.RemoteIP),
            }
            if id := UserID(c); id != 0 {
                attrs = append(attrs, slog.Uint64("user_id", id))
            }
            if v.Error != nil {
                attrs = append(attrs, slog.String("error", v.Error.Error()))
            }
            if v.Status >= 500 {
                level = slog.LevelError
            }
            log.LogAttrs(context.Background(), level, "request", attrs...)
            return nil
        },
    })
}
