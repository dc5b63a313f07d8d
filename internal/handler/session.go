package handler

import (
    "errors"
    "log/slog"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/spot-rental/internal/middleware"
    "github.com/iliyamo/spot-rental/internal/model"
    "github.com/iliyamo/spot-rental/internal/repository"
    "github.com/iliyamo/spot-rental/internal/utils"
    "github.com/iliyamo/spot-rental/internal/validation"
)

// CookieOptions controls the attributes of the session cookie.
type CookieOptions struct {
    Secure   bool
    SameSite http.SameSite
}

// SessionHandler serves login, logout, session restore, signup and the
// csrf token endpoint.
type SessionHandler struct {
    Users      UserStore
    Issuer     *utils.SessionIssuer
    Cookies    CookieOptions
    BcryptCost int
    Log        *slog.Logger
}

// NewSessionHandler wires a SessionHandler.
func NewSessionHandler(users UserStore, issuer *utils.SessionIssuer, cookies CookieOptions, bcryptCost int, log *slog.Logger) *SessionHandler {
    if users == nil || issuer == nil {
        panic("nil dependency passed to NewSessionHandler")
    }
    return &SessionHandler{Users: users, Issuer: issuer, Cookies: cookies, BcryptCost: bcryptCost, Log: log}
}

// ----- DTOs -----

type loginReq struct {
    Credential string `json:"credential" validate:"required" msg:"Email or username is required"`
    Password   string `json:"password" validate:"required" msg:"Password is required"`
}

type signupReq struct {
    Email     string `json:"email" validate:"required,email,min=3,max=256" msg:"Invalid email"`
    Username  string `json:"username" validate:"required,min=4,max=30,notemail" msg:"Username is required;notemail=Username cannot be an email."`
    Password  string `json:"password" validate:"required,min=6" msg:"Password must be 6 characters or more"`
    FirstName string `json:"firstName" validate:"required" msg:"First Name is required"`
    LastName  string `json:"lastName" validate:"required" msg:"Last Name is required"`
}

type userResp struct {
    User *model.PublicUser `json:"user"`
}

// setSession issues a token for u and stores it in the HttpOnly cookie.
func (h *SessionHandler) setSession(c echo.Context, u model.User) error {
    tok, err := h.Issuer.Issue(u.ID)
    if err != nil {
        return err
    }
    c.SetCookie(&http.Cookie{
        Name:     middleware.SessionCookie,
        Value:    tok.Token,
        Path:     "/",
        Expires:  tok.Exp,
        MaxAge:   int(time.Until(tok.Exp).Seconds()),
        HttpOnly: true,
        Secure:   h.Cookies.Secure,
        SameSite: h.Cookies.SameSite,
    })
    return nil
}

// Login handles POST /api/session.  Unknown credential and wrong password
// produce the same response after the same amount of bcrypt work.
func (h *SessionHandler) Login(c echo.Context) error {
    var req loginReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    u, err := h.Users.GetByCredential(ctx, strings.TrimSpace(req.Credential))
    if err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            utils.BurnPasswordCheck(req.Password)
            return fail(c, http.StatusUnauthorized, msgInvalidCredentials)
        }
        return respondError(c, h.Log, err)
    }
    if !utils.VerifyPassword(u.HashedPassword, req.Password) {
        return fail(c, http.StatusUnauthorized, msgInvalidCredentials)
    }
    if err := h.setSession(c, u); err != nil {
        return respondError(c, h.Log, err)
    }
    pub := u.Public()
    return c.JSON(http.StatusOK, userResp{User: &pub})
}

// Logout handles DELETE /api/session.
func (h *SessionHandler) Logout(c echo.Context) error {
    c.SetCookie(&http.Cookie{
        Name:     middleware.SessionCookie,
        Value:    "",
        Path:     "/",
        MaxAge:   -1,
        Expires:  time.Unix(0, 0),
        HttpOnly: true,
        Secure:   h.Cookies.Secure,
        SameSite: h.Cookies.SameSite,
    })
    return c.JSON(http.StatusOK, map[string]string{"message": "success"})
}

// Restore handles GET /api/session: the current user or {"user": null}.
func (h *SessionHandler) Restore(c echo.Context) error {
    u, ok := middleware.CurrentUser(c)
    if !ok {
        return c.JSON(http.StatusOK, userResp{})
    }
    pub := u.Public()
    return c.JSON(http.StatusOK, userResp{User: &pub})
}

// Signup handles POST /api/users.  Duplicate username or email are
// reported as field errors.
func (h *SessionHandler) Signup(c echo.Context) error {
    var req signupReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    u, err := h.Users.Create(ctx, model.User{
        Username:  req.Username,
        Email:     req.Email,
        FirstName: req.FirstName,
        LastName:  req.LastName,
    }, req.Password, h.BcryptCost)
    switch {
    case errors.Is(err, repository.ErrUsernameExists):
        return failValidation(c, validation.FieldErrors{"username": "User with that username already exists"})
    case errors.Is(err, repository.ErrEmailExists):
        return failValidation(c, validation.FieldErrors{"email": "User with that email already exists"})
    case err != nil:
        return respondError(c, h.Log, err)
    }
    if err := h.setSession(c, u); err != nil {
        return respondError(c, h.Log, err)
    }
    pub := u.Public()
    return c.JSON(http.StatusCreated, userResp{User: &pub})
}

// CSRFRestore handles GET /api/csrf/restore.  The csrf middleware has
// already (re)issued the XSRF-TOKEN cookie; the token is echoed for
// clients that cannot read cookies.
func (h *SessionHandler) CSRFRestore(c echo.Context) error {
    token, _ := c.Get("csrf").(string)
    return c.JSON(http.StatusOK, map[string]string{"XSRF-Token": token})
}
