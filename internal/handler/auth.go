package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

const authTimeout = 5 * time.Second

// AuthHandler serves staff accounts and sessions. Accounts are either ADMIN
// (event office) or SCANNER (door staff).
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type account struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type issuedToken struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type session struct {
	User    account     `json:"user"`
	Access  issuedToken `json:"access"`
	Refresh issuedToken `json:"refresh"`
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg})
}

// bindCredentials decodes and normalises an email/password body.
func bindCredentials(c echo.Context) (credentials, bool) {
	var in credentials
	if err := c.Bind(&in); err != nil {
		return in, false
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	return in, in.Email != "" && in.Password != ""
}

// staffRole maps the requested role onto a known one. Anything but ADMIN
// becomes SCANNER.
func staffRole(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), model.RoleAdmin) {
		return model.RoleAdmin
	}
	return model.RoleScanner
}

// Register creates a staff account. Only admins reach it, so the caller's
// own session is left alone.
func (h *AuthHandler) Register(c echo.Context) error {
	in, ok := bindCredentials(c)
	if !ok {
		return badRequest(c, "email/password required")
	}
	role := staffRole(in.Role)

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	id, err := h.Users.Create(ctx, in.Email, in.Password, role, h.Cfg.BcryptCost)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, account{ID: id, Email: in.Email, Role: role})
}

// Login checks the password of an active account and opens a session.
func (h *AuthHandler) Login(c echo.Context) error {
	in, ok := bindCredentials(c)
	if !ok {
		return badRequest(c, "email/password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, in.Email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return unauthorized(c, "invalid credentials")
	case err != nil:
		return err
	case !u.IsActive, !utils.VerifyPassword(u.PasswordHash, in.Password):
		return unauthorized(c, "invalid credentials")
	}
	return h.open(ctx, c, u)
}

// Refresh trades a refresh token for a new pair. The presented token is
// revoked whatever happens next.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var in refreshReq
	if err := c.Bind(&in); err != nil || strings.TrimSpace(in.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(in.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	uid, err := h.Tokens.ValidateRefresh(ctx, hash)
	if repository.IsNotFound(err) {
		return unauthorized(c, "invalid refresh")
	}
	if err != nil {
		return err
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return err
	}

	u, err := h.Users.GetByID(ctx, uid)
	if repository.IsNotFound(err) || (err == nil && !u.IsActive) {
		return unauthorized(c, "invalid refresh")
	}
	if err != nil {
		return err
	}
	return h.open(ctx, c, u)
}

// Logout revokes the refresh token in the body. Without one it ends every
// session of the caller.
func (h *AuthHandler) Logout(c echo.Context) error {
	var in refreshReq
	_ = c.Bind(&in)

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	if raw := strings.TrimSpace(in.RefreshToken); raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return unauthorized(c, "invalid refresh token")
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}

	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c, "unauthorized")
	}
	if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": c.Get("user_id"),
		"role":    c.Get("role"),
	})
}

// open mints an access token and a stored refresh token for u.
func (h *AuthHandler) open(ctx context.Context, c echo.Context, u model.User) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session{
		User:    account{ID: u.ID, Email: u.Email, Role: u.Role},
		Access:  issuedToken{Token: access.Token, Expires: access.Exp},
		Refresh: issuedToken{Token: refresh.Raw, Expires: refresh.Exp},
	})
}
