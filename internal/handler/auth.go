package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dance-booking/internal/config"
	"github.com/iliyamo/dance-booking/internal/model"
	"github.com/iliyamo/dance-booking/internal/repository"
	"github.com/iliyamo/dance-booking/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg   config.Config
	Store repository.Store
	Log   *slog.Logger
	Now   func() time.Time
}

func NewAuthHandler(cfg config.Config, store repository.Store, log *slog.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Store: store, Log: log, Now: func() time.Time { return time.Now().UTC() }}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	Credits int    `json:"credits"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func userPartOf(u model.User) userPart {
	return userPart{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, Credits: u.Credits}
}

var errInvalidRefresh = errors.New("invalid refresh")

// Login: verify and return a new token pair.  Deactivated accounts
// cannot log in.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Store.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !u.IsActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account is deactivated"})
	}

	resp, err := h.issue(ctx, u, "")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh: validate by hash, revoke old, issue new.  Revocation and
// the new token are written in one transaction.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := h.Store.ValidateRefresh(ctx, hash, h.Now())
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	u, err := h.Store.GetUser(ctx, userID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if !u.IsActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account is deactivated"})
	}

	resp, err := h.issue(ctx, u, hash)
	if errors.Is(err, errInvalidRefresh) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes the presented refresh token.  Unknown tokens are
// ignored so logout is idempotent.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))
	err := h.Store.WithTransaction(c.Request().Context(), func(ctx context.Context, tx repository.Tx) error {
		return tx.RevokeRefresh(ctx, hash, h.Now())
	})
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's profile and current credit balance.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	u, err := h.Store.GetUser(c.Request().Context(), id.UserID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, userPartOf(u))
}

// issue creates an access token and stores a fresh refresh token.
// When oldHash is set it is revoked in the same transaction.
func (h *AuthHandler) issue(ctx context.Context, u model.User, oldHash string) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	err = h.Store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		if oldHash != "" {
			if _, err := tx.ValidateRefresh(ctx, oldHash, h.Now()); err != nil {
				return errInvalidRefresh
			}
			if err := tx.RevokeRefresh(ctx, oldHash, h.Now()); err != nil {
				return err
			}
		}
		return tx.StoreRefresh(ctx, model.RefreshToken{
			ID:        uuid.NewString(),
			UserID:    u.ID,
			TokenHash: utils.HashRefreshRaw(refresh.Raw),
			ExpiresAt: refresh.Exp,
		})
	})
	if err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    userPartOf(u),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}
