package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking-api/internal/httperr"
	"github.com/iliyamo/tour-booking-api/internal/middleware"
	"github.com/iliyamo/tour-booking-api/internal/model"
	"github.com/iliyamo/tour-booking-api/internal/queue"
	"github.com/iliyamo/tour-booking-api/internal/repository"
	"github.com/iliyamo/tour-booking-api/internal/token"
	"github.com/iliyamo/tour-booking-api/internal/utils"
)

// AuthUserStore is the slice of user storage the auth handlers need.
type AuthUserStore interface {
	Register(ctx context.Context, name, email, password, role string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	SetRefresh(ctx context.Context, id uint64, tokenHash string, exp time.Time) error
	ClearRefresh(ctx context.Context, id uint64) error
	UpdatePassword(ctx context.Context, id uint64, password string) error
	SetResetToken(ctx context.Context, id uint64, tokenHash string, exp time.Time) error
	ClearResetToken(ctx context.Context, id uint64) error
	GetByResetTokenHash(ctx context.Context, tokenHash string) (model.User, error)
	Deactivate(ctx context.Context, id uint64) error
	UpdateByID(ctx context.Context, id uint64, fields map[string]any) (model.User, error)
}

// Notifier publishes outbound notification events.
type Notifier interface {
	Publish(ctx context.Context, ev queue.NotificationEvent) error
}

// AuthHandler owns signup, login, token lifecycle and the /users/me surface.
type AuthHandler struct {
	users    AuthUserStore
	issuer   token.Issuer
	notifier Notifier

	frontendURL string
}

func NewAuthHandler(users AuthUserStore, issuer token.Issuer, notifier Notifier, frontendURL string) *AuthHandler {
	return &AuthHandler{users: users, issuer: issuer, notifier: notifier, frontendURL: frontendURL}
}

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// setRefreshCookie writes the refresh token cookie.  The cookie is the only
// place the raw refresh token lives client-side.
func setRefreshCookie(c echo.Context, t token.Token) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.RefreshCookie,
		Value:    t.Value,
		Path:     "/",
		Expires:  t.Exp,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.RefreshCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// issueSession mints both tokens, persists the refresh hash and sets the
// cookie.  Every successful signup, login and password change ends here, so
// the previous refresh token is always invalidated.
func (h *AuthHandler) issueSession(ctx context.Context, c echo.Context, u model.User) (string, error) {
	access, err := h.issuer.Access(u)
	if err != nil {
		return "", err
	}
	refresh, err := h.issuer.Refresh(u)
	if err != nil {
		return "", err
	}
	if err := h.users.SetRefresh(ctx, u.ID, token.Hash(refresh.Value), refresh.Exp); err != nil {
		return "", err
	}
	setRefreshCookie(c, refresh)
	return access.Value, nil
}

// Signup registers a new account.  The role is always "user"; elevated roles
// are granted by an admin afterwards.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" {
		return httperr.BadRequest("name and email are required")
	}
	if len(req.Password) < 8 {
		return httperr.BadRequest("password must be at least 8 characters")
	}
	if req.Password != req.PasswordConfirm {
		return httperr.BadRequest("passwords do not match")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.users.Register(ctx, req.Name, req.Email, req.Password, model.RoleUser)
	if errors.Is(err, repository.ErrEmailExists) {
		return httperr.Conflict("email already in use")
	}
	if err != nil {
		return err
	}

	access, err := h.issueSession(ctx, c, u)
	if err != nil {
		return err
	}
	if err := h.notifier.Publish(ctx, queue.NotificationEvent{
		Kind:  queue.KindWelcome,
		Email: u.Email,
		Name:  u.Name,
	}); err != nil {
		c.Logger().Errorf("publish welcome event: %v", err)
	}
	return respond(c, http.StatusCreated, echo.Map{"user": u, "accessToken": access})
}

// Login authenticates by email and password.  Unknown email and wrong
// password produce the same response.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return httperr.BadRequest("Please provide email and password!")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.users.GetByEmail(ctx, strings.ToLower(req.Email))
	if errors.Is(err, repository.ErrNotFound) {
		return httperr.Unauthorized("Incorrect email or password")
	}
	if err != nil {
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return httperr.Unauthorized("Incorrect email or password")
	}

	access, err := h.issueSession(ctx, c, u)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"user": u, "accessToken": access})
}

// Logout revokes the stored refresh token and clears the cookie.  A request
// without a cookie is already logged out and succeeds; a presented cookie
// must verify and match the persisted slot, anything else is forbidden.
func (h *AuthHandler) Logout(c echo.Context) error {
	cookie, err := c.Cookie(middleware.RefreshCookie)
	if err != nil || cookie.Value == "" {
		return c.NoContent(http.StatusNoContent)
	}

	sess, err := h.issuer.ParseRefresh(cookie.Value)
	if err != nil {
		return httperr.Forbidden("invalid refresh token")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.users.GetByID(ctx, sess.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return httperr.Forbidden("invalid refresh token")
	}
	if err != nil {
		return err
	}
	if u.RefreshTokenHash != token.Hash(cookie.Value) {
		return httperr.Forbidden("invalid refresh token")
	}
	if err := h.users.ClearRefresh(ctx, u.ID); err != nil {
		return err
	}
	clearRefreshCookie(c)
	return c.NoContent(http.StatusNoContent)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword stores a hashed single-use reset token and mails the raw
// token to the account owner.  If the mail cannot be dispatched the token is
// discarded so a stale token never lingers.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest("invalid request body")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.users.GetByEmail(ctx, strings.ToLower(req.Email))
	if errors.Is(err, repository.ErrNotFound) {
		return httperr.NotFound("There is no user with email address.")
	}
	if err != nil {
		return err
	}

	raw, err := utils.RandomHex(32)
	if err != nil {
		return err
	}
	exp := time.Now().Add(10 * time.Minute)
	if err := h.users.SetResetToken(ctx, u.ID, token.Hash(raw), exp); err != nil {
		return err
	}

	resetURL := h.frontendURL + "/reset-password/" + raw
	if err := h.notifier.Publish(ctx, queue.NotificationEvent{
		Kind:     queue.KindPasswordReset,
		Email:    u.Email,
		Name:     u.Name,
		ResetURL: resetURL,
	}); err != nil {
		if clearErr := h.users.ClearResetToken(ctx, u.ID); clearErr != nil {
			c.Logger().Errorf("clear reset token: %v", clearErr)
		}
		return httperr.New(http.StatusInternalServerError,
			"There was an error sending the email. Try again later!")
	}
	return respondMessage(c, http.StatusOK, "Token sent to email!")
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// ResetPassword consumes a reset token and sets a new password, then logs
// the user in with fresh tokens.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	raw := c.Param("token")
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	if len(req.Password) < 8 {
		return httperr.BadRequest("password must be at least 8 characters")
	}
	if req.Password != req.PasswordConfirm {
		return httperr.BadRequest("passwords do not match")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.users.GetByResetTokenHash(ctx, token.Hash(raw))
	if errors.Is(err, repository.ErrNotFound) {
		return httperr.BadRequest("Token is invalid or has expired")
	}
	if err != nil {
		return err
	}

	if err := h.users.UpdatePassword(ctx, u.ID, req.Password); err != nil {
		return err
	}
	if err := h.users.ClearResetToken(ctx, u.ID); err != nil {
		return err
	}

	// Re-read so the issued claims carry the new password timestamp.
	u, err = h.users.GetByID(ctx, u.ID)
	if err != nil {
		return err
	}
	access, err := h.issueSession(ctx, c, u)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"user": u, "accessToken": access})
}

type updatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// UpdateMyPassword changes the password of the logged-in user after
// verifying the current one, rotating both tokens.
func (h *AuthHandler) UpdateMyPassword(c echo.Context) error {
	cu, ok := middleware.CurrentUser(c)
	if !ok {
		return httperr.Unauthorized("You are not logged in! Please log in to get access.")
	}
	var req updatePasswordRequest
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	if len(req.Password) < 8 {
		return httperr.BadRequest("password must be at least 8 characters")
	}
	if req.Password != req.PasswordConfirm {
		return httperr.BadRequest("passwords do not match")
	}
	if !utils.VerifyPassword(cu.PasswordHash, req.PasswordCurrent) {
		return httperr.Unauthorized("Your current password is wrong.")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.users.UpdatePassword(ctx, cu.ID, req.Password); err != nil {
		return err
	}
	u, err := h.users.GetByID(ctx, cu.ID)
	if err != nil {
		return err
	}
	access, err := h.issueSession(ctx, c, u)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"user": u, "accessToken": access})
}

// GetMe returns the logged-in user's profile.
func (h *AuthHandler) GetMe(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return httperr.Unauthorized("You are not logged in! Please log in to get access.")
	}
	return respond(c, http.StatusOK, echo.Map{"user": u})
}

var updateMeAllowed = []string{"name", "email", "photo"}

// UpdateMe edits profile fields.  Password changes must go through
// UpdateMyPassword so the rotation logic always runs.
func (h *AuthHandler) UpdateMe(c echo.Context) error {
	cu, ok := middleware.CurrentUser(c)
	if !ok {
		return httperr.Unauthorized("You are not logged in! Please log in to get access.")
	}
	var body map[string]any
	if err := c.Bind(&body); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	if _, has := body["password"]; has {
		return httperr.BadRequest("This route is not for password updates. Please use /updateMyPassword.")
	}
	if _, has := body["passwordConfirm"]; has {
		return httperr.BadRequest("This route is not for password updates. Please use /updateMyPassword.")
	}

	fields := make(map[string]any, len(updateMeAllowed))
	for _, k := range updateMeAllowed {
		if v, ok := body[k]; ok {
			fields[k] = v
		}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.users.UpdateByID(ctx, cu.ID, fields)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) || errors.Is(err, repository.ErrEmailExists) {
			return httperr.Conflict("email already in use")
		}
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"user": u})
}

// DeleteMe deactivates the account.  The row stays so bookings and reviews
// keep their author, but the user can no longer log in.
func (h *AuthHandler) DeleteMe(c echo.Context) error {
	cu, ok := middleware.CurrentUser(c)
	if !ok {
		return httperr.Unauthorized("You are not logged in! Please log in to get access.")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.users.Deactivate(ctx, cu.ID); err != nil {
		return err
	}
	if err := h.users.ClearRefresh(ctx, cu.ID); err != nil {
		return err
	}
	clearRefreshCookie(c)
	return c.NoContent(http.StatusNoContent)
}
