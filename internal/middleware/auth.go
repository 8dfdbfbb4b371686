package middleware // middleware provides shared request processing for handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking-api/internal/httperr"
	"github.com/iliyamo/tour-booking-api/internal/model"
	"github.com/iliyamo/tour-booking-api/internal/repository"
	"github.com/iliyamo/tour-booking-api/internal/token"
)

// RefreshCookie is the name of the HttpOnly cookie carrying the refresh
// token.  Access tokens travel only in the Authorization header.
const RefreshCookie = "refreshToken"

// AccessTokenHeader is the response header carrying a silently rotated
// access token when a request was authorized via the refresh path.
const AccessTokenHeader = "X-Access-Token"

// userContextKey is where Protect stores the resolved user.
const userContextKey = "user"

// UserResolver loads the current account for a verified token subject.
// *repository.UserRepo satisfies it; tests substitute fakes.
type UserResolver interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// CurrentUser returns the user attached by Protect.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(userContextKey).(model.User)
	return u, ok
}

// Protect authorizes a request through a sequential check pipeline:
//
//  1. A Bearer access token must be presented; absence is a 401.
//  2. If the access token verifies, the user is resolved from its subject.
//  3. If it is invalid or expired, the refresh cookie is tried against the
//     refresh secret; its hash must also match the persisted session slot,
//     so logout and rotation invalidate outstanding cookies.
//  4. A resolved user must still exist and be active.
//  5. Any token issued before the most recent password change is rejected,
//     even if unexpired.
//  6. On refresh-path success a new access token is minted and attached as
//     the X-Access-Token response header; the caller never re-logs-in.
//
// The resolved user is stored in the echo context for handlers and
// RestrictTo.  Expected failures surface as operational 401s.
func Protect(iss token.Issuer, users UserResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return httperr.Unauthorized("You are not logged in! Please log in to get access.")
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			if sess, err := iss.ParseAccess(raw); err == nil {
				u, err := resolveUser(c, users, sess)
				if err != nil {
					return err
				}
				c.Set(userContextKey, u)
				return next(c)
			}

			// Access token invalid or expired: try the refresh cookie.
			cookie, err := c.Cookie(RefreshCookie)
			if err != nil || cookie.Value == "" {
				return httperr.Unauthorized("You are not logged in! Please log in to get access.")
			}
			sess, err := iss.ParseRefresh(cookie.Value)
			if err != nil {
				return httperr.Unauthorized("You are not logged in! Please log in to get access.")
			}
			u, err := resolveUser(c, users, sess)
			if err != nil {
				return err
			}
			if token.Hash(cookie.Value) != u.RefreshTokenHash {
				// Rotated away or logged out.
				return httperr.Unauthorized("You are not logged in! Please log in to get access.")
			}

			access, err := iss.Access(u)
			if err != nil {
				return err
			}
			c.Response().Header().Set(AccessTokenHeader, access.Value)
			c.Set(userContextKey, u)
			return next(c)
		}
	}
}

// resolveUser loads the token subject and applies the deleted-account and
// password-changed gates shared by both token paths.
func resolveUser(c echo.Context, users UserResolver, sess token.Session) (model.User, error) {
	u, err := users.GetByID(c.Request().Context(), sess.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, httperr.Unauthorized("The user belonging to this token does no longer exist.")
	}
	if err != nil {
		return model.User{}, err
	}
	if u.ChangedPasswordAfter(sess.IssuedAt) {
		return model.User{}, httperr.Unauthorized("User recently changed password! Please log in again.")
	}
	return u, nil
}

