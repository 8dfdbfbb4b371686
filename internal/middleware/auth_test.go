package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking-api/internal/config"
	"github.com/iliyamo/tour-booking-api/internal/httperr"
	"github.com/iliyamo/tour-booking-api/internal/model"
	"github.com/iliyamo/tour-booking-api/internal/repository"
	"github.com/iliyamo/tour-booking-api/internal/token"
)

type fakeUsers struct {
	users map[uint64]model.User
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func liveIssuer() token.Issuer {
	return token.NewIssuer(config.Config{
		AccessSecret:   "access-secret-for-tests",
		RefreshSecret:  "refresh-secret-for-tests",
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
	})
}

// expiredAccessIssuer shares secrets with liveIssuer but mints access tokens
// that are already expired.
func expiredAccessIssuer() token.Issuer {
	return token.NewIssuer(config.Config{
		AccessSecret:   "access-secret-for-tests",
		RefreshSecret:  "refresh-secret-for-tests",
		AccessTTLMin:   -15,
		RefreshTTLDays: 7,
	})
}

func runProtect(t *testing.T, iss token.Issuer, users UserResolver, mutate func(*http.Request)) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	next := func(c echo.Context) error {
		u, ok := CurrentUser(c)
		if !ok {
			t.Fatal("user not attached to context")
		}
		return c.JSON(http.StatusOK, u)
	}
	return rec, Protect(iss, users)(next)(c)
}

func wantUnauthorized(t *testing.T, err error, message string) {
	t.Helper()
	var he *httperr.Error
	if !errors.As(err, &he) {
		t.Fatalf("expected operational error, got %v", err)
	}
	if he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", he.Code)
	}
	if message != "" && he.Message != message {
		t.Fatalf("unexpected message %q", he.Message)
	}
}

func TestProtectRejectsMissingCredentials(t *testing.T) {
	_, err := runProtect(t, liveIssuer(), &fakeUsers{}, nil)
	wantUnauthorized(t, err, "You are not logged in! Please log in to get access.")
}

func TestProtectAcceptsValidAccessToken(t *testing.T) {
	iss := liveIssuer()
	u := model.User{ID: 7, Email: "ada@example.com", Role: model.RoleUser}
	access, _ := iss.Access(u)

	rec, err := runProtect(t, iss, &fakeUsers{users: map[uint64]model.User{7: u}}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+access.Value)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(AccessTokenHeader); got != "" {
		t.Fatalf("access path should not rotate tokens, got header %q", got)
	}
}

func TestProtectRotatesViaRefreshCookie(t *testing.T) {
	live := liveIssuer()
	expired := expiredAccessIssuer()

	u := model.User{ID: 7, Email: "ada@example.com", Role: model.RoleUser}
	staleAccess, _ := expired.Access(u)
	refresh, _ := live.Refresh(u)
	u.RefreshTokenHash = token.Hash(refresh.Value)

	rec, err := runProtect(t, live, &fakeUsers{users: map[uint64]model.User{7: u}}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+staleAccess.Value)
		r.AddCookie(&http.Cookie{Name: RefreshCookie, Value: refresh.Value})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	minted := rec.Header().Get(AccessTokenHeader)
	if minted == "" {
		t.Fatal("expected a rotated access token header")
	}
	if _, perr := live.ParseAccess(minted); perr != nil {
		t.Fatalf("rotated token does not verify: %v", perr)
	}
}

func TestProtectRejectsRevokedRefreshToken(t *testing.T) {
	live := liveIssuer()
	expired := expiredAccessIssuer()

	u := model.User{ID: 7, Email: "ada@example.com", Role: model.RoleUser}
	staleAccess, _ := expired.Access(u)
	refresh, _ := live.Refresh(u)
	// Slot cleared by logout or overwritten by a newer login.
	u.RefreshTokenHash = ""

	_, err := runProtect(t, live, &fakeUsers{users: map[uint64]model.User{7: u}}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+staleAccess.Value)
		r.AddCookie(&http.Cookie{Name: RefreshCookie, Value: refresh.Value})
	})
	wantUnauthorized(t, err, "You are not logged in! Please log in to get access.")
}

func TestProtectRejectsDeletedUser(t *testing.T) {
	iss := liveIssuer()
	access, _ := iss.Access(model.User{ID: 99, Email: "gone@example.com"})

	_, err := runProtect(t, iss, &fakeUsers{}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+access.Value)
	})
	wantUnauthorized(t, err, "The user belonging to this token does no longer exist.")
}

func TestProtectRejectsTokenIssuedBeforePasswordChange(t *testing.T) {
	iss := liveIssuer()
	u := model.User{ID: 7, Email: "ada@example.com", Role: model.RoleUser}
	access, _ := iss.Access(u)

	changed := u
	changed.PasswordChangedAt.Valid = true
	changed.PasswordChangedAt.Time = access.Exp // well after the iat

	_, err := runProtect(t, iss, &fakeUsers{users: map[uint64]model.User{7: changed}}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+access.Value)
	})
	wantUnauthorized(t, err, "User recently changed password! Please log in again.")
}
