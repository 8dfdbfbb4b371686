package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking-api/internal/httperr"
	"github.com/iliyamo/tour-booking-api/internal/model"
)

func runRestrict(t *testing.T, u *model.User, allowed ...string) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if u != nil {
		c.Set(userContextKey, *u)
	}
	next := func(c echo.Context) error { return c.NoContent(http.StatusCreated) }
	return RestrictTo(allowed...)(next)(c)
}

func TestRestrictToAllowsListedRole(t *testing.T) {
	u := model.User{ID: 1, Role: model.RoleUser}
	if err := runRestrict(t, &u, model.RoleUser); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRestrictToForbidsOtherRoles(t *testing.T) {
	for _, role := range []string{model.RoleAdmin, model.RoleGuide, model.RoleLeadGuide} {
		u := model.User{ID: 1, Role: role}
		err := runRestrict(t, &u, model.RoleUser)
		var he *httperr.Error
		if !errors.As(err, &he) || he.Code != http.StatusForbidden {
			t.Fatalf("role %s: expected 403, got %v", role, err)
		}
	}
}

func TestRestrictToForbidsMissingUser(t *testing.T) {
	err := runRestrict(t, nil, model.RoleAdmin)
	var he *httperr.Error
	if !errors.As(err, &he) || he.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}
