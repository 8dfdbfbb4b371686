package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking-api/internal/httperr"
	"github.com/iliyamo/tour-booking-api/internal/middleware"
	"github.com/iliyamo/tour-booking-api/internal/model"
	"github.com/iliyamo/tour-booking-api/internal/query"
	"github.com/iliyamo/tour-booking-api/internal/repository"
)

type fakeReviews struct {
	created []map[string]any
}

func (f *fakeReviews) Find(_ context.Context, _ *query.Query) ([]model.Review, error) {
	return nil, nil
}

func (f *fakeReviews) FindByID(_ context.Context, _ uint64) (model.Review, error) {
	return model.Review{}, repository.ErrNotFound
}

func (f *fakeReviews) Create(_ context.Context, fields map[string]any) (model.Review, error) {
	f.created = append(f.created, fields)
	rating, _ := fields["rating"].(float64)
	return model.Review{ID: 1, Rating: int(rating)}, nil
}

func (f *fakeReviews) UpdateByID(_ context.Context, _ uint64, _ map[string]any) (model.Review, error) {
	return model.Review{}, repository.ErrNotFound
}

func (f *fakeReviews) DeleteByID(_ context.Context, _ uint64) error {
	return repository.ErrNotFound
}

func nestedReviewCreate(t *testing.T, u model.User, store *fakeReviews) (*httptest.ResponseRecorder, error) {
	t.Helper()
	res := NewReviewResource(store)
	e := echo.New()

	req, rec := request(http.MethodPost, "/api/v1/tours/9/reviews",
		`{"rating":5,"review":"Amazing trip"}`)
	c := e.NewContext(req, rec)
	c.SetParamNames("tourId")
	c.SetParamValues("9")
	c.Set("user", u)

	guarded := middleware.RestrictTo(model.RoleUser)(res.Create)
	return rec, guarded(c)
}

func TestReviewCreateBindsTourAndAuthor(t *testing.T) {
	store := &fakeReviews{}
	rec, err := nestedReviewCreate(t, model.User{ID: 7, Role: model.RoleUser}, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected one insert, got %d", len(store.created))
	}
	fields := store.created[0]
	if fields["tour"] != uint64(9) {
		t.Fatalf("tour not bound from the route: %+v", fields)
	}
	if fields["user"] != uint64(7) {
		t.Fatalf("author not bound from the session: %+v", fields)
	}
}

func TestReviewCreateForbiddenForStaffRoles(t *testing.T) {
	for _, role := range []string{model.RoleAdmin, model.RoleGuide, model.RoleLeadGuide} {
		store := &fakeReviews{}
		_, err := nestedReviewCreate(t, model.User{ID: 7, Role: role}, store)
		var he *httperr.Error
		if !errors.As(err, &he) || he.Code != http.StatusForbidden {
			t.Fatalf("role %s: expected 403, got %v", role, err)
		}
		if len(store.created) != 0 {
			t.Fatalf("role %s: review persisted despite 403", role)
		}
	}
}
