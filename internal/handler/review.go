package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking-api/internal/middleware"
	"github.com/iliyamo/tour-booking-api/internal/model"
)

var reviewQueryFields = map[string]string{
	"id":        "id",
	"tour":      "tour_id",
	"user":      "user_id",
	"rating":    "rating",
	"createdAt": "created_at",
}

var reviewWriteAllowed = []string{"tour", "user", "rating", "review"}

// NewReviewResource wires the review CRUD handlers.  The nested route binds
// the tour from the path and the author from the session, so a client body
// can never attach a review to someone else.
func NewReviewResource(store Store[model.Review]) *Resource[model.Review] {
	return NewResource(store, reviewWriteAllowed, reviewQueryFields).
		WithParent("tourId", "tour_id").
		WithPrepare(func(c echo.Context, fields map[string]any) error {
			if raw := c.Param("tourId"); raw != "" {
				tourID, err := paramID(c, "tourId")
				if err != nil {
					return err
				}
				fields["tour"] = tourID
			}
			if u, ok := middleware.CurrentUser(c); ok {
				fields["user"] = u.ID
			}
			return nil
		})
}
