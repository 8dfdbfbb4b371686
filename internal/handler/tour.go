package handler

import "github.com/iliyamo/tour-booking-api/internal/model"

// tourQueryFields maps client query parameters to tour columns.
var tourQueryFields = map[string]string{
	"id":              "id",
	"name":            "name",
	"duration":        "duration_days",
	"maxGroupSize":    "max_group_size",
	"difficulty":      "difficulty",
	"price":           "price",
	"ratingsAverage":  "ratings_average",
	"ratingsQuantity": "ratings_quantity",
	"startDate":       "start_date",
	"createdAt":       "created_at",
}

var tourWriteAllowed = []string{
	"name", "slug", "duration", "maxGroupSize", "difficulty", "price",
	"summary", "description", "imageCover", "startDate", "startLocation",
}

// NewTourResource wires the CRUD handlers for tours.
func NewTourResource(store Store[model.Tour]) *Resource[model.Tour] {
	return NewResource(store, tourWriteAllowed, tourQueryFields)
}
