package model

import "time"

// Tour mirrors the 'tours' table.  Prices are whole currency units; Stripe
// amounts are converted to cents at checkout time.
type Tour struct {
	ID             uint64    `json:"id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	DurationDays   int       `json:"duration"`
	MaxGroupSize   int       `json:"maxGroupSize"`
	Difficulty     string    `json:"difficulty"`
	Price          float64   `json:"price"`
	Summary        string    `json:"summary"`
	Description    string    `json:"description,omitempty"`
	ImageCover     string    `json:"imageCover,omitempty"`
	RatingsAverage float64   `json:"ratingsAverage"`
	RatingsQty     int       `json:"ratingsQuantity"`
	StartDate      time.Time `json:"startDate"`
	StartLocation  string    `json:"startLocation,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"-"`
}
