package model

import "time"

// Review mirrors the 'reviews' table.  One review per (tour, user) pair,
// enforced by a unique index.
type Review struct {
	ID        uint64    `json:"id"`
	TourID    uint64    `json:"tour"`
	UserID    uint64    `json:"user"`
	Rating    int       `json:"rating"`
	Review    string    `json:"review"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`
}
