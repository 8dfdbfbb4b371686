package model

import "time"

// Payment providers accepted by the checkout bridge.
const (
	ProviderStripe = "stripe"
	ProviderChapa  = "chapa"
)

// Booking mirrors the 'bookings' table.  Stripe bookings are inserted with
// Paid=true by the webhook; Chapa bookings start unpaid with a TxRef and are
// marked paid after verify-by-reference.
type Booking struct {
	ID        uint64    `json:"id"`
	TourID    uint64    `json:"tour"`
	UserID    uint64    `json:"user"`
	Price     float64   `json:"price"`
	Paid      bool      `json:"paid"`
	Provider  string    `json:"provider"`
	TxRef     string    `json:"txRef,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`
}
