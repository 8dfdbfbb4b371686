package handler

import "github.com/iliyamo/tour-booking-api/internal/model"

var userQueryFields = map[string]string{
	"id":        "id",
	"name":      "name",
	"email":     "email",
	"role":      "role",
	"createdAt": "created_at",
}

var userWriteAllowed = []string{"name", "email", "role", "photo", "password"}

// NewUserResource wires the admin CRUD handlers for users.
func NewUserResource(store Store[model.User]) *Resource[model.User] {
	return NewResource(store, userWriteAllowed, userQueryFields)
}
