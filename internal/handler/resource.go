package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking-api/internal/httperr"
	"github.com/iliyamo/tour-booking-api/internal/query"
	"github.com/iliyamo/tour-booking-api/internal/repository"
)

// Store is the storage capability a resource needs: list through a built
// query description, point reads, and allow-listed writes.  Each repository
// implements it for its entity.
type Store[T any] interface {
	Find(ctx context.Context, q *query.Query) ([]T, error)
	FindByID(ctx context.Context, id uint64) (T, error)
	Create(ctx context.Context, fields map[string]any) (T, error)
	UpdateByID(ctx context.Context, id uint64, fields map[string]any) (T, error)
	DeleteByID(ctx context.Context, id uint64) error
}

// Resource generates the uniform CRUD operations for one entity type.  The
// write allow-list and the query field map are fixed values bound at
// startup, never derived from the incoming payload.
type Resource[T any] struct {
	store  Store[T]
	allow  []string          // JSON fields permitted into create/update
	fields map[string]string // query parameter -> column, for listing

	parentParam  string // route param holding a parent id, e.g. "tourId"
	parentColumn string // column the parent id filters on, e.g. "tour_id"

	// prepare, when set, amends the filtered field map before a create;
	// used to bind nested-route and current-user ids.
	prepare func(c echo.Context, fields map[string]any) error
}

// NewResource builds the CRUD handler set for an entity.
func NewResource[T any](store Store[T], allow []string, fields map[string]string) *Resource[T] {
	return &Resource[T]{store: store, allow: allow, fields: fields}
}

// WithParent makes List honor a parent-route id, e.g. reviews nested under
// /tours/:tourId.
func (r *Resource[T]) WithParent(param, column string) *Resource[T] {
	r.parentParam = param
	r.parentColumn = column
	return r
}

// WithPrepare installs a create hook run after allow-list filtering.
func (r *Resource[T]) WithPrepare(fn func(c echo.Context, fields map[string]any) error) *Resource[T] {
	r.prepare = fn
	return r
}

// filterAllowed keeps only the allow-listed fields from the client body.
func (r *Resource[T]) filterAllowed(body map[string]any) map[string]any {
	out := make(map[string]any, len(r.allow))
	for _, k := range r.allow {
		if v, ok := body[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Create inserts a record from the allow-list-filtered body.
func (r *Resource[T]) Create(c echo.Context) error {
	var body map[string]any
	if err := c.Bind(&body); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	fields := r.filterAllowed(body)
	if r.prepare != nil {
		if err := r.prepare(c, fields); err != nil {
			return err
		}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	doc, err := r.store.Create(ctx, fields)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) || errors.Is(err, repository.ErrEmailExists) {
			return httperr.Conflict(err.Error())
		}
		return err
	}
	return respond(c, http.StatusCreated, doc)
}

// List runs the query feature pipeline over the collection, optionally
// pre-filtered by the parent-route id.
func (r *Resource[T]) List(c echo.Context) error {
	q := query.New(c.QueryParams(), r.fields).
		Filter().Sort().LimitFields().Paginate().Query()

	if r.parentParam != "" {
		if raw := c.Param(r.parentParam); raw != "" {
			parentID, err := paramID(c, r.parentParam)
			if err != nil {
				return err
			}
			q.And(r.parentColumn+" = ?", parentID)
		}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	docs, err := r.store.Find(ctx, q)
	if err != nil {
		return err
	}
	return respondList(c, len(docs), docs)
}

// GetOne fetches a record by id.
func (r *Resource[T]) GetOne(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	doc, err := r.store.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return httperr.NotFound("No document found with that ID")
	}
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, doc)
}

// UpdateOne applies the allow-list-filtered body to a record by id.
func (r *Resource[T]) UpdateOne(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var body map[string]any
	if err := c.Bind(&body); err != nil {
		return httperr.BadRequest("invalid request body")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	doc, err := r.store.UpdateByID(ctx, id, r.filterAllowed(body))
	if errors.Is(err, repository.ErrNotFound) {
		return httperr.NotFound("No document found with that ID")
	}
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) || errors.Is(err, repository.ErrEmailExists) {
			return httperr.Conflict(err.Error())
		}
		return err
	}
	return respond(c, http.StatusOK, doc)
}

// DeleteOne removes a record by id; success is 204 with no body.
func (r *Resource[T]) DeleteOne(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := r.store.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return httperr.NotFound("No document found with that ID")
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
