package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/tour-booking-api/internal/model"
	"github.com/iliyamo/tour-booking-api/internal/query"
)

// TourRepo persists the bookable catalog.
type TourRepo struct{ DB *sql.DB }

func NewTourRepo(db *sql.DB) *TourRepo { return &TourRepo{DB: db} }

var tourListColumns = []string{
	"id", "name", "slug", "duration_days", "max_group_size", "difficulty",
	"price", "summary", "description", "image_cover", "ratings_average",
	"ratings_quantity", "start_date", "start_location", "created_at",
}

// tourWriteColumns is the create/update allow-list, keyed by client JSON
// field names.
var tourWriteColumns = map[string]string{
	"name":          "name",
	"slug":          "slug",
	"duration":      "duration_days",
	"maxGroupSize":  "max_group_size",
	"difficulty":    "difficulty",
	"price":         "price",
	"summary":       "summary",
	"description":   "description",
	"imageCover":    "image_cover",
	"startDate":     "start_date",
	"startLocation": "start_location",
}

func tourDest(t *model.Tour, col string) any {
	switch col {
	case "id":
		return &t.ID
	case "name":
		return &t.Name
	case "slug":
		return &t.Slug
	case "duration_days":
		return &t.DurationDays
	case "max_group_size":
		return &t.MaxGroupSize
	case "difficulty":
		return &t.Difficulty
	case "price":
		return &t.Price
	case "summary":
		return &t.Summary
	case "description":
		return &t.Description
	case "image_cover":
		return &t.ImageCover
	case "ratings_average":
		return &t.RatingsAverage
	case "ratings_quantity":
		return &t.RatingsQty
	case "start_date":
		return &t.StartDate
	case "start_location":
		return &t.StartLocation
	case "created_at":
		return &t.CreatedAt
	}
	return new(sql.RawBytes)
}

// Find executes a built query description; projection and pagination were
// decided by the pipeline, this only runs the statement and scans.
func (r *TourRepo) Find(ctx context.Context, q *query.Query) ([]model.Tour, error) {
	stmt, args := q.Select("tours", tourListColumns)
	rows, err := r.DB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []model.Tour{}
	for rows.Next() {
		var t model.Tour
		dest := make([]any, len(cols))
		for i, c := range cols {
			dest[i] = tourDest(&t, c)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// FindByID fetches a single tour.
func (r *TourRepo) FindByID(ctx context.Context, id uint64) (model.Tour, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+strings.Join(tourListColumns, ", ")+" FROM tours WHERE id=? LIMIT 1", id)
	var t model.Tour
	dest := make([]any, len(tourListColumns))
	for i, c := range tourListColumns {
		dest[i] = tourDest(&t, c)
	}
	err := row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Tour{}, ErrNotFound
	}
	if err != nil {
		return model.Tour{}, err
	}
	return t, nil
}

// Create inserts a tour from an allow-listed field map.
func (r *TourRepo) Create(ctx context.Context, fields map[string]any) (model.Tour, error) {
	stmt, args := buildInsert("tours", tourWriteColumns, fields)
	if stmt == "" {
		return model.Tour{}, errors.New("no valid fields")
	}
	res, err := r.DB.ExecContext(ctx, stmt, args...)
	if err != nil {
		if isDuplicate(err) {
			return model.Tour{}, ErrDuplicate
		}
		return model.Tour{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Tour{}, err
	}
	return r.FindByID(ctx, uint64(id))
}

// UpdateByID applies an allow-listed field map and returns the fresh row;
// ErrNotFound when the id does not exist.
func (r *TourRepo) UpdateByID(ctx context.Context, id uint64, fields map[string]any) (model.Tour, error) {
	stmt, args := buildUpdate("tours", tourWriteColumns, fields, id)
	if stmt == "" {
		return r.FindByID(ctx, id)
	}
	if _, err := r.DB.ExecContext(ctx, stmt, args...); err != nil {
		if isDuplicate(err) {
			return model.Tour{}, ErrDuplicate
		}
		return model.Tour{}, err
	}
	return r.FindByID(ctx, id)
}

// DeleteByID removes a tour; ErrNotFound when nothing was deleted.
func (r *TourRepo) DeleteByID(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM tours WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
