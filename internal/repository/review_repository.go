package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/tour-booking-api/internal/model"
	"github.com/iliyamo/tour-booking-api/internal/query"
)

// ReviewRepo persists reviews; the unique (tour_id, user_id) index enforces
// one review per user per tour.
type ReviewRepo struct{ DB *sql.DB }

func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{DB: db} }

var reviewListColumns = []string{"id", "tour_id", "user_id", "rating", "review", "created_at"}

var reviewWriteColumns = map[string]string{
	"tour":   "tour_id",
	"user":   "user_id",
	"rating": "rating",
	"review": "review",
}

func reviewDest(rv *model.Review, col string) any {
	switch col {
	case "id":
		return &rv.ID
	case "tour_id":
		return &rv.TourID
	case "user_id":
		return &rv.UserID
	case "rating":
		return &rv.Rating
	case "review":
		return &rv.Review
	case "created_at":
		return &rv.CreatedAt
	}
	return new(sql.RawBytes)
}

// Find executes a built query description against the reviews table.
func (r *ReviewRepo) Find(ctx context.Context, q *query.Query) ([]model.Review, error) {
	stmt, args := q.Select("reviews", reviewListColumns)
	rows, err := r.DB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []model.Review{}
	for rows.Next() {
		var rv model.Review
		dest := make([]any, len(cols))
		for i, c := range cols {
			dest[i] = reviewDest(&rv, c)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// FindByID fetches a single review.
func (r *ReviewRepo) FindByID(ctx context.Context, id uint64) (model.Review, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+strings.Join(reviewListColumns, ", ")+" FROM reviews WHERE id=? LIMIT 1", id)
	var rv model.Review
	dest := make([]any, len(reviewListColumns))
	for i, c := range reviewListColumns {
		dest[i] = reviewDest(&rv, c)
	}
	err := row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Review{}, ErrNotFound
	}
	if err != nil {
		return model.Review{}, err
	}
	return rv, nil
}

// Create inserts a review; ErrDuplicate when the user already reviewed the
// tour.
func (r *ReviewRepo) Create(ctx context.Context, fields map[string]any) (model.Review, error) {
	stmt, args := buildInsert("reviews", reviewWriteColumns, fields)
	if stmt == "" {
		return model.Review{}, errors.New("no valid fields")
	}
	res, err := r.DB.ExecContext(ctx, stmt, args...)
	if err != nil {
		if isDuplicate(err) {
			return model.Review{}, ErrDuplicate
		}
		return model.Review{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Review{}, err
	}
	return r.FindByID(ctx, uint64(id))
}

// UpdateByID applies the rating/review allow-list (tour and user bindings
// are immutable after creation).
func (r *ReviewRepo) UpdateByID(ctx context.Context, id uint64, fields map[string]any) (model.Review, error) {
	delete(fields, "tour")
	delete(fields, "user")
	stmt, args := buildUpdate("reviews", reviewWriteColumns, fields, id)
	if stmt == "" {
		return r.FindByID(ctx, id)
	}
	if _, err := r.DB.ExecContext(ctx, stmt, args...); err != nil {
		return model.Review{}, err
	}
	return r.FindByID(ctx, id)
}

// DeleteByID removes a review; ErrNotFound when nothing was deleted.
func (r *ReviewRepo) DeleteByID(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM reviews WHERE id=?", id)
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
