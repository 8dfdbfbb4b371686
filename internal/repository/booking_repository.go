package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/tour-booking-api/internal/model"
	"github.com/iliyamo/tour-booking-api/internal/query"
)

// BookingRepo persists bookings.  Stripe bookings arrive paid from the
// webhook; Chapa bookings start pending with a tx_ref and are marked paid
// after verification.
type BookingRepo struct{ DB *sql.DB }

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{DB: db} }

var bookingListColumns = []string{
	"id", "tour_id", "user_id", "price", "paid", "provider", "tx_ref", "created_at",
}

var bookingWriteColumns = map[string]string{
	"tour":     "tour_id",
	"user":     "user_id",
	"price":    "price",
	"paid":     "paid",
	"provider": "provider",
}

func bookingDest(b *model.Booking, col string, txRef *sql.NullString) any {
	switch col {
	case "id":
		return &b.ID
	case "tour_id":
		return &b.TourID
	case "user_id":
		return &b.UserID
	case "price":
		return &b.Price
	case "paid":
		return &b.Paid
	case "provider":
		return &b.Provider
	case "tx_ref":
		return txRef
	case "created_at":
		return &b.CreatedAt
	}
	return new(sql.RawBytes)
}

func (r *BookingRepo) scanRows(rows *sql.Rows) ([]model.Booking, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []model.Booking{}
	for rows.Next() {
		var (
			b     model.Booking
			txRef sql.NullString
		)
		dest := make([]any, len(cols))
		for i, c := range cols {
			dest[i] = bookingDest(&b, c, &txRef)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		b.TxRef = txRef.String
		out = append(out, b)
	}
	return out, rows.Err()
}

// Find executes a built query description against the bookings table.
func (r *BookingRepo) Find(ctx context.Context, q *query.Query) ([]model.Booking, error) {
	stmt, args := q.Select("bookings", bookingListColumns)
	rows, err := r.DB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanRows(rows)
}

// FindByID fetches a single booking.
func (r *BookingRepo) FindByID(ctx context.Context, id uint64) (model.Booking, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+strings.Join(bookingListColumns, ", ")+" FROM bookings WHERE id=? LIMIT 1", id)
	if err != nil {
		return model.Booking{}, err
	}
	defer rows.Close()
	out, err := r.scanRows(rows)
	if err != nil {
		return model.Booking{}, err
	}
	if len(out) == 0 {
		return model.Booking{}, ErrNotFound
	}
	return out[0], nil
}

// ListByUser returns a user's own bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+strings.Join(bookingListColumns, ", ")+
			" FROM bookings WHERE user_id=? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanRows(rows)
}

// InsertPaid records a confirmed booking (Stripe webhook path).
func (r *BookingRepo) InsertPaid(ctx context.Context, tourID, userID uint64, price float64, provider string) (model.Booking, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO bookings (tour_id, user_id, price, paid, provider) VALUES (?,?,?,1,?)",
		tourID, userID, price, provider)
	if err != nil {
		return model.Booking{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Booking{}, err
	}
	return r.FindByID(ctx, uint64(id))
}

// InsertPending records an unpaid booking carrying the provider transaction
// reference (Chapa initialization path).
func (r *BookingRepo) InsertPending(ctx context.Context, tourID, userID uint64, price float64, provider, txRef string) (model.Booking, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO bookings (tour_id, user_id, price, paid, provider, tx_ref) VALUES (?,?,?,0,?,?)",
		tourID, userID, price, provider, txRef)
	if err != nil {
		if isDuplicate(err) {
			return model.Booking{}, ErrDuplicate
		}
		return model.Booking{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Booking{}, err
	}
	return r.FindByID(ctx, uint64(id))
}

// MarkPaidByTxRef flips the paid flag after provider verification and
// returns the booking.  ErrNotFound when the reference is unknown.
func (r *BookingRepo) MarkPaidByTxRef(ctx context.Context, txRef string) (model.Booking, error) {
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE bookings SET paid=1 WHERE tx_ref=?", txRef); err != nil {
		return model.Booking{}, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+strings.Join(bookingListColumns, ", ")+" FROM bookings WHERE tx_ref=? LIMIT 1", txRef)
	if err != nil {
		return model.Booking{}, err
	}
	defer rows.Close()
	out, err := r.scanRows(rows)
	if err != nil {
		return model.Booking{}, err
	}
	if len(out) == 0 {
		return model.Booking{}, ErrNotFound
	}
	return out[0], nil
}

// Create inserts a booking from an allow-listed field map (admin path).
func (r *BookingRepo) Create(ctx context.Context, fields map[string]any) (model.Booking, error) {
	stmt, args := buildInsert("bookings", bookingWriteColumns, fields)
	if stmt == "" {
		return model.Booking{}, errors.New("no valid fields")
	}
	res, err := r.DB.ExecContext(ctx, stmt, args...)
	if err != nil {
		return model.Booking{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Booking{}, err
	}
	return r.FindByID(ctx, uint64(id))
}

// UpdateByID applies an allow-listed field map and returns the fresh row.
func (r *BookingRepo) UpdateByID(ctx context.Context, id uint64, fields map[string]any) (model.Booking, error) {
	stmt, args := buildUpdate("bookings", bookingWriteColumns, fields, id)
	if stmt == "" {
		return r.FindByID(ctx, id)
	}
	if _, err := r.DB.ExecContext(ctx, stmt, args...); err != nil {
		return model.Booking{}, err
	}
	return r.FindByID(ctx, id)
}

// DeleteByID removes a booking; ErrNotFound when nothing was deleted.
func (r *BookingRepo) DeleteByID(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM bookings WHERE id=?", id)
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
