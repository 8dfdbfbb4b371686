package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/tour-booking-api/internal/model"
	"github.com/iliyamo/tour-booking-api/internal/query"
	"github.com/iliyamo/tour-booking-api/internal/utils"
)

// UserRepo persists users together with their single-slot refresh session
// and the password-reset fields.  At most one refresh token is valid per
// user: storing a new hash overwrites, and so invalidates, the previous one.
type UserRepo struct {
	DB   *sql.DB
	Cost int // bcrypt cost for password hashing
}

func NewUserRepo(db *sql.DB, cost int) *UserRepo { return &UserRepo{DB: db, Cost: cost} }

// Column set exposed to admin listings; the hash and token slots are never
// part of it.
var userListColumns = []string{"id", "name", "email", "role", "photo", "created_at"}

// userWriteColumns is the allow-list for generic create/update field maps.
var userWriteColumns = map[string]string{
	"name":  "name",
	"email": "email",
	"role":  "role",
	"photo": "photo",
}

const userSelect = `SELECT id, name, email, password_hash, role, photo, active,
	password_changed_at, refresh_token_hash, refresh_expires_at,
	password_reset_token, password_reset_expires, created_at, updated_at
	FROM users `

func (r *UserRepo) scanFull(row *sql.Row) (model.User, error) {
	var (
		u           model.User
		refreshHash sql.NullString
		resetHash   sql.NullString
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Photo,
		&u.Active, &u.PasswordChangedAt, &refreshHash, &u.RefreshExpiresAt,
		&resetHash, &u.ResetExpiresAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.RefreshTokenHash = refreshHash.String
	u.ResetTokenHash = resetHash.String
	return u, nil
}

// Register inserts a new account with a bcrypt-hashed password and returns
// the stored user.
func (r *UserRepo) Register(ctx context.Context, name, email, password, role string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, r.Cost)
	if err != nil {
		return model.User{}, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role) VALUES (?,?,?,?)",
		name, email, hash, role)
	if err != nil {
		if isDuplicate(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByEmail fetches a user by normalized email.  ErrNotFound covers both
// unknown and deactivated accounts so login cannot distinguish them.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanFull(r.DB.QueryRowContext(ctx, userSelect+"WHERE email=? AND active=1 LIMIT 1", email))
}

// GetByID fetches an active user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanFull(r.DB.QueryRowContext(ctx, userSelect+"WHERE id=? AND active=1 LIMIT 1", id))
}

// SetRefresh stores the hash of the newly issued refresh token, rotating
// out whatever was in the slot before (last writer wins).
func (r *UserRepo) SetRefresh(ctx context.Context, id uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=?, refresh_expires_at=? WHERE id=?",
		tokenHash, exp, id)
	return err
}

// ClearRefresh empties the session slot; any outstanding refresh token is
// rejected afterwards.
func (r *UserRepo) ClearRefresh(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=NULL, refresh_expires_at=NULL WHERE id=?", id)
	return err
}

// UpdatePassword replaces the hash and bumps password_changed_at, which
// permanently invalidates every token issued before this moment.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, password string) error {
	hash, err := utils.HashPassword(password, r.Cost)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, password_changed_at=NOW() WHERE id=?",
		hash, id)
	return err
}

// SetResetToken stores the sha256 of a freshly generated reset token with
// its expiry.  The raw token only travels by email.
func (r *UserRepo) SetResetToken(ctx context.Context, id uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_reset_token=?, password_reset_expires=? WHERE id=?",
		tokenHash, exp, id)
	return err
}

// ClearResetToken removes the reset fields after a successful reset or a
// failed email dispatch.
func (r *UserRepo) ClearResetToken(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_reset_token=NULL, password_reset_expires=NULL WHERE id=?", id)
	return err
}

// GetByResetTokenHash looks up the user holding an unexpired reset token.
func (r *UserRepo) GetByResetTokenHash(ctx context.Context, tokenHash string) (model.User, error) {
	return r.scanFull(r.DB.QueryRowContext(ctx,
		userSelect+"WHERE password_reset_token=? AND password_reset_expires > NOW() AND active=1 LIMIT 1",
		tokenHash))
}

// Deactivate soft-deletes the account; the self-service path never hard
// deletes.
func (r *UserRepo) Deactivate(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET active=0 WHERE id=?", id)
	return err
}

// --- generic store contract, used by the admin resource handlers ---

// Find executes a built query description against the users table.
func (r *UserRepo) Find(ctx context.Context, q *query.Query) ([]model.User, error) {
	stmt, args := q.Select("users", userListColumns)
	rows, err := r.DB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []model.User{}
	for rows.Next() {
		var u model.User
		dest := make([]any, len(cols))
		for i, c := range cols {
			dest[i] = userDest(&u, c)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// FindByID satisfies the store contract for admin getOne.
func (r *UserRepo) FindByID(ctx context.Context, id uint64) (model.User, error) {
	return r.GetByID(ctx, id)
}

// Create inserts a user from an allow-listed field map (admin path).  The
// password field is hashed before it touches the statement; the role must be
// one of the enumerated values.
func (r *UserRepo) Create(ctx context.Context, fields map[string]any) (model.User, error) {
	password, _ := fields["password"].(string)
	if password == "" {
		return model.User{}, errors.New("password is required")
	}
	role, _ := fields["role"].(string)
	if role == "" {
		role = model.RoleUser
	}
	if !model.ValidRole(role) {
		return model.User{}, errors.New("invalid role")
	}
	name, _ := fields["name"].(string)
	email, _ := fields["email"].(string)
	return r.Register(ctx, name, email, password, role)
}

// UpdateByID applies an allow-listed field map and returns the fresh row.
// Password changes never travel this path; they go through UpdatePassword so
// the changed-at invariant holds.
func (r *UserRepo) UpdateByID(ctx context.Context, id uint64, fields map[string]any) (model.User, error) {
	stmt, args := buildUpdate("users", userWriteColumns, fields, id)
	if stmt == "" {
		return r.GetByID(ctx, id)
	}
	if _, err := r.DB.ExecContext(ctx, stmt, args...); err != nil {
		if isDuplicate(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	return r.GetByID(ctx, id)
}

// DeleteByID removes the row outright (admin path; self-service deletion is
// the soft Deactivate).
func (r *UserRepo) DeleteByID(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
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

func userDest(u *model.User, col string) any {
	switch col {
	case "id":
		return &u.ID
	case "name":
		return &u.Name
	case "email":
		return &u.Email
	case "role":
		return &u.Role
	case "photo":
		return &u.Photo
	case "created_at":
		return &u.CreatedAt
	}
	return new(sql.RawBytes)
}
