package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"murmur/internal/apperr"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, email, full_name, password, profile_pic, status, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Password, &u.ProfilePic, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, err
	}
	return u, nil
}

func (r *Repository) Create(ctx context.Context, u *User) (*User, error) {
	query := `INSERT INTO users (email, full_name, password)
              VALUES ($1, $2, $3)
              RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, query, u.Email, u.FullName, u.Password))
}

func (r *Repository) ByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *Repository) ByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *Repository) NameTaken(ctx context.Context, fullName string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE full_name = $1)`, fullName).Scan(&exists)
	return exists, err
}

func (r *Repository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

func (r *Repository) All(ctx context.Context) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY full_name`
	return r.queryUsers(ctx, query)
}

func (r *Repository) ByIDs(ctx context.Context, ids []int64) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	// pgx's stdlib driver encodes the slice as a Postgres array.
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`
	return r.queryUsers(ctx, query, ids)
}

func (r *Repository) queryUsers(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *Repository) UpdateProfile(ctx context.Context, id int64, profilePic, status *string) (*User, error) {
	query := `UPDATE users
              SET profile_pic = COALESCE($2, profile_pic),
                  status = COALESCE($3, status),
                  updated_at = now()
              WHERE id = $1
              RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, query, id, profilePic, status))
}

func (r *Repository) SetOTP(ctx context.Context, id int64, otpHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET otp_hash = $2, otp_expires_at = $3, updated_at = now() WHERE id = $1`,
		id, otpHash, expiresAt)
	return err
}

// OTPState returns the pending OTP hash and its expiry, if any.
func (r *Repository) OTPState(ctx context.Context, id int64) (string, *time.Time, error) {
	var hash sql.NullString
	var expires sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT otp_hash, otp_expires_at FROM users WHERE id = $1`, id).Scan(&hash, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, apperr.NotFound("user not found")
		}
		return "", nil, err
	}
	if !hash.Valid || !expires.Valid {
		return "", nil, nil
	}
	return hash.String, &expires.Time, nil
}

// ResetPassword swaps the password hash and clears any pending OTP.
func (r *Repository) ResetPassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password = $2, otp_hash = NULL, otp_expires_at = NULL, updated_at = now() WHERE id = $1`,
		id, passwordHash)
	return err
}
