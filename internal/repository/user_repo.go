package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gymslots/internal/db"
	apperrors "gymslots/internal/errors"
)

// UserRepository covers the login path. User administration is handled
// elsewhere; the core only needs lookups.
type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(database *sql.DB) *UserRepository {
	return &UserRepository{DB: database}
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	var u db.User
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, username, email, phone, password_hash, role, created_at, updated_at
		 FROM users WHERE email = $1 AND deleted_at IS NULL`, email,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Phone, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("user")
		}
		return nil, fmt.Errorf("error querying user by email: %w", err)
	}
	return &u, nil
}
