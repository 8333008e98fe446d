package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xevcp/backend/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user with an already hashed password. A taken email
// returns ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, u *models.User, passwordHash string) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	u.Email = strings.ToLower(u.Email)
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password, name, phone, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, passwordHash, u.Name, u.Phone, u.Role, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByEmail returns the user and the stored password hash.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, string, error) {
	var u models.User
	var hash string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, phone, role, created_at, updated_at, password
		FROM users
		WHERE email = $1`, strings.ToLower(email)).Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Role,
		&u.CreatedAt, &u.UpdatedAt, &hash)
	if err != nil {
		return nil, "", notFound(err)
	}
	return &u, hash, nil
}

// List returns all users with their booking counts, newest first.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.email, u.name, u.phone, u.role, u.created_at, u.updated_at,
		       (SELECT COUNT(*) FROM bookings b WHERE b.user_id = u.id)
		FROM users u
		ORDER BY u.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Role, &u.CreatedAt, &u.UpdatedAt, &u.BookingCount); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, `
		UPDATE users SET role = $1, updated_at = $2
		WHERE id = $3
		RETURNING id, email, name, phone, role, created_at, updated_at`,
		role, time.Now(), id).Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// Delete removes a user who never booked. Users with bookings return
// ErrHasBookings.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var bookings int
		err := tx.QueryRowContext(ctx, `
			SELECT (SELECT COUNT(*) FROM bookings WHERE user_id = u.id)
			FROM users u
			WHERE u.id = $1
			FOR UPDATE`, id).Scan(&bookings)
		if err != nil {
			return notFound(err)
		}
		if bookings > 0 {
			return ErrHasBookings
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete user %s: %w", id, err)
		}
		return nil
	})
}
