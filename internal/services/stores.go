package services

import (
	"context"
	"time"

	"github.com/xevcp/backend/internal/models"
	"github.com/xevcp/backend/internal/repository"
)

// BookingStore is the booking persistence the HTTP services need.
type BookingStore interface {
	Create(ctx context.Context, b *models.Booking) error
	FindByCode(ctx context.Context, code string) (*models.Booking, error)
	List(ctx context.Context) ([]models.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]models.Booking, error)
	CheckIn(ctx context.Context, bookingID, staffID string, at time.Time) error
}

type RouteStore interface {
	List(ctx context.Context) ([]models.Route, error)
	Get(ctx context.Context, id string) (*models.Route, error)
	Create(ctx context.Context, rt *models.Route) error
	Update(ctx context.Context, id string, u repository.RouteUpdate) (*models.Route, error)
	Delete(ctx context.Context, id string) error
}

type UserStore interface {
	Create(ctx context.Context, u *models.User, passwordHash string) error
	FindByEmail(ctx context.Context, email string) (*models.User, string, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

var (
	_ BookingStore = (*repository.BookingRepository)(nil)
	_ RouteStore   = (*repository.RouteRepository)(nil)
	_ UserStore    = (*repository.UserRepository)(nil)
)
