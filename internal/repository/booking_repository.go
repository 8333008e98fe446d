package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xevcp/backend/internal/models"
)

type BookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `b.id, b.booking_code, b.user_id, b.route_id, b.customer_name, b.customer_phone,
	COALESCE(b.customer_email, ''), b.date, b.departure_time, b.seats, b.total_price, b.status,
	b.checked_in, b.checked_in_at, b.checked_in_by, b.created_at, b.updated_at,
	r.from_city, r.to_city, r.bus_type, r.duration, r.distance`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner, extra ...any) (*models.Booking, error) {
	var b models.Booking
	var route models.RouteSummary
	dest := []any{
		&b.ID, &b.BookingCode, &b.UserID, &b.RouteID, &b.CustomerName, &b.CustomerPhone,
		&b.CustomerEmail, &b.Date, &b.DepartureTime, &b.Seats, &b.TotalPrice, &b.Status,
		&b.CheckedIn, &b.CheckedInAt, &b.CheckedInBy, &b.CreatedAt, &b.UpdatedAt,
		&route.From, &route.To, &route.BusType, &route.Duration, &route.Distance,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	b.Route = &route
	return &b, nil
}

// Create inserts a PENDING booking. A booking code collision returns
// ErrDuplicate so the caller can retry with a fresh code.
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.Status == "" {
		b.Status = models.BookingPending
	}
	now := time.Now()
	b.CreatedAt, b.UpdatedAt = now, now

	var email any
	if b.CustomerEmail != "" {
		email = b.CustomerEmail
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bookings (id, booking_code, user_id, route_id, customer_name, customer_phone, customer_email,
			date, departure_time, seats, total_price, status, checked_in, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, false, $13, $14)`,
		b.ID, b.BookingCode, b.UserID, b.RouteID, b.CustomerName, b.CustomerPhone, email,
		b.Date, b.DepartureTime, b.Seats, b.TotalPrice, b.Status, b.CreatedAt, b.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// FindByCode loads a booking with its route and payment.
func (r *BookingRepository) FindByCode(ctx context.Context, code string) (*models.Booking, error) {
	var (
		payID     sql.NullString
		payMethod sql.NullString
		payStatus sql.NullString
		payAmount sql.NullInt64
		paidAt    *time.Time
	)

	row := r.db.QueryRowContext(ctx, `
		SELECT `+bookingColumns+`,
		       p.id, p.amount, p.method, p.status, p.paid_at
		FROM bookings b
		JOIN routes r ON r.id = b.route_id
		LEFT JOIN payments p ON p.booking_id = b.id
		WHERE b.booking_code = $1`, code)

	b, err := scanBooking(row, &payID, &payAmount, &payMethod, &payStatus, &paidAt)
	if err != nil {
		return nil, notFound(err)
	}

	if payID.Valid {
		b.Payment = &models.Payment{
			ID:        payID.String,
			BookingID: b.ID,
			Amount:    payAmount.Int64,
			Method:    models.PaymentMethod(payMethod.String),
			Status:    models.PaymentStatus(payStatus.String),
			PaidAt:    paidAt,
		}
	}
	return b, nil
}

// List returns every booking, newest first.
func (r *BookingRepository) List(ctx context.Context) ([]models.Booking, error) {
	return r.list(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings b
		JOIN routes r ON r.id = b.route_id
		ORDER BY b.created_at DESC`)
}

// ListByUser returns the bookings a user made, newest first.
func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	return r.list(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings b
		JOIN routes r ON r.id = b.route_id
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC`, userID)
}

func (r *BookingRepository) list(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	bookings := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// CheckIn marks a booking boarded. It returns ErrAlreadyCheckedIn when the
// booking was checked in concurrently.
func (r *BookingRepository) CheckIn(ctx context.Context, bookingID, staffID string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE bookings
		SET checked_in = true, checked_in_at = $1, checked_in_by = $2, updated_at = $1
		WHERE id = $3 AND checked_in = false`,
		at, staffID, bookingID)
	if err != nil {
		return fmt.Errorf("check in booking %s: %w", bookingID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyCheckedIn
	}
	return nil
}
