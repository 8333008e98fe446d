package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xevcp/backend/internal/models"
	"github.com/xevcp/backend/internal/reconcile"
)

// SettlementStore implements reconcile.Store on PostgreSQL.
type SettlementStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ reconcile.Store = (*SettlementStore)(nil)

func NewSettlementStore(db *sql.DB) *SettlementStore {
	return &SettlementStore{db: db, now: time.Now}
}

func (s *SettlementStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SettlementStore) WithinTx(ctx context.Context, fn func(tx reconcile.SettlementTx) error) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&settlementTx{tx: tx, now: s.now})
	})
}

type settlementTx struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *settlementTx) LockBookingByCode(ctx context.Context, code string) (*models.Booking, error) {
	var b models.Booking
	var email sql.NullString
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, booking_code, user_id, route_id, customer_name, customer_phone, customer_email,
		       date, departure_time, seats, total_price, status
		FROM bookings
		WHERE booking_code = $1
		FOR UPDATE`, code).Scan(&b.ID, &b.BookingCode, &b.UserID, &b.RouteID, &b.CustomerName,
		&b.CustomerPhone, &email, &b.Date, &b.DepartureTime, &b.Seats, &b.TotalPrice, &b.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock booking %s: %w", code, err)
	}
	b.CustomerEmail = email.String
	return &b, nil
}

func (t *settlementTx) PaymentByBooking(ctx context.Context, bookingID string) (*models.Payment, error) {
	var p models.Payment
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, booking_id, amount, method, status, transaction_id, paid_at
		FROM payments
		WHERE booking_id = $1
		FOR UPDATE`, bookingID).Scan(&p.ID, &p.BookingID, &p.Amount, &p.Method, &p.Status, &p.TransactionID, &p.PaidAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load payment for booking %s: %w", bookingID, err)
	}
	return &p, nil
}

func (t *settlementTx) CreatePayment(ctx context.Context, p *models.Payment) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := t.now()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO payments (id, booking_id, amount, method, status, transaction_id, paid_at, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.BookingID, p.Amount, p.Method, p.Status, p.TransactionID, p.PaidAt, p.Metadata, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create payment for booking %s: %w", p.BookingID, err)
	}
	return nil
}

func (t *settlementTx) UpdatePayment(ctx context.Context, p *models.Payment) error {
	p.UpdatedAt = t.now()

	result, err := t.tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, transaction_id = $2, paid_at = $3, metadata = $4, updated_at = $5
		WHERE id = $6`,
		p.Status, p.TransactionID, p.PaidAt, p.Metadata, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update payment %s: %w", p.ID, err)
	}
	return expectOneRow(result, "payment", p.ID)
}

func (t *settlementTx) SetBookingStatus(ctx context.Context, bookingID string, status models.BookingStatus) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3`,
		status, t.now(), bookingID)
	if err != nil {
		return fmt.Errorf("set booking %s status: %w", bookingID, err)
	}
	return expectOneRow(result, "booking", bookingID)
}

func expectOneRow(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
