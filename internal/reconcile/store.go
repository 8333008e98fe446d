package reconcile

import (
	"context"

	"github.com/xevcp/backend/internal/models"
)

// Store is the persistence port the processor settles through.
type Store interface {
	// Ping reports whether the store is reachable. A failed ping fails the
	// whole batch so the sender retries it.
	Ping(ctx context.Context) error

	// WithinTx runs fn in one database transaction, committing when fn
	// returns nil and rolling back otherwise.
	WithinTx(ctx context.Context, fn func(tx SettlementTx) error) error
}

// SettlementTx is the set of reads and writes a single settlement needs.
// Lookups return (nil, nil) when the row does not exist.
type SettlementTx interface {
	// LockBookingByCode loads the booking with the given canonical code and
	// holds a row lock on it until the transaction ends.
	LockBookingByCode(ctx context.Context, code string) (*models.Booking, error)
	PaymentByBooking(ctx context.Context, bookingID string) (*models.Payment, error)
	CreatePayment(ctx context.Context, p *models.Payment) error
	UpdatePayment(ctx context.Context, p *models.Payment) error
	SetBookingStatus(ctx context.Context, bookingID string, status models.BookingStatus) error
}
