package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xevcp/backend/internal/models"
	"github.com/xevcp/backend/internal/reconcile"
)

var fixedNow = time.Date(2025, 11, 10, 10, 0, 0, 0, time.UTC)

func newSettlementStore(t *testing.T) (*SettlementStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewSettlementStore(db)
	store.now = func() time.Time { return fixedNow }
	return store, mock
}

var lockColumns = []string{"id", "booking_code", "user_id", "route_id", "customer_name", "customer_phone",
	"customer_email", "date", "departure_time", "seats", "total_price", "status"}

func lockRow(status string) []driver.Value {
	return []driver.Value{"booking-1", "VCP202511106100", nil, "route-1", "Nguyen Van A", "0901234567",
		"a@example.com", "2025-11-12", "08:00", int64(2), int64(150000), status}
}

func TestSettlementStore_LockBookingByCode(t *testing.T) {
	store, mock := newSettlementStore(t)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FROM bookings") + ".*" + regexp.QuoteMeta("FOR UPDATE")).
			WithArgs("VCP202511106100").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow(lockRow("PENDING")...))
		mock.ExpectCommit()

		var got *models.Booking
		err := store.WithinTx(ctx, func(tx reconcile.SettlementTx) error {
			var err error
			got, err = tx.LockBookingByCode(ctx, "VCP202511106100")
			return err
		})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "booking-1", got.ID)
		assert.Equal(t, int64(150000), got.TotalPrice)
		assert.Equal(t, models.BookingPending, got.Status)
		assert.Equal(t, "a@example.com", got.CustomerEmail)
		assert.Nil(t, got.UserID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing booking is not an error", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FROM bookings")).
			WithArgs("VCP209901010000").
			WillReturnRows(sqlmock.NewRows(lockColumns))
		mock.ExpectCommit()

		err := store.WithinTx(ctx, func(tx reconcile.SettlementTx) error {
			b, err := tx.LockBookingByCode(ctx, "VCP209901010000")
			assert.Nil(t, b)
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSettlementStore_SettleNewPayment(t *testing.T) {
	store, mock := newSettlementStore(t)
	ctx := context.Background()
	paidAt := time.Date(2025, 11, 10, 9, 15, 0, 0, time.UTC)
	ref := "FT25314000123"
	raw := models.Metadata(`{"id":1,"tid":"FT25314000123"}`)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments")).
		WithArgs("booking-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "amount", "method", "status", "transaction_id", "paid_at"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WithArgs(sqlmock.AnyArg(), "booking-1", int64(150000), "BANK_TRANSFER", "COMPLETED", ref, paidAt,
			[]byte(raw), fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3")).
		WithArgs("PAID", fixedNow, "booking-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithinTx(ctx, func(tx reconcile.SettlementTx) error {
		existing, err := tx.PaymentByBooking(ctx, "booking-1")
		require.NoError(t, err)
		assert.Nil(t, existing)

		p := &models.Payment{
			BookingID:     "booking-1",
			Amount:        150000,
			Method:        models.MethodBankTransfer,
			Status:        models.PaymentCompleted,
			TransactionID: &ref,
			PaidAt:        &paidAt,
			Metadata:      raw,
		}
		if err := tx.CreatePayment(ctx, p); err != nil {
			return err
		}
		assert.NotEmpty(t, p.ID)
		return tx.SetBookingStatus(ctx, "booking-1", models.BookingPaid)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementStore_UpdatePayment(t *testing.T) {
	store, mock := newSettlementStore(t)
	ctx := context.Background()
	paidAt := time.Date(2025, 11, 10, 9, 15, 0, 0, time.UTC)
	ref := "42"

	t.Run("updates existing row", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE payments")).
			WithArgs("COMPLETED", ref, paidAt, nil, fixedNow, "payment-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithinTx(ctx, func(tx reconcile.SettlementTx) error {
			return tx.UpdatePayment(ctx, &models.Payment{
				ID:            "payment-1",
				Status:        models.PaymentCompleted,
				TransactionID: &ref,
				PaidAt:        &paidAt,
			})
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("vanished row rolls back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE payments")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := store.WithinTx(ctx, func(tx reconcile.SettlementTx) error {
			return tx.UpdatePayment(ctx, &models.Payment{ID: "payment-1", Status: models.PaymentCompleted})
		})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSettlementStore_WithinTxRollsBackOnError(t *testing.T) {
	store, mock := newSettlementStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(tx reconcile.SettlementTx) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementStore_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	store := NewSettlementStore(db)
	assert.Error(t, store.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
