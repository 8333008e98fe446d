package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/xevcp/backend/internal/models"
	"github.com/xevcp/backend/internal/reconcile"
)

type mockBookingStore struct {
	mock.Mock
}

func (m *mockBookingStore) Create(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockBookingStore) FindByCode(ctx context.Context, code string) (*models.Booking, error) {
	args := m.Called(ctx, code)
	b, _ := args.Get(0).(*models.Booking)
	return b, args.Error(1)
}

func (m *mockBookingStore) List(ctx context.Context) ([]models.Booking, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockBookingStore) ListByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockBookingStore) CheckIn(ctx context.Context, bookingID, staffID string, at time.Time) error {
	return m.Called(ctx, bookingID, staffID, at).Error(0)
}

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Process(ctx context.Context, items []json.RawMessage) (*reconcile.Report, error) {
	args := m.Called(ctx, items)
	r, _ := args.Get(0).(*reconcile.Report)
	return r, args.Error(1)
}
