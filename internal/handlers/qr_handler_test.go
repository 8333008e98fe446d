package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xevcp/backend/internal/config"
	"github.com/xevcp/backend/internal/models"
	"github.com/xevcp/backend/internal/repository"
	"github.com/xevcp/backend/internal/services"
)

func newQRHandler(store *mockBookingStore) *QRHandler {
	qr := services.NewQRService(nil, "ticket-signing-key-0123456789", config.BankConfig{
		BankID:      "970422",
		BankName:    "MB Bank",
		AccountNo:   "0123456789",
		AccountName: "XE VCP",
		Template:    "compact2",
	}, 0)
	return NewQRHandler(qr, store)
}

func qrRouter(h *QRHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/payment/bank-info", h.BankInfo)
	r.Get("/payment/qr/{bookingCode}", h.PaymentQR)
	return r
}

func TestQRHandler_BankInfo(t *testing.T) {
	h := newQRHandler(&mockBookingStore{})

	w := httptest.NewRecorder()
	qrRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payment/bank-info", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var info services.BankInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "0123456789", info.AccountNo)
	assert.Equal(t, "MB Bank", info.BankName)
}

func TestQRHandler_PaymentQR(t *testing.T) {
	pending := &models.Booking{ID: "b1", BookingCode: "VCP202511101234", TotalPrice: 150000, Status: models.BookingPending}
	paid := &models.Booking{ID: "b2", BookingCode: "VCP202511105678", TotalPrice: 150000, Status: models.BookingPaid}

	store := &mockBookingStore{}
	store.On("FindByCode", mock.Anything, "VCP202511101234").Return(pending, nil)
	store.On("FindByCode", mock.Anything, "VCP202511105678").Return(paid, nil)
	store.On("FindByCode", mock.Anything, "VCP202511109999").Return(nil, repository.ErrNotFound)
	h := newQRHandler(store)

	t.Run("pending booking", func(t *testing.T) {
		w := httptest.NewRecorder()
		qrRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payment/qr/vcp-20251110-1234", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Success bool                   `json:"success"`
			QRCode  services.VietQRPayload `json:"qrCode"`
			QRImage string                 `json:"qrImage"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "VCP202511101234", resp.QRCode.AddInfo)
		assert.Equal(t, int64(150000), resp.QRCode.Amount)
		assert.Contains(t, resp.QRImage, "data:image/png;base64,")
	})

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"already paid", "/payment/qr/VCP202511105678", http.StatusBadRequest},
		{"unknown booking", "/payment/qr/VCP202511109999", http.StatusNotFound},
		{"malformed code", "/payment/qr/VCP2025", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			qrRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil).WithContext(context.Background()))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
