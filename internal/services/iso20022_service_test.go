package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xevcp/backend/internal/models"
	"github.com/xevcp/backend/internal/repository"
)

func settledBooking() *models.Booking {
	paidAt := time.Date(2025, 11, 10, 9, 30, 0, 0, time.UTC)
	ref := "FT25314123456"
	b := paidBooking()
	b.Payment = &models.Payment{
		ID:            "pay-1",
		BookingID:     b.ID,
		Amount:        300000,
		Method:        models.MethodBankTransfer,
		Status:        models.PaymentCompleted,
		TransactionID: &ref,
		PaidAt:        &paidAt,
	}
	return b
}

func TestISO20022Service_CreatePacs002(t *testing.T) {
	service := NewISO20022Service(nil, testBank)

	t.Run("settled payment", func(t *testing.T) {
		doc, err := service.CreatePacs002(settledBooking())
		require.NoError(t, err)
		require.Len(t, doc.TxInfAndSts, 1)

		tx := doc.TxInfAndSts[0]
		assert.Equal(t, StatusSettled, string(*tx.TxSts))
		assert.Equal(t, "FT25314123456", string(*tx.OrgnlTxId))
		assert.Equal(t, "VCP202511106100", string(*tx.OrgnlEndToEndId))
		assert.NotEmpty(t, doc.GrpHdr.MsgId)
	})

	t.Run("unpaid booking", func(t *testing.T) {
		b := paidBooking()
		b.Status = models.BookingPending

		doc, err := service.CreatePacs002(b)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, string(*doc.TxInfAndSts[0].TxSts))
		assert.Equal(t, "VCP202511106100", string(*doc.TxInfAndSts[0].OrgnlTxId))
	})
}

func TestISO20022Service_CreatePacs008(t *testing.T) {
	service := NewISO20022Service(nil, testBank)

	doc, err := service.CreatePacs008(settledBooking())
	require.NoError(t, err)

	tx := doc.CdtTrfTxInf[0]
	assert.Equal(t, float64(300000), tx.IntrBkSttlmAmt.Value)
	assert.Equal(t, "VND", string(tx.IntrBkSttlmAmt.Ccy))
	assert.Equal(t, "VCP202511106100", string(tx.PmtId.EndToEndId))
	assert.Equal(t, "Nguyen Van A", string(*tx.Dbtr.Nm))
	assert.Equal(t, "970422", string(tx.CdtrAgt.FinInstnId.ClrSysMmbId.MmbId))

	_, err = service.CreatePacs008(paidBooking())
	assert.Error(t, err)
}

func TestISO20022Service_ConvertToXML(t *testing.T) {
	service := NewISO20022Service(nil, testBank)

	doc, err := service.CreatePacs002(settledBooking())
	require.NoError(t, err)

	xmlData, err := service.ConvertToXML(doc)
	require.NoError(t, err)
	assert.Contains(t, xmlData, "<?xml")
	assert.Contains(t, xmlData, "ACSC")
	assert.Contains(t, xmlData, "FT25314123456")
}

func TestISO20022Service_Handlers(t *testing.T) {
	store := &MockBookingStore{}
	store.On("FindByCode", mock.Anything, "VCP202511106100").Return(settledBooking(), nil)
	store.On("FindByCode", mock.Anything, "VCP202511100001").Return(paidBooking(), nil)
	store.On("FindByCode", mock.Anything, "VCP202511109999").Return(nil, repository.ErrNotFound)

	service := NewISO20022Service(store, testBank)
	r := chi.NewRouter()
	r.Get("/admin/payments/{bookingCode}/status-report", service.PaymentStatusReport)
	r.Get("/admin/payments/{bookingCode}/credit-transfer", service.CreditTransfer)

	tests := []struct {
		name     string
		path     string
		status   int
		contains string
	}{
		{"status report", "/admin/payments/VCP-20251110-6100/status-report", http.StatusOK, "ACSC"},
		{"credit transfer", "/admin/payments/VCP202511106100/credit-transfer", http.StatusOK, "SLEV"},
		{"credit transfer without payment", "/admin/payments/VCP202511100001/credit-transfer", http.StatusBadRequest, ""},
		{"unknown booking", "/admin/payments/VCP202511109999/status-report", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "application/xml", w.Header().Get("Content-Type"))
				assert.Contains(t, w.Body.String(), tt.contains)
			}
		})
	}
}
