package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xevcp/backend/internal/bookingcode"
	"github.com/xevcp/backend/internal/repository"
	"github.com/xevcp/backend/internal/services"
	"github.com/xevcp/backend/pkg/logger"
)

type QRHandler struct {
	service  *services.QRService
	bookings services.BookingStore
}

func NewQRHandler(service *services.QRService, bookings services.BookingStore) *QRHandler {
	return &QRHandler{
		service:  service,
		bookings: bookings,
	}
}

// BankInfo returns the receiving account for bank transfers
// @Summary Bank transfer details
// @Description Account that receives ticket payments and how to fill in the transfer description
// @Tags payment
// @Produce json
// @Success 200 {object} services.BankInfo
// @Router /payment/bank-info [get]
func (h *QRHandler) BankInfo(w http.ResponseWriter, r *http.Request) {
	services.SendJSON(w, http.StatusOK, h.service.BankInfo())
}

// PaymentQR regenerates the payment QR of a booking
// @Summary Payment QR Code
// @Description VietQR transfer request for an unpaid booking. The transfer description is the booking code.
// @Tags payment
// @Produce json
// @Param bookingCode path string true "Booking code" example(VCP202511101234)
// @Success 200 {object} object{success=bool,qrCode=services.VietQRPayload,qrImage=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /payment/qr/{bookingCode} [get]
func (h *QRHandler) PaymentQR(w http.ResponseWriter, r *http.Request) {
	code, ok := bookingcode.Normalize(chi.URLParam(r, "bookingCode"))
	if !ok {
		services.SendErrorResponse(w, "Invalid booking code", http.StatusBadRequest, nil)
		return
	}

	b, err := h.bookings.FindByCode(r.Context(), code)
	if errors.Is(err, repository.ErrNotFound) {
		services.SendErrorResponse(w, "Booking not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to load booking", "booking_code", code, "error", err)
		services.SendErrorResponse(w, "Failed to load booking", http.StatusInternalServerError, nil)
		return
	}
	if b.Status.Settled() {
		services.SendErrorResponse(w, "Booking is already paid", http.StatusBadRequest, nil)
		return
	}

	payload, image, err := h.service.PaymentQR(b)
	if err != nil {
		logger.FromContext(r.Context()).Error("payment QR generation failed", "booking_code", code, "error", err)
		services.SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"qrCode":  payload,
		"qrImage": image,
	})
}
