package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xevcp/backend/internal/audit"
	"github.com/xevcp/backend/internal/bookingcode"
	"github.com/xevcp/backend/internal/middleware"
	"github.com/xevcp/backend/internal/models"
	"github.com/xevcp/backend/internal/repository"
	"github.com/xevcp/backend/pkg/logger"
)

const createBookingAttempts = 5

// bookingZone dates new booking codes in Vietnam local time.
var bookingZone = time.FixedZone("ICT", 7*60*60)

type BookingService struct {
	bookings  BookingStore
	routes    RouteStore
	qr        *QRService
	audit     *audit.Logger
	validator *ValidationHelper
	now       func() time.Time
}

func NewBookingService(bookings BookingStore, routes RouteStore, qr *QRService, auditLog *audit.Logger) *BookingService {
	return &BookingService{
		bookings:  bookings,
		routes:    routes,
		qr:        qr,
		audit:     auditLog,
		validator: NewValidationHelper(),
		now:       time.Now,
	}
}

// CreateBookingRequest represents a new reservation
// @Description Booking request structure
type CreateBookingRequest struct {
	RouteID       string `json:"routeId" validate:"required" example:"5f0c7a1e-0000-4000-8000-00000000000a"`
	CustomerName  string `json:"customerName" validate:"required,min=2,max=100" example:"Nguyen Van A"`
	CustomerPhone string `json:"customerPhone" validate:"required,min=9,max=15" example:"0901234567"`
	CustomerEmail string `json:"customerEmail,omitempty" validate:"omitempty,email" example:"customer@test.com"`
	Date          string `json:"date" validate:"required,datetime=2006-01-02" example:"2025-11-12"`
	DepartureTime string `json:"departureTime" validate:"required,datetime=15:04" example:"08:00"`
	Seats         int    `json:"seats" validate:"required,min=1,max=10" example:"2"`
}

// PaymentInstructions tells the customer how to pay for a new booking
type PaymentInstructions struct {
	QRCode   *VietQRPayload `json:"qrCode"`
	QRImage  string         `json:"qrImage"`
	BankInfo BankInfo       `json:"bankInfo"`
}

// CreateBookingResponse is returned once a booking is reserved
type CreateBookingResponse struct {
	Success bool                `json:"success" example:"true"`
	Booking *models.Booking     `json:"booking"`
	Payment PaymentInstructions `json:"payment"`
}

// TicketPayment is the part of a payment shown on a ticket
type TicketPayment struct {
	Method models.PaymentMethod `json:"method" example:"BANK_TRANSFER"`
	Status models.PaymentStatus `json:"status" example:"COMPLETED"`
	PaidAt *time.Time           `json:"paidAt,omitempty"`
}

// TicketView is the public view of a booking
type TicketView struct {
	BookingCode   string               `json:"bookingCode" example:"VCP202511101234"`
	CustomerName  string               `json:"customerName" example:"Nguyen Van A"`
	CustomerPhone string               `json:"customerPhone" example:"0901234567"`
	Route         *models.RouteSummary `json:"route"`
	Date          string               `json:"date" example:"2025-11-12"`
	DepartureTime string               `json:"departureTime" example:"08:00"`
	Seats         int                  `json:"seats" example:"2"`
	TotalPrice    int64                `json:"totalPrice" example:"300000"`
	Status        models.BookingStatus `json:"status" example:"PAID"`
	CheckedIn     bool                 `json:"checkedIn"`
	CheckedInAt   *time.Time           `json:"checkedInAt,omitempty"`
	Payment       *TicketPayment       `json:"payment,omitempty"`
	TicketQR      string               `json:"ticketQr,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
}

// CheckInRequest identifies the ticket being boarded. Either field is enough;
// a scanned QR code is verified against its signature.
type CheckInRequest struct {
	BookingCode string `json:"bookingCode,omitempty" validate:"required_without=QRData" example:"VCP202511101234"`
	QRData      string `json:"qrData,omitempty" validate:"required_without=BookingCode"`
}

// CreateBooking reserves seats on a route
// @Summary Create booking
// @Description Reserve seats on an active route. The booking stays PENDING until the bank transfer is reconciled.
// @Tags bookings
// @Accept json
// @Produce json
// @Param request body CreateBookingRequest true "Booking request"
// @Success 201 {object} CreateBookingResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /bookings [post]
func (s *BookingService) CreateBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req CreateBookingRequest
	if !s.validator.decodeBody(w, r, &req) {
		return
	}

	route, err := s.routes.Get(ctx, req.RouteID)
	if errors.Is(err, repository.ErrNotFound) {
		SendErrorResponse(w, "Route not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Error("failed to load route", "route_id", req.RouteID, "error", err)
		SendErrorResponse(w, "Failed to create booking", http.StatusInternalServerError, nil)
		return
	}
	if !route.IsActive {
		SendErrorResponse(w, "Route is not available for booking", http.StatusBadRequest, nil)
		return
	}

	booking := &models.Booking{
		RouteID:       route.ID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		Date:          req.Date,
		DepartureTime: req.DepartureTime,
		Seats:         req.Seats,
		TotalPrice:    route.Price * int64(req.Seats),
		Status:        models.BookingPending,
	}
	if userID, ok := middleware.UserID(ctx); ok {
		booking.UserID = &userID
	}

	for attempt := 1; ; attempt++ {
		code, err := bookingcode.Generate(s.now().In(bookingZone))
		if err != nil {
			log.Error("booking code generation failed", "error", err)
			SendErrorResponse(w, "Failed to create booking", http.StatusInternalServerError, nil)
			return
		}
		booking.ID = ""
		booking.BookingCode = code.String()

		err = s.bookings.Create(ctx, booking)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrDuplicate) && attempt < createBookingAttempts {
			log.Warn("booking code collision, retrying", "booking_code", booking.BookingCode, "attempt", attempt)
			continue
		}
		log.Error("failed to create booking", "error", err)
		SendErrorResponse(w, "Failed to create booking", http.StatusInternalServerError, nil)
		return
	}

	booking.Route = &models.RouteSummary{
		From:     route.From,
		To:       route.To,
		BusType:  route.BusType,
		Duration: route.Duration,
		Distance: route.Distance,
	}

	payload, image, err := s.qr.PaymentQR(booking)
	if err != nil {
		// The booking exists; the QR can be fetched again from /payment/qr.
		log.Error("payment QR generation failed", "booking_code", booking.BookingCode, "error", err)
	}

	log.Info("booking created", "booking_code", booking.BookingCode, "route_id", route.ID, "seats", booking.Seats)
	SendJSON(w, http.StatusCreated, CreateBookingResponse{
		Success: true,
		Booking: booking,
		Payment: PaymentInstructions{
			QRCode:   payload,
			QRImage:  image,
			BankInfo: s.qr.BankInfo(),
		},
	})
}

// CheckStatus reports whether a booking has been paid
// @Summary Check booking status
// @Description Poll the payment status of a booking. Hyphenated codes are accepted.
// @Tags bookings
// @Produce json
// @Param bookingCode query string true "Booking code" example(VCP-20251110-1234)
// @Success 200 {object} object{bookingCode=string,status=string,isPaid=bool,paidAt=string}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /bookings/check-status [get]
func (s *BookingService) CheckStatus(w http.ResponseWriter, r *http.Request) {
	input := strings.TrimSpace(r.URL.Query().Get("bookingCode"))
	if input == "" {
		SendErrorResponse(w, "bookingCode is required", http.StatusBadRequest, nil)
		return
	}

	b, ok := findBooking(w, r, s.bookings, input)
	if !ok {
		return
	}

	resp := map[string]any{
		"bookingCode": b.BookingCode,
		"status":      b.Status,
		"isPaid":      b.Status.Settled(),
	}
	if b.Payment != nil && b.Payment.PaidAt != nil {
		resp["paidAt"] = b.Payment.PaidAt
	}
	SendJSON(w, http.StatusOK, resp)
}

// GetTicket returns the public view of a booking
// @Summary Get ticket
// @Description Booking details with payment state. Paid bookings include the boarding QR code.
// @Tags bookings
// @Produce json
// @Param bookingCode path string true "Booking code"
// @Success 200 {object} TicketView
// @Failure 404 {object} ErrorResponse
// @Router /bookings/{bookingCode} [get]
func (s *BookingService) GetTicket(w http.ResponseWriter, r *http.Request) {
	b, ok := findBooking(w, r, s.bookings, chi.URLParam(r, "bookingCode"))
	if !ok {
		return
	}

	view := TicketView{
		BookingCode:   b.BookingCode,
		CustomerName:  b.CustomerName,
		CustomerPhone: b.CustomerPhone,
		Route:         b.Route,
		Date:          b.Date,
		DepartureTime: b.DepartureTime,
		Seats:         b.Seats,
		TotalPrice:    b.TotalPrice,
		Status:        b.Status,
		CheckedIn:     b.CheckedIn,
		CheckedInAt:   b.CheckedInAt,
		CreatedAt:     b.CreatedAt,
	}
	if b.Payment != nil {
		view.Payment = &TicketPayment{Method: b.Payment.Method, Status: b.Payment.Status, PaidAt: b.Payment.PaidAt}
	}

	if b.Status.Boardable() {
		qr, err := s.qr.TicketQR(r.Context(), b)
		if err != nil {
			logger.FromContext(r.Context()).Error("ticket QR generation failed", "booking_code", b.BookingCode, "error", err)
		}
		view.TicketQR = qr
	}

	SendJSON(w, http.StatusOK, view)
}

// MyBookings lists the caller's bookings
// @Summary My bookings
// @Tags bookings
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Booking
// @Failure 401 {object} ErrorResponse
// @Router /bookings/mine [get]
func (s *BookingService) MyBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	bookings, err := s.bookings.ListByUser(r.Context(), userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to list bookings", "user_id", userID, "error", err)
		SendErrorResponse(w, "Failed to load bookings", http.StatusInternalServerError, nil)
		return
	}
	SendJSON(w, http.StatusOK, bookings)
}

// CheckIn boards a paid ticket
// @Summary Check in passenger
// @Description Mark a paid booking as boarded, by booking code or by scanned ticket QR
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CheckInRequest true "Ticket to check in"
// @Success 200 {object} object{success=bool,message=string,booking=models.Booking}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/checkin [post]
func (s *BookingService) CheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req CheckInRequest
	if !s.validator.decodeBody(w, r, &req) {
		return
	}

	input := req.BookingCode
	if input == "" {
		var ticket TicketPayload
		if err := json.Unmarshal([]byte(req.QRData), &ticket); err != nil || ticket.BookingCode == "" {
			SendErrorResponse(w, "Invalid ticket QR code", http.StatusBadRequest, nil)
			return
		}
		input = ticket.BookingCode
	}

	b, ok := findBooking(w, r, s.bookings, input)
	if !ok {
		return
	}

	if req.QRData != "" {
		if _, err := s.qr.VerifyTicket(req.QRData, b.BookingCode); err != nil {
			log.Warn("rejected ticket QR", "booking_code", b.BookingCode)
			SendErrorResponse(w, "Invalid ticket QR code", http.StatusBadRequest, nil)
			return
		}
	}

	if b.CheckedIn {
		SendErrorResponse(w, "Ticket already checked in", http.StatusBadRequest, nil)
		return
	}
	if !b.Status.Boardable() {
		SendErrorResponse(w, "Booking is not paid", http.StatusBadRequest, nil)
		return
	}

	staffID, _ := middleware.UserID(ctx)
	at := s.now()
	err := s.bookings.CheckIn(ctx, b.ID, staffID, at)
	if errors.Is(err, repository.ErrAlreadyCheckedIn) {
		SendErrorResponse(w, "Ticket already checked in", http.StatusBadRequest, nil)
		return
	}
	if err != nil {
		log.Error("check-in failed", "booking_code", b.BookingCode, "error", err)
		SendErrorResponse(w, "Failed to check in", http.StatusInternalServerError, nil)
		return
	}

	b.CheckedIn = true
	b.CheckedInAt = &at
	b.CheckedInBy = &staffID
	s.audit.LogCheckIn(b.BookingCode, staffID)
	log.Info("passenger checked in", "booking_code", b.BookingCode, "staff_id", staffID)

	SendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Check-in successful",
		"booking": b,
	})
}

// findBooking loads a booking by a user-supplied code. Hyphenated and
// lower-case codes are normalized; anything else is looked up as given. On
// failure the error response has been written.
func findBooking(w http.ResponseWriter, r *http.Request, bookings BookingStore, input string) (*models.Booking, bool) {
	code, ok := bookingcode.Normalize(input)
	if !ok {
		code = strings.ToUpper(strings.TrimSpace(input))
	}

	b, err := bookings.FindByCode(r.Context(), code)
	if errors.Is(err, repository.ErrNotFound) {
		SendErrorResponse(w, "Booking not found", http.StatusNotFound, nil)
		return nil, false
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to load booking", "booking_code", code, "error", err)
		SendErrorResponse(w, "Failed to load booking", http.StatusInternalServerError, nil)
		return nil, false
	}
	return b, true
}
