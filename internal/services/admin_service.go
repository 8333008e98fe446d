package services

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xevcp/backend/internal/middleware"
	"github.com/xevcp/backend/internal/models"
	"github.com/xevcp/backend/internal/repository"
	"github.com/xevcp/backend/pkg/logger"
)

const defaultIntervalMinutes = 30

// AdminService backs the staff dashboard: bookings, routes and users.
type AdminService struct {
	bookings  BookingStore
	routes    RouteStore
	users     UserStore
	validator *ValidationHelper
}

func NewAdminService(bookings BookingStore, routes RouteStore, users UserStore) *AdminService {
	return &AdminService{
		bookings:  bookings,
		routes:    routes,
		users:     users,
		validator: NewValidationHelper(),
	}
}

// CreateRouteRequest represents a new bus route
// @Description Route creation structure
type CreateRouteRequest struct {
	From            string  `json:"from" validate:"required" example:"Ha Noi"`
	To              string  `json:"to" validate:"required" example:"Cuc Phuong"`
	Price           int64   `json:"price" validate:"required,gt=0" example:"150000"`
	Duration        string  `json:"duration" validate:"required" example:"2h30"`
	BusType         string  `json:"busType" validate:"required" example:"LIMOUSINE"`
	Distance        *string `json:"distance,omitempty" example:"120 km"`
	Description     *string `json:"description,omitempty"`
	RouteMapImage   *string `json:"routeMapImage,omitempty"`
	ThumbnailImage  *string `json:"thumbnailImage,omitempty"`
	OperatingStart  string  `json:"operatingStart" validate:"required,datetime=15:04" example:"05:00"`
	OperatingEnd    string  `json:"operatingEnd" validate:"required,datetime=15:04" example:"21:00"`
	IntervalMinutes *int    `json:"intervalMinutes,omitempty" validate:"omitempty,min=5,max=1440" example:"30"`
	IsActive        *bool   `json:"isActive,omitempty" example:"true"`
}

// UpdateRouteRequest is a partial route update; omitted fields are unchanged
// @Description Route update structure
type UpdateRouteRequest struct {
	From            *string `json:"from,omitempty" validate:"omitempty,min=1"`
	To              *string `json:"to,omitempty" validate:"omitempty,min=1"`
	Price           *int64  `json:"price,omitempty" validate:"omitempty,gt=0"`
	Duration        *string `json:"duration,omitempty" validate:"omitempty,min=1"`
	BusType         *string `json:"busType,omitempty" validate:"omitempty,min=1"`
	Distance        *string `json:"distance,omitempty"`
	Description     *string `json:"description,omitempty"`
	RouteMapImage   *string `json:"routeMapImage,omitempty"`
	ThumbnailImage  *string `json:"thumbnailImage,omitempty"`
	OperatingStart  *string `json:"operatingStart,omitempty" validate:"omitempty,datetime=15:04"`
	OperatingEnd    *string `json:"operatingEnd,omitempty" validate:"omitempty,datetime=15:04"`
	IntervalMinutes *int    `json:"intervalMinutes,omitempty" validate:"omitempty,min=5,max=1440"`
	IsActive        *bool   `json:"isActive,omitempty"`
}

// UpdateRoleRequest changes a user's role
type UpdateRoleRequest struct {
	Role models.Role `json:"role" validate:"required,oneof=USER STAFF ADMIN" example:"STAFF"`
}

// ListBookings lists every booking
// @Summary List bookings
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Booking
// @Router /admin/bookings [get]
func (s *AdminService) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.bookings.List(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to list bookings", "error", err)
		SendErrorResponse(w, "Failed to load bookings", http.StatusInternalServerError, nil)
		return
	}
	SendJSON(w, http.StatusOK, bookings)
}

// ListRoutes lists routes with their booking and schedule counts
// @Summary List routes
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Route
// @Router /admin/routes [get]
func (s *AdminService) ListRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := s.routes.List(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to list routes", "error", err)
		SendErrorResponse(w, "Failed to load routes", http.StatusInternalServerError, nil)
		return
	}
	SendJSON(w, http.StatusOK, routes)
}

// CreateRoute adds a bus route
// @Summary Create route
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateRouteRequest true "Route"
// @Success 201 {object} models.Route
// @Failure 400 {object} ErrorResponse
// @Router /admin/routes [post]
func (s *AdminService) CreateRoute(w http.ResponseWriter, r *http.Request) {
	var req CreateRouteRequest
	if !s.validator.decodeBody(w, r, &req) {
		return
	}

	route := &models.Route{
		From:            req.From,
		To:              req.To,
		Price:           req.Price,
		Duration:        req.Duration,
		BusType:         req.BusType,
		Distance:        req.Distance,
		Description:     req.Description,
		RouteMapImage:   req.RouteMapImage,
		ThumbnailImage:  req.ThumbnailImage,
		OperatingStart:  req.OperatingStart,
		OperatingEnd:    req.OperatingEnd,
		IntervalMinutes: defaultIntervalMinutes,
		IsActive:        true,
	}
	if req.IntervalMinutes != nil {
		route.IntervalMinutes = *req.IntervalMinutes
	}
	if req.IsActive != nil {
		route.IsActive = *req.IsActive
	}

	if err := s.routes.Create(r.Context(), route); err != nil {
		logger.FromContext(r.Context()).Error("failed to create route", "error", err)
		SendErrorResponse(w, "Failed to create route", http.StatusInternalServerError, nil)
		return
	}

	logger.FromContext(r.Context()).Info("route created", "route_id", route.ID, "from", route.From, "to", route.To)
	SendJSON(w, http.StatusCreated, route)
}

// UpdateRoute changes some fields of a route
// @Summary Update route
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Route ID"
// @Param request body UpdateRouteRequest true "Fields to change"
// @Success 200 {object} models.Route
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/routes/{id} [patch]
func (s *AdminService) UpdateRoute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateRouteRequest
	if !s.validator.decodeBody(w, r, &req) {
		return
	}

	route, err := s.routes.Update(r.Context(), id, repository.RouteUpdate{
		From:            req.From,
		To:              req.To,
		Price:           req.Price,
		Duration:        req.Duration,
		BusType:         req.BusType,
		Distance:        req.Distance,
		Description:     req.Description,
		RouteMapImage:   req.RouteMapImage,
		ThumbnailImage:  req.ThumbnailImage,
		OperatingStart:  req.OperatingStart,
		OperatingEnd:    req.OperatingEnd,
		IntervalMinutes: req.IntervalMinutes,
		IsActive:        req.IsActive,
	})
	if errors.Is(err, repository.ErrNotFound) {
		SendErrorResponse(w, "Route not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to update route", "route_id", id, "error", err)
		SendErrorResponse(w, "Failed to update route", http.StatusInternalServerError, nil)
		return
	}
	SendJSON(w, http.StatusOK, route)
}

// DeleteRoute removes a route that was never booked
// @Summary Delete route
// @Description Deletes the route and its schedules. Routes with bookings must be deactivated instead.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Route ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/routes/{id} [delete]
func (s *AdminService) DeleteRoute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := s.routes.Delete(r.Context(), id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		SendErrorResponse(w, "Route not found", http.StatusNotFound, nil)
		return
	case errors.Is(err, repository.ErrHasBookings):
		SendErrorResponse(w, "Route has bookings; deactivate it instead", http.StatusBadRequest, nil)
		return
	case err != nil:
		logger.FromContext(r.Context()).Error("failed to delete route", "route_id", id, "error", err)
		SendErrorResponse(w, "Failed to delete route", http.StatusInternalServerError, nil)
		return
	}

	logger.FromContext(r.Context()).Info("route deleted", "route_id", id)
	SendJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Route deleted"})
}

// ListUsers lists every account
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.User
// @Router /admin/users [get]
func (s *AdminService) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to list users", "error", err)
		SendErrorResponse(w, "Failed to load users", http.StatusInternalServerError, nil)
		return
	}
	SendJSON(w, http.StatusOK, users)
}

// UpdateUserRole changes another user's role
// @Summary Update user role
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body UpdateRoleRequest true "New role"
// @Success 200 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/users/{id} [patch]
func (s *AdminService) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if self, _ := middleware.UserID(r.Context()); self == id {
		SendErrorResponse(w, "You cannot change your own role", http.StatusBadRequest, nil)
		return
	}

	var req UpdateRoleRequest
	if !s.validator.decodeBody(w, r, &req) {
		return
	}

	user, err := s.users.UpdateRole(r.Context(), id, req.Role)
	if errors.Is(err, repository.ErrNotFound) {
		SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to update role", "user_id", id, "error", err)
		SendErrorResponse(w, "Failed to update user", http.StatusInternalServerError, nil)
		return
	}

	logger.FromContext(r.Context()).Info("user role changed", "user_id", id, "role", user.Role)
	SendJSON(w, http.StatusOK, user)
}

// DeleteUser removes another user's account
// @Summary Delete user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/users/{id} [delete]
func (s *AdminService) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if self, _ := middleware.UserID(r.Context()); self == id {
		SendErrorResponse(w, "You cannot delete your own account", http.StatusBadRequest, nil)
		return
	}

	err := s.users.Delete(r.Context(), id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		return
	case errors.Is(err, repository.ErrHasBookings):
		SendErrorResponse(w, "User has bookings and cannot be deleted", http.StatusBadRequest, nil)
		return
	case err != nil:
		logger.FromContext(r.Context()).Error("failed to delete user", "user_id", id, "error", err)
		SendErrorResponse(w, "Failed to delete user", http.StatusInternalServerError, nil)
		return
	}

	logger.FromContext(r.Context()).Info("user deleted", "user_id", id)
	SendJSON(w, http.StatusOK, map[string]any{"success": true, "message": "User deleted"})
}
