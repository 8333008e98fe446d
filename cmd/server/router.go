package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/xevcp/backend/internal/config"
	mW "github.com/xevcp/backend/internal/middleware"
	"github.com/xevcp/backend/internal/models"
	"github.com/xevcp/backend/internal/services"
	httpSwagger "github.com/swaggo/http-swagger"
)

func newRouter(cfg *config.Config, log *slog.Logger, d routerDeps) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mW.NewLoggerMiddleware(log).LoggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(mW.SecurityHeaders)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		services.SendJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Route map and thumbnail images
	r.Handle("/static/routes/*", http.StripPrefix("/static/routes/",
		mW.StaticFileServer("./static/routes")))

	staff := mW.RequireRole(models.RoleAdmin, models.RoleStaff)
	admin := mW.RequireRole(models.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/register", d.authSvc.Register)
		r.Post("/auth/login", d.authSvc.Login)

		r.Get("/webhooks/casso", d.webhook.Probe)
		r.Post("/webhooks/casso", d.webhook.Casso)

		r.Get("/payment/bank-info", d.qr.BankInfo)
		r.Get("/payment/qr/{bookingCode}", d.qr.PaymentQR)

		r.With(d.auth.Optional).Post("/bookings", d.bookings.CreateBooking)
		r.Get("/bookings/check-status", d.bookings.CheckStatus)
		r.With(d.auth.Required).Get("/bookings/mine", d.bookings.MyBookings)
		r.Get("/bookings/{bookingCode}", d.bookings.GetTicket)

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(d.auth.Required)

			r.Post("/auth/logout", d.authSvc.Logout)

			r.Route("/admin", func(r chi.Router) {
				r.Use(staff)

				r.Get("/bookings", d.admin.ListBookings)
				r.Post("/checkin", d.bookings.CheckIn)

				r.Get("/routes", d.admin.ListRoutes)
				r.Post("/routes", d.admin.CreateRoute)
				r.Patch("/routes/{id}", d.admin.UpdateRoute)
				r.With(admin).Delete("/routes/{id}", d.admin.DeleteRoute)

				r.Get("/payments/{bookingCode}/status-report", d.iso20022.PaymentStatusReport)
				r.Get("/payments/{bookingCode}/credit-transfer", d.iso20022.CreditTransfer)

				r.Group(func(r chi.Router) {
					r.Use(admin)

					r.Get("/users", d.admin.ListUsers)
					r.Patch("/users/{id}", d.admin.UpdateUserRole)
					r.Delete("/users/{id}", d.admin.DeleteUser)
				})
			})
		})
	})

	return r
}
