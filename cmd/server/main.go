package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xevcp/backend/docs"
	"github.com/xevcp/backend/internal/audit"
	"github.com/xevcp/backend/internal/config"
	"github.com/xevcp/backend/internal/database"
	"github.com/xevcp/backend/internal/handlers"
	mW "github.com/xevcp/backend/internal/middleware"
	"github.com/xevcp/backend/internal/notify"
	"github.com/xevcp/backend/internal/reconcile"
	"github.com/xevcp/backend/internal/repository"
	"github.com/xevcp/backend/internal/services"
	"github.com/xevcp/backend/internal/token"
	"github.com/xevcp/backend/pkg/logger"
)

// @title XE VCP Booking API
// @version 1.0
// @description Bus ticket booking with bank transfer reconciliation
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docs.SwaggerInfo.Host = "localhost:" + cfg.Port

	db, err := database.InitDB(ctx, log)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := database.InitRedis(ctx, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher, closePublisher := newPublisher(cfg, log)
	defer closePublisher()

	bookingRepo := repository.NewBookingRepository(db)
	routeRepo := repository.NewRouteRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditLog := audit.NewLogger(os.Stdout)

	opts := []reconcile.Option{
		reconcile.WithAmountTolerance(cfg.Reconcile.AmountTolerance),
		reconcile.WithNotifiers(notify.NewEmailNotifier(publisher), notify.NewSMSNotifier(publisher)),
	}
	if redisClient != nil {
		opts = append(opts, reconcile.WithGuard(reconcile.NewRedisGuard(redisClient, cfg.Reconcile.DedupTTL)))
	}
	processor := reconcile.NewProcessor(repository.NewSettlementStore(db), auditLog, opts...)

	tokens := token.NewManager(cfg.JWT.SecretKey, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	auth := mW.NewAuth(tokens, redisClient)

	qrService := services.NewQRService(redisClient, cfg.Ticket.SigningKey, cfg.Bank, cfg.Ticket.CacheTTL)
	qrHandler := handlers.NewQRHandler(qrService, bookingRepo)
	webhookHandler := handlers.NewWebhookHandler(processor, cfg.Casso.APIKey, true)
	authService := services.NewAuthService(userRepo, redisClient, tokens)
	bookingService := services.NewBookingService(bookingRepo, routeRepo, qrService, auditLog)
	adminService := services.NewAdminService(bookingRepo, routeRepo, userRepo)
	iso20022Service := services.NewISO20022Service(bookingRepo, cfg.Bank)

	router := newRouter(cfg, log, routerDeps{
		auth:     auth,
		qr:       qrHandler,
		webhook:  webhookHandler,
		authSvc:  authService,
		bookings: bookingService,
		admin:    adminService,
		iso20022: iso20022Service,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// newPublisher connects to RabbitMQ when configured and otherwise logs
// notifications.
func newPublisher(cfg *config.Config, log *slog.Logger) (notify.Publisher, func()) {
	fallback := notify.NewLogPublisher(log)
	if cfg.AMQP.URL == "" {
		log.Info("AMQP_URL not set, notifications are logged only")
		return fallback, func() {}
	}

	pub, err := notify.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		log.Warn("rabbitmq unavailable, notifications are logged only", "error", err)
		return fallback, func() {}
	}
	log.Info("rabbitmq publisher ready", "exchange", cfg.AMQP.Exchange)
	return pub, func() { pub.Close() }
}

type routerDeps struct {
	auth     *mW.Auth
	qr       *handlers.QRHandler
	webhook  *handlers.WebhookHandler
	authSvc  *services.AuthService
	bookings *services.BookingService
	admin    *services.AdminService
	iso20022 *services.ISO20022Service
}
