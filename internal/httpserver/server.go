package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lodgeworks/reserve/internal/payments"
	"github.com/lodgeworks/reserve/pkg/booking"
	"github.com/lodgeworks/reserve/pkg/payout"
)

// Config carries the HTTP listener settings.
type Config struct {
	ListenAddr      string
	AllowedOrigins  []string
	AdminJWTSecret  string
	ShutdownTimeout time.Duration
}

// Validate ensures the configuration contains sane values.
func (cfg Config) Validate() error {
	if cfg.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	if cfg.AdminJWTSecret == "" {
		return errors.New("admin jwt secret is required")
	}
	return nil
}

// Server exposes the reservation engine over HTTP.
type Server struct {
	cfg      Config
	logger   *zap.Logger
	bookings *booking.Service
	payouts  *payout.Service
	adapter  *payments.Adapter
	router   *gin.Engine
}

// New wires a Server.
func New(cfg Config, bookings *booking.Service, payouts *payout.Service, adapter *payments.Adapter, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("httpserver config: %w", err)
	}
	if bookings == nil || payouts == nil || adapter == nil {
		return nil, errors.New("httpserver: nil service dependency")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	server := &Server{
		cfg:      cfg,
		logger:   logger,
		bookings: bookings,
		payouts:  payouts,
		adapter:  adapter,
	}
	server.router = server.setupRouter()
	return server, nil
}

// Handler returns the underlying router, for tests.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Run serves until the context is cancelled, then drains in-flight requests.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    server.cfg.ListenAddr,
		Handler: server.router,
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("http listening", zap.String("addr", server.cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.cfg.ShutdownTimeout)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (server *Server) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     server.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.POST("/quote", server.handleQuote)
	api.POST("/reserve", server.handleReserve)
	api.POST("/holds/:id/convert", server.handleConvertHold)
	api.GET("/bookings/:id", server.handleGetBooking)
	api.POST("/bookings/:id/authorize-payment", server.handleAuthorizePayment)
	api.POST("/bookings/:id/cancel", server.handleCancelBooking)

	router.POST("/webhooks/payment", server.handlePaymentWebhook)

	admin := router.Group("/admin")
	admin.Use(adminAuthMiddleware([]byte(server.cfg.AdminJWTSecret)))
	admin.POST("/bookings/:id/force-cancel", server.handleForceCancel)
	admin.POST("/bookings/:id/refunds", server.handleCreateRefund)
	admin.POST("/statements/generate", server.handleGenerateStatement)
	admin.POST("/statements/:id/finalize", server.handleFinalizeStatement)
	admin.POST("/statements/:id/void", server.handleVoidStatement)
	admin.POST("/payouts", server.handleCreatePayout)
	admin.POST("/payouts/:id/mark-processing", server.handleMarkPayoutProcessing)
	admin.POST("/payouts/:id/mark-succeeded", server.handleMarkPayoutSucceeded)
	admin.POST("/payouts/:id/mark-failed", server.handleMarkPayoutFailed)
	admin.POST("/payouts/:id/cancel", server.handleCancelPayout)

	return router
}
