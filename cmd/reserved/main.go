package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/lodgeworks/reserve/internal/httpserver"
	"github.com/lodgeworks/reserve/internal/payments"
	"github.com/lodgeworks/reserve/internal/store/gormstore"
	"github.com/lodgeworks/reserve/internal/sweep"
	"github.com/lodgeworks/reserve/pkg/booking"
	"github.com/lodgeworks/reserve/pkg/payout"
)

const (
	flagDatabaseURL     = "database-url"
	flagListenAddr      = "listen-addr"
	flagAllowedOrigins  = "allowed-origins"
	flagAdminJWTSecret  = "admin-jwt-secret"
	flagWebhookSecret   = "webhook-secret"
	flagPaymentProvider = "payment-provider"
	flagRedirectBaseURL = "redirect-base-url"
	flagHoldTTL         = "hold-ttl"
	flagPaymentWindow   = "payment-window"
	flagSweepInterval   = "sweep-interval"

	configKeyDatabaseURL     = "database_url"
	configKeyListenAddr      = "listen_addr"
	configKeyAllowedOrigins  = "allowed_origins"
	configKeyAdminJWTSecret  = "admin_jwt_secret"
	configKeyWebhookSecret   = "webhook_secret"
	configKeyPaymentProvider = "payment_provider"
	configKeyRedirectBaseURL = "redirect_base_url"
	configKeyHoldTTL         = "hold_ttl"
	configKeyPaymentWindow   = "payment_window"
	configKeySweepInterval   = "sweep_interval"

	defaultDatabaseURL     = "sqlite:///tmp/reserve.db"
	defaultListenAddr      = ":8080"
	defaultPaymentProvider = "payfort"
	defaultRedirectBase    = "https://pay.example.com"
	defaultHoldTTL         = 15 * time.Minute
	defaultPaymentWindow   = time.Hour
	defaultSweepInterval   = time.Minute
)

type runtimeConfig struct {
	DatabaseURL     string
	ListenAddr      string
	AllowedOrigins  []string
	AdminJWTSecret  string
	WebhookSecret   string
	PaymentProvider string
	RedirectBaseURL string
	HoldTTL         time.Duration
	PaymentWindow   time.Duration
	SweepInterval   time.Duration
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "reserved: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "reserved",
		Short:         "Vacation rental reservation and payout server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or sqlite connection string")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().StringSlice(flagAllowedOrigins, nil, "CORS allowed origins")
	cmd.Flags().String(flagAdminJWTSecret, "", "HS256 secret for admin bearer tokens")
	cmd.Flags().String(flagWebhookSecret, "", "HMAC secret for payment webhook signatures")
	cmd.Flags().String(flagPaymentProvider, defaultPaymentProvider, "Payment provider name")
	cmd.Flags().String(flagRedirectBaseURL, defaultRedirectBase, "Hosted checkout base URL")
	cmd.Flags().Duration(flagHoldTTL, defaultHoldTTL, "How long a hold protects its dates")
	cmd.Flags().Duration(flagPaymentWindow, defaultPaymentWindow, "How long a pending booking waits for payment")
	cmd.Flags().Duration(flagSweepInterval, defaultSweepInterval, "Expired-inventory sweep interval")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	// A missing .env is fine; explicit env vars and flags still apply.
	_ = godotenv.Load()

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		configKeyDatabaseURL:     "DATABASE_URL",
		configKeyListenAddr:      "LISTEN_ADDR",
		configKeyAllowedOrigins:  "ALLOWED_ORIGINS",
		configKeyAdminJWTSecret:  "ADMIN_JWT_SECRET",
		configKeyWebhookSecret:   "WEBHOOK_SECRET",
		configKeyPaymentProvider: "PAYMENT_PROVIDER",
		configKeyRedirectBaseURL: "REDIRECT_BASE_URL",
		configKeyHoldTTL:         "HOLD_TTL",
		configKeyPaymentWindow:   "PAYMENT_WINDOW",
		configKeySweepInterval:   "SWEEP_INTERVAL",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}

	flagNames := map[string]string{
		configKeyDatabaseURL:     flagDatabaseURL,
		configKeyListenAddr:      flagListenAddr,
		configKeyAllowedOrigins:  flagAllowedOrigins,
		configKeyAdminJWTSecret:  flagAdminJWTSecret,
		configKeyWebhookSecret:   flagWebhookSecret,
		configKeyPaymentProvider: flagPaymentProvider,
		configKeyRedirectBaseURL: flagRedirectBaseURL,
		configKeyHoldTTL:         flagHoldTTL,
		configKeyPaymentWindow:   flagPaymentWindow,
		configKeySweepInterval:   flagSweepInterval,
	}
	for key, name := range flagNames {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	cfg.AllowedOrigins = viper.GetStringSlice(configKeyAllowedOrigins)
	cfg.AdminJWTSecret = viper.GetString(configKeyAdminJWTSecret)
	cfg.WebhookSecret = viper.GetString(configKeyWebhookSecret)
	cfg.PaymentProvider = viper.GetString(configKeyPaymentProvider)
	cfg.RedirectBaseURL = viper.GetString(configKeyRedirectBaseURL)
	cfg.HoldTTL = viper.GetDuration(configKeyHoldTTL)
	cfg.PaymentWindow = viper.GetDuration(configKeyPaymentWindow)
	cfg.SweepInterval = viper.GetDuration(configKeySweepInterval)

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database url is required")
	}
	if cfg.AdminJWTSecret == "" {
		return fmt.Errorf("admin jwt secret is required")
	}
	if cfg.WebhookSecret == "" {
		return fmt.Errorf("webhook secret is required")
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer cleanup()

	if err := prepareSchema(gormDB, driver); err != nil {
		return err
	}

	clock := func() time.Time { return time.Now().UTC() }

	bookingService, err := booking.NewService(
		gormstore.NewBookingStore(gormDB),
		clock,
		booking.WithHoldTTL(cfg.HoldTTL),
		booking.WithPaymentWindow(cfg.PaymentWindow),
		booking.WithOperationLogger(newZapOperationLogger(logger)),
	)
	if err != nil {
		return fmt.Errorf("booking service init: %w", err)
	}

	payoutService, err := payout.NewService(gormstore.NewPayoutStore(gormDB), clock)
	if err != nil {
		return fmt.Errorf("payout service init: %w", err)
	}

	adapter, err := payments.NewAdapter(
		gormstore.NewPaymentStore(gormDB),
		bookingService,
		payments.Config{
			Provider:        cfg.PaymentProvider,
			RedirectBaseURL: cfg.RedirectBaseURL,
			WebhookSecret:   cfg.WebhookSecret,
		},
		clock,
		logger,
	)
	if err != nil {
		return fmt.Errorf("payment adapter init: %w", err)
	}

	server, err := httpserver.New(httpserver.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
		AdminJWTSecret: cfg.AdminJWTSecret,
	}, bookingService, payoutService, adapter, logger)
	if err != nil {
		return fmt.Errorf("http server init: %w", err)
	}

	sweeper := sweep.New(bookingService, cfg.SweepInterval, logger)
	go sweeper.Run(ctx)

	return server.Run(ctx)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	gormConfig := &gorm.Config{}
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormConfig)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "reserve.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

func prepareSchema(db *gorm.DB, driver string) error {
	if driver != "sqlite" {
		return nil
	}
	if err := db.AutoMigrate(gormstore.AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
