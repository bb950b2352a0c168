package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openbarn/authgate/internal/auth/cache"
	memcache "github.com/openbarn/authgate/internal/auth/cache/drivers/memory"
	rediscache "github.com/openbarn/authgate/internal/auth/cache/drivers/redis"
	httpapi "github.com/openbarn/authgate/internal/auth/http"
	"github.com/openbarn/authgate/internal/auth/mail"
	"github.com/openbarn/authgate/internal/auth/service"
	"github.com/openbarn/authgate/internal/auth/store"
	"github.com/openbarn/authgate/internal/auth/store/drivers/sqlite"
	"github.com/openbarn/authgate/pkg/jwtx"
	"github.com/openbarn/authgate/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db     store.Store
	cache  cache.Cache
	mailer mail.Dispatcher
	signer jwtx.Signer
	keys   *jwtx.KeySet

	// Services
	verifyCodeService   *service.VerifyCodeService
	credentialService   *service.CredentialService
	qrSessionService    *service.QrSessionService
	tokenService        *service.TokenService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "authgate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.TransportSecret == "" {
		return nil, fmt.Errorf("AUTH_TRANSPORT_SECRET is required")
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initCache(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	signer, keys, err := InitSigningKeys(cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		_ = app.cache.Close()
		return nil, err
	}
	app.signer = signer
	app.keys = keys

	app.initMail()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("authgate starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down authgate...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.cache.Close(); err != nil {
		app.logger.Error("error closing cache", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("authgate stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initCache selects the cache backend. Memory is single-process only; any
// multi-instance deployment needs redis so QR state is shared.
func (app *Application) initCache() error {
	switch app.cfg.CacheDriver {
	case "redis":
		if app.cfg.RedisAddr == "" {
			return fmt.Errorf("AUTH_REDIS_ADDR is required when AUTH_CACHE_DRIVER=redis")
		}
		c := rediscache.New(rediscache.Config{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
			DB:       app.cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Ping(ctx); err != nil {
			return fmt.Errorf("failed to reach redis at %s: %w", app.cfg.RedisAddr, err)
		}
		app.cache = c
		app.logger.Info("redis cache connected", "addr", app.cfg.RedisAddr)
	case "memory":
		app.cache = memcache.New()
		app.logger.Info("in-memory cache enabled, QR sessions will not be shared across instances")
	default:
		return fmt.Errorf("unknown cache driver %q", app.cfg.CacheDriver)
	}
	return nil
}

// initMail selects the mail dispatcher. Without an SMTP host the codes go
// to the log, which is enough for dev.
func (app *Application) initMail() {
	if app.cfg.SMTPHost == "" {
		app.mailer = mail.Log{}
		app.logger.Warn("no SMTP host configured, verification codes will be logged")
		return
	}

	app.mailer = mail.NewSMTP(mail.SMTPConfig{
		Host:     app.cfg.SMTPHost,
		Port:     app.cfg.SMTPPort,
		Username: app.cfg.SMTPUsername,
		Password: app.cfg.SMTPPassword,
		From:     app.cfg.SMTPFrom,
	})
	app.logger.Info("smtp dispatcher configured", "host", app.cfg.SMTPHost, "from", app.cfg.SMTPFrom)
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	verifier := jwtx.NewCommonEdDSA(app.keys, app.cfg.Issuer)

	app.tokenService = &service.TokenService{
		Signer:     app.signer,
		Verifier:   verifier,
		Store:      app.db,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
	}

	app.verifyCodeService = &service.VerifyCodeService{
		Cache:       app.cache,
		Mail:        app.mailer,
		CodeTTL:     app.cfg.CodeTTL,
		MailTimeout: app.cfg.MailTimeout,
	}

	app.credentialService = &service.CredentialService{
		Store:           app.db,
		Codes:           app.verifyCodeService,
		Directory:       &service.StoreDirectory{Store: app.db},
		Tokens:          app.tokenService,
		TransportSecret: app.cfg.TransportSecret,
	}

	app.qrSessionService = &service.QrSessionService{
		Cache:        app.cache,
		Store:        app.db,
		Tokens:       app.tokenService,
		SessionTTL:   app.cfg.QrSessionTTL,
		ConfirmTTL:   app.cfg.QrConfirmTTL,
		CreateLimit:  int64(app.cfg.QrCreateLimit),
		CreateWindow: app.cfg.QrCreateWindow,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.AuditRetention,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keys,
		BuildVersion,
		app.db,
		app.cache,
		app.logger,
	)

	// Wire services to router
	router.VerifyCodeService = app.verifyCodeService
	router.CredentialService = app.credentialService
	router.QrSessionService = app.qrSessionService
	router.TokenService = app.tokenService
	router.ApplyRoutes(app.cfg.AccessTTL, app.cfg.SecureCookies)

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
