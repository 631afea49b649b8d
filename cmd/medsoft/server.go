package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/medsoft/medsoft/internal/config"
	"github.com/medsoft/medsoft/internal/domain/chief"
	"github.com/medsoft/medsoft/internal/domain/reception"
	"github.com/medsoft/medsoft/internal/platform/db"
	"github.com/medsoft/medsoft/internal/platform/middleware"
	"github.com/medsoft/medsoft/internal/platform/websocket"
)

const (
	shutdownTimeout     = 10 * time.Second
	receptionStaticPage = "/static/reception.html"
)

func runReception() error {
	cfg, err := loadConfig(config.ServiceReception)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	database, err := openDatabase(ctx, cfg, reception.Migrations(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer database.Close()

	notifier := reception.NewChiefClient(cfg.ChiefServerURL, cfg.ChiefProtocol, cfg.ChiefNotifyTimeout, cfg.ChiefTLSInsecure)
	svc := reception.NewService(reception.NewRepository(database), notifier, logger, reception.Options{
		Protocol:    cfg.ChiefProtocol,
		ListLimit:   cfg.PatientListLimit,
		LogMessages: cfg.MessageLog,
	})

	staticPage := ""
	if cfg.StaticDir != "" {
		staticPage = receptionStaticPage
	}

	e := newEcho(cfg, database, logger)
	reception.NewHandler(svc, staticPage).RegisterRoutes(e)

	logger.Info().
		Str("chief_url", cfg.ChiefServerURL).
		Str("protocol", cfg.ChiefProtocol).
		Msg("reception configured")

	return serve(e, cfg, logger, nil)
}

func runChief() error {
	cfg, err := loadConfig(config.ServiceChief)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	database, err := openDatabase(ctx, cfg, chief.Migrations(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer database.Close()

	hub := websocket.NewHub(logger, websocket.Options{
		HeartbeatInterval: cfg.WSHeartbeat,
		WriteTimeout:      cfg.WSWriteTimeout,
		QueueSize:         cfg.WSQueueSize,
	})
	done := make(chan struct{})
	go hub.Run(done)

	svc := chief.NewService(chief.NewRepository(database), hub, logger, chief.Options{
		ListLimit:   cfg.PatientListLimit,
		LogMessages: cfg.MessageLog,
	})

	e := newEcho(cfg, database, logger)
	chief.NewHandler(svc).RegisterRoutes(e)
	websocket.NewWebSocketHandler(hub, svc.Snapshot, cfg.CORSOrigins).RegisterRoutes(e)

	return serve(e, cfg, logger, func() {
		close(done)
		hub.Close()
	})
}

func loadConfig(service string) (*config.Config, error) {
	cfg, err := config.Load(service)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger writes JSON to stdout, or human-readable lines in development.
func newLogger(cfg *config.Config) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	return zerolog.New(out).With().Timestamp().Str("service", cfg.Service).Logger()
}

// openDatabase connects to the configured store and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config, migrations fs.FS, logger zerolog.Logger) (*db.Database, error) {
	database, err := db.Open(ctx, dbOptions(cfg))
	if err != nil {
		return nil, err
	}

	migrator, err := database.Migrator(migrations)
	if err != nil {
		database.Close()
		return nil, err
	}
	applied, err := migrator.Up(ctx)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info().Str("driver", database.Driver).Int("migrations_applied", applied).Msg("connected to database")
	return database, nil
}

func dbOptions(cfg *config.Config) db.Options {
	return db.Options{
		Driver:   cfg.DBDriver,
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Schema:   cfg.Service,
	}
}

// newEcho builds a server with the middleware and operational routes shared
// by both services.
func newEcho(cfg *config.Config, database *db.Database, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(echomw.BodyLimit("1M"))

	if cfg.StaticDir != "" {
		e.Static("/static", cfg.StaticDir)
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health/db", db.HealthHandler(database))
	return e
}

// serve runs e until SIGINT or SIGTERM, then calls beforeShutdown and drains
// in-flight requests.
func serve(e *echo.Echo, cfg *config.Config, logger zerolog.Logger, beforeShutdown func()) error {
	errCh := make(chan error, 1)
	go func() {
		addr := cfg.Addr()
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info().Msg("shutting down server")
	if beforeShutdown != nil {
		beforeShutdown()
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// migrationsFor returns the embedded schema of a service.
func migrationsFor(service string) (fs.FS, error) {
	switch service {
	case config.ServiceReception:
		return reception.Migrations(), nil
	case config.ServiceChief:
		return chief.Migrations(), nil
	}
	return nil, fmt.Errorf("unknown service %q (want %s or %s)", service, config.ServiceReception, config.ServiceChief)
}

func printStatus(w io.Writer, service string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for %s\n", service)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}
