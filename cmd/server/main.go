// Package main is the entry point for the planilla server binary.
// It dispatches four subcommands (serve, migrate, bootstrap and version) with
// a switch on os.Args. serve applies pending migrations on startup unless
// database.auto_migrate is false.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/planilla-hr/planilla/internal/api"
	"github.com/planilla-hr/planilla/internal/audit"
	"github.com/planilla-hr/planilla/internal/auth"
	"github.com/planilla-hr/planilla/internal/config"
	"github.com/planilla-hr/planilla/internal/db"
	"github.com/planilla-hr/planilla/internal/records"
	"github.com/planilla-hr/planilla/internal/safego"
	"github.com/planilla-hr/planilla/internal/schema"
	"github.com/planilla-hr/planilla/internal/schema/catalog"
	"github.com/planilla-hr/planilla/internal/scope"
	"github.com/planilla-hr/planilla/internal/services"
	"github.com/planilla-hr/planilla/internal/store"
	"github.com/planilla-hr/planilla/internal/store/sqlstore"
	"github.com/planilla-hr/planilla/internal/telemetry"
)

const (
	version = "0.1.0"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if command == "version" {
		fmt.Printf("planilla v%s\n", version)
		return nil
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	registry, err := catalog.NewRegistry()
	if err != nil {
		return fmt.Errorf("failed to build record catalog: %w", err)
	}

	switch command {
	case "serve":
		return serve(cfg, registry)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, registry, os.Args[2])
	case "bootstrap":
		if len(os.Args) < 5 {
			return fmt.Errorf("usage: PLN_BOOTSTRAP_PASSWORD=... %s bootstrap <organization> <username> <email>", os.Args[0])
		}
		return bootstrap(cfg, registry, os.Args[2], os.Args[3], os.Args[4], os.Getenv("PLN_BOOTSTRAP_PASSWORD"))
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, bootstrap, version", command)
	}
}

func connect(cfg *config.Config) (*sqlx.DB, error) {
	database, err := db.Connect(cfg.Database.Driver, cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("connected to database", "driver", cfg.Database.Driver)
	return database, nil
}

func newService(cfg *config.Config, registry *schema.Registry) *services.RecordService {
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	engine := records.NewEngine(registry, hasher, cfg.Records.MaxDepth)
	return services.NewRecordService(registry, engine, hasher)
}

func serve(cfg *config.Config, registry *schema.Registry) error {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}

	database, err := connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if cfg.Database.AutoMigrate {
		if err := db.RunMigrations(database, registry, "up"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		logMigrationVersion(database)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	telemetry.StartDBStatsCollector(ctx, database.DB, 15*time.Second)

	var shipper audit.Shipper
	if cfg.Audit.Enabled {
		ms, err := audit.NewMultiShipper(cfg.Audit.Shippers)
		if err != nil {
			return fmt.Errorf("failed to configure audit shippers: %w", err)
		}
		defer ms.Close()
		if ms.Len() > 0 {
			shipper = ms
		}
		slog.Info("audit logging enabled", "shippers", ms.Len())
	}

	if cfg.Telemetry.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort)
		safego.Go("metrics-server", func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "error", err)
			}
		})
	}

	router, bgServices := api.NewRouter(api.Dependencies{
		Config:   cfg,
		Registry: registry,
		Store:    sqlstore.New(database, registry),
		Service:  newService(cfg, registry),
		Tokens:   tokens,
		Shipper:  shipper,
		DB:       database,
	})

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.Server.GetAddress(), "tls", cfg.Security.TLS.Enabled,
			"record_types", len(registry.Types()))

		var err error
		if cfg.Security.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	bgServices.Shutdown()

	slog.Info("server stopped gracefully")
	return nil
}

func runMigrations(cfg *config.Config, registry *schema.Registry, direction string) error {
	database, err := connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	slog.Info("running migrations", "direction", direction)
	if err := db.RunMigrations(database, registry, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logMigrationVersion(database)
	return nil
}

func logMigrationVersion(database *sqlx.DB) {
	if database.DriverName() == db.DriverSQLite {
		return
	}
	v, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		slog.Warn("failed to get migration version", "error", err)
		return
	}
	slog.Info("database schema version", "version", v, "dirty", dirty)
}

// bootstrap creates the first organization and a super user inside it. It
// runs as a super caller because no user exists yet to authorize it.
func bootstrap(cfg *config.Config, registry *schema.Registry, orgName, username, email, password string) error {
	if password == "" {
		return errors.New("PLN_BOOTSTRAP_PASSWORD must be set")
	}

	database, err := connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if cfg.Database.AutoMigrate {
		if err := db.RunMigrations(database, registry, "up"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	svc := newService(cfg, registry)
	system := scope.Caller{IsSuper: true, IsActive: true}
	ctx := context.Background()

	var user *records.Record
	err = store.RunInTx(ctx, sqlstore.New(database, registry), func(uow store.UnitOfWork) error {
		org, err := svc.Create(ctx, uow, system, schema.OrganizationType, map[string]any{
			"organization_name": orgName,
		})
		if err != nil {
			return err
		}
		user, err = svc.Create(ctx, uow, system, "app_user", map[string]any{
			"username":                 username,
			"email":                    email,
			"password":                 password,
			"is_owner":                 true,
			"is_super":                 true,
			schema.OrganizationField: org.ID,
		})
		return err
	})
	var ue *records.UniquenessConflictError
	if errors.As(err, &ue) {
		return fmt.Errorf("already bootstrapped: %w", err)
	}
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	slog.Info("bootstrap complete", "organization", orgName, "username", username, "user_id", user.ID)
	return nil
}
