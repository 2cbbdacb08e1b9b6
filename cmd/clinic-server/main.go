package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicore/clinic-server/internal/config"
	"github.com/clinicore/clinic-server/internal/domain/appointment"
	"github.com/clinicore/clinic-server/internal/domain/identity"
	"github.com/clinicore/clinic-server/internal/domain/inventory"
	"github.com/clinicore/clinic-server/internal/domain/ledger"
	"github.com/clinicore/clinic-server/internal/platform/audit"
	"github.com/clinicore/clinic-server/internal/platform/db"
	"github.com/clinicore/clinic-server/internal/platform/middleware"
	"github.com/clinicore/clinic-server/internal/platform/notification"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Platform services
	auditor := audit.NewRecorder(pool, logger, cfg.AuditBuffer)
	defer auditor.Close()

	notifier := notification.NewNotifier(
		notification.LogSender{Logger: logger},
		notification.LogSender{Logger: logger},
		notification.NewTemplateEngine(),
		logger,
		cfg.NotifyEnabled,
	)

	// Domain wiring
	identityRepo := identity.NewRepoPG(pool)

	ledgerSvc := ledger.NewService(ledger.NewRepoPG(pool))
	ledgerHandler := ledger.NewHandler(ledgerSvc)

	inventorySvc := inventory.NewService(inventory.NewRepoPG(pool), logger)
	inventoryHandler := inventory.NewHandler(inventorySvc)

	appointmentSvc := appointment.NewService(
		appointment.NewRepoPG(pool, logger),
		ledgerSvc,
		inventorySvc,
		identityRepo,
		db.TxRunner(pool),
		notifier,
		auditor,
		logger,
	)
	appointmentHandler := appointment.NewHandler(appointmentSvc)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID", "X-User-ID"},
	}))
	e.Use(middleware.Actor())

	api := e.Group("/api/v1")
	api.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))

	appointmentHandler.RegisterRoutes(api)
	ledgerHandler.RegisterRoutes(api)
	inventoryHandler.RegisterRoutes(api)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			pool, cleanup, err := openPool()
			if err != nil {
				return err
			}
			defer cleanup()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(context.Background())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			pool, cleanup, err := openPool()
			if err != nil {
				return err
			}
			defer cleanup()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// seedCmd fills an empty database with demo patients, practitioners and
// stock products for local development.
func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert demo data for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			patients, _ := cmd.Flags().GetInt("patients")
			practitioners, _ := cmd.Flags().GetInt("practitioners")
			products, _ := cmd.Flags().GetInt("products")

			pool, cleanup, err := openPool()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := context.Background()
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

			identityRepo := identity.NewRepoPG(pool)
			inventoryRepo := inventory.NewRepoPG(pool)

			faker := gofakeit.New(0)

			for i := 0; i < patients; i++ {
				phone := faker.Phone()
				email := faker.Email()
				p := &identity.Patient{Name: faker.Name(), Phone: &phone, Email: &email}
				if err := identityRepo.CreatePatient(ctx, p); err != nil {
					return fmt.Errorf("seed patient: %w", err)
				}
			}
			logger.Info().Int("count", patients).Msg("patients created")

			for i := 0; i < practitioners; i++ {
				p := &identity.Practitioner{Name: "Dr. " + faker.Name()}
				if err := identityRepo.CreatePractitioner(ctx, p); err != nil {
					return fmt.Errorf("seed practitioner: %w", err)
				}
			}
			logger.Info().Int("count", practitioners).Msg("practitioners created")

			units := []string{"un", "cx", "ml", "par"}
			for i := 0; i < products; i++ {
				p := &inventory.Product{
					Name:        faker.ProductName(),
					Quantity:    faker.Number(5, 200),
					MinQuantity: faker.Number(1, 10),
					Unit:        units[faker.Number(0, len(units)-1)],
				}
				if err := inventoryRepo.CreateProduct(ctx, p); err != nil {
					return fmt.Errorf("seed product: %w", err)
				}
			}
			logger.Info().Int("count", products).Msg("products created")

			return nil
		},
	}
	cmd.Flags().Int("patients", 25, "Number of demo patients")
	cmd.Flags().Int("practitioners", 4, "Number of demo practitioners")
	cmd.Flags().Int("products", 15, "Number of demo stock products")
	return cmd
}

func openPool() (pool *pgxpool.Pool, cleanup func(), err error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err = db.NewPool(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return pool, pool.Close, nil
}
