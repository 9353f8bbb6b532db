package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/waypoint-hq/field-expense/internal"
	"github.com/waypoint-hq/field-expense/internal/advance"
	advancepg "github.com/waypoint-hq/field-expense/internal/advance/postgres"
	"github.com/waypoint-hq/field-expense/internal/audit"
	auditpg "github.com/waypoint-hq/field-expense/internal/audit/postgres"
	"github.com/waypoint-hq/field-expense/internal/auth"
	"github.com/waypoint-hq/field-expense/internal/distance"
	"github.com/waypoint-hq/field-expense/internal/expense"
	expensepg "github.com/waypoint-hq/field-expense/internal/expense/postgres"
	"github.com/waypoint-hq/field-expense/internal/journey"
	journeypg "github.com/waypoint-hq/field-expense/internal/journey/postgres"
	"github.com/waypoint-hq/field-expense/internal/ledger"
	ledgerpg "github.com/waypoint-hq/field-expense/internal/ledger/postgres"
	"github.com/waypoint-hq/field-expense/internal/monthlock"
	monthlockpg "github.com/waypoint-hq/field-expense/internal/monthlock/postgres"
	"github.com/waypoint-hq/field-expense/internal/transport"
	"github.com/waypoint-hq/field-expense/internal/transport/rest"
	"github.com/waypoint-hq/field-expense/internal/user"
	userpg "github.com/waypoint-hq/field-expense/internal/user/postgres"
	"github.com/waypoint-hq/field-expense/pkg/logger"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Router *chi.Mux
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down...", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(os.Getenv("APP_ENV"))
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm over pgx pool: %w", err)
	}

	// repositories
	userRepo := userpg.NewUserRepository(gormDB)
	journeyRepo := journeypg.NewJourneyRepository(gormDB)
	expenseRepo := expensepg.NewExpenseRepository(gormDB)
	advanceRepo := advancepg.NewAdvanceRepository(gormDB)
	ledgerRepo := ledgerpg.NewLedgerRepository(gormDB)
	lockRepo := monthlockpg.NewMonthLockRepository(gormDB)
	auditRepo := auditpg.NewAuditRepository(gormDB)

	// the optional distance oracle degrades to Haversine-only when unset
	var oracle distance.Oracle
	if config.Oracle.Enabled() {
		oracle = distance.NewMatrixClient(distance.MatrixClientConfig{
			BaseURL:        config.Oracle.BaseURL,
			APIKey:         config.Oracle.APIKey,
			AttemptTimeout: config.Oracle.AttemptTimeout,
		}, lg)
	}
	estimator := distance.NewEstimator(oracle, config.Oracle.MaxRetries, config.Oracle.InitialBackoff, lg)

	// services
	auditSink := audit.NewSink(auditRepo, lg)
	userService := user.NewService(userRepo, lg)
	ledgerService := ledger.NewService(ledgerRepo, lg)
	lockService := monthlock.NewService(lockRepo, auditSink, lg)
	expenseService := expense.NewService(expenseRepo, journeyRepo, ledgerService, lockService, &config.Rates, auditSink, lg)
	journeyService := journey.NewService(journeyRepo, expenseService, estimator, &config.Rates, auditSink, lg)
	advanceService := advance.NewService(advanceRepo, ledgerService, userService, auditSink, lg)

	// handlers
	base := transport.NewBaseHandler(lg)
	verifier := auth.NewTokenVerifier(config.Security.JWTSecret)

	handlers := rest.Handlers{
		Auth:     auth.NewMiddleware(base, verifier, userService),
		Users:    user.NewHandler(base, userService, ledgerService),
		Journeys: journey.NewHandler(base, journeyService),
		Expenses: expense.NewHandler(base, expenseService),
		Advances: advance.NewHandler(base, advanceService),
		Locks:    monthlock.NewHandler(base, lockService),
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, db.DB, handlers, lg)

	return &Dependencies{
		Config: config,
		DB:     db,
		Router: router,
		Logger: lg,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
