package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/dmforge/encounter-engine/pkg/auth"
	"github.com/dmforge/encounter-engine/pkg/config"
	"github.com/dmforge/encounter-engine/pkg/database"
	"github.com/dmforge/encounter-engine/pkg/handlers"
	"github.com/dmforge/encounter-engine/pkg/logging"
	"github.com/dmforge/encounter-engine/pkg/middleware"
	"github.com/dmforge/encounter-engine/pkg/repositories"
	"github.com/dmforge/encounter-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", cfg.Database.Database),
	)

	ctx := context.Background()

	connStr := cfg.Database.ConnectionString()
	logger.Info("Connecting to database",
		zap.String("target", logging.SanitizeConnectionString(connStr)))

	// Migrations run over database/sql; the pool below is pgx-native.
	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		logger.Fatal("Failed to open migration connection",
			zap.String("error", logging.SanitizeError(err)))
	}
	if err := database.RunMigrations(sqlDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations",
			zap.String("error", logging.SanitizeError(err)))
	}
	_ = sqlDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database",
			zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	if err != nil {
		logger.Fatal("Failed to create token service", zap.Error(err))
	}
	authMiddleware := auth.NewMiddleware(tokens, logger)

	// Repositories
	encounterRepo := repositories.NewEncounterRepository(db)
	userRepo := repositories.NewUserRepository(db)
	monsterRepo := repositories.NewMonsterRepository(db)

	// Services
	encounterService := services.NewEncounterService(encounterRepo, userRepo, monsterRepo, logger)
	userService := services.NewUserService(userRepo, logger)

	// Handlers
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg).RegisterRoutes(mux)
	handlers.NewUsersHandler(userService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewEncountersHandler(encounterService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewMonstersHandler(monsterRepo, logger).RegisterRoutes(mux, authMiddleware)

	handler := middleware.RequestLogger(logger)(mux)

	addr := net.JoinHostPort(cfg.BindAddr, cfg.Port)
	logger.Info("Starting encounter-engine", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// newLogger builds a production logger, or a development logger for the
// local environment.
func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
