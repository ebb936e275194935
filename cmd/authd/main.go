package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/authstack/auth"
)

const (
	envLocal = "local"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := setupLogger(cfg.Env)
	logger.Info("starting authd", "env", cfg.Env, "address", cfg.Server.Address)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repos := auth.NewRepositoryManager(db)
	repos.MustValidate()

	engine, err := auth.NewTokenEngine(repos.Users(), repos.RefreshTokens(), cfg,
		auth.WithTokenEngineLogger(logger))
	if err != nil {
		logger.Error("failed to build token engine", "error", err)
		os.Exit(1)
	}

	login := auth.NewLoginFlow(repos.Users(), engine,
		auth.WithLoginFlowLogger(logger))

	registration := auth.NewRegistration(repos.Users(),
		auth.WithRegistrationLogger(logger),
		auth.WithPhoneRegion(cfg.PhoneRegion))

	manager := auth.NewUserManager(repos.Users(),
		auth.WithUserManagerLogger(logger),
		auth.WithUserManagerPhoneRegion(cfg.PhoneRegion))

	if err := seedSuperAdmin(ctx, cfg, repos.Users(), logger); err != nil {
		logger.Error("failed to seed bootstrap account", "error", err)
		os.Exit(1)
	}

	app := fiber.New(fiber.Config{
		AppName:      "authd",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	if cfg.Env != envProd {
		app.Use(fiberlogger.New())
	}

	auth.RegisterRoutes(app, auth.RouterConfig{
		Engine:         engine,
		Login:          login,
		Registration:   registration,
		Manager:        manager,
		Logger:         logger,
		AdminRateLimit: cfg.Server.AdminRateLimit,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.Server.Address)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}
}

func openDB(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := auth.CreateSchema(ctx, db); err != nil {
		return nil, err
	}

	return db, nil
}

// seedSuperAdmin creates the bootstrap account when configured and absent.
func seedSuperAdmin(ctx context.Context, cfg *Config, users auth.UserStore, logger *slog.Logger) error {
	if cfg.Bootstrap.Email == "" {
		return nil
	}

	if _, err := users.ByEmail(ctx, cfg.Bootstrap.Email); err == nil {
		return nil
	} else if !repository.IsRecordNotFound(err) {
		return err
	}

	hash, err := auth.HashPassword(cfg.Bootstrap.Password)
	if err != nil {
		return err
	}

	username := cfg.Bootstrap.Username
	if username == "" {
		username = "superadmin"
	}

	user, err := users.Create(ctx, &auth.User{
		Username:     username,
		Email:        cfg.Bootstrap.Email,
		FirstName:    "Super",
		LastName:     "Admin",
		PasswordHash: hash,
		Status:       auth.UserStatusActive,
	})
	if err != nil {
		return err
	}

	for _, role := range []auth.RoleName{auth.RoleUser, auth.RoleAdmin, auth.RoleSuperAdmin} {
		if err := users.AddRole(ctx, user, role); err != nil {
			return err
		}
	}

	logger.Info("bootstrap account created", "email", cfg.Bootstrap.Email)
	return nil
}
