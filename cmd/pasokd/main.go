// Command pasokd serves the pasok sign-up and sign-in endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"go.uber.org/zap"

	"github.com/lborres/pasok"
	fiberadapter "github.com/lborres/pasok/adapters/fiber"
	googleadapter "github.com/lborres/pasok/adapters/google"
	mongoadapter "github.com/lborres/pasok/adapters/mongo"
	pgxadapter "github.com/lborres/pasok/adapters/pgx"
	sqliteadapter "github.com/lborres/pasok/adapters/sqlite"
)

func main() {
	configPath := flag.String("config", ConfigFile, "path to the yaml config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "pasokd:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogDev, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	hasher, err := pasok.NewPasswordHandler(cfg.Hasher)
	if err != nil {
		return err
	}

	app := fiber.New()
	if cfg.LogDev {
		// Request logging for local debugging only.
		app.Use(fiberlogger.New())
	}

	opts := []fiberadapter.Option{fiberadapter.WithCookie("pasok_session", cfg.SecureCookie)}
	if cfg.GoogleClientID != "" {
		verifier, err := googleadapter.New(ctx, cfg.GoogleClientID)
		if err != nil {
			return err
		}
		opts = append(opts, fiberadapter.WithAssertionVerifier(verifier))
	}
	httpAdapter := fiberadapter.New(app, opts...)

	p, err := pasok.New(pasok.Config{
		Secret:         cfg.Secret,
		Store:          store,
		HTTP:           httpAdapter,
		Logger:         logger,
		SessionConfig:  &pasok.SessionConfig{MaxAge: cfg.SessionMaxAge},
		PasswordHasher: hasher,
		BasePath:       cfg.BasePath,
	})
	if err != nil {
		return fmt.Errorf("could not create pasok instance: %w", err)
	}

	// Example of an application route behind the session middleware.
	app.Get("/me", httpAdapter.RequireSession(p), func(c fiber.Ctx) error {
		view, _ := fiberadapter.SessionFrom(c)
		return c.JSON(view.User)
	})

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		_ = app.Shutdown()
	}()

	logger.Info("listening", zap.String("address", cfg.Address), zap.String("store", cfg.Store))
	return app.Listen(cfg.Address)
}

func newLogger(dev bool, level string) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if dev {
		zc = zap.NewDevelopmentConfig()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zc.Level = lvl
	return zc.Build()
}

// openStore connects and migrates the configured credential store.
func openStore(ctx context.Context, cfg *config) (pasok.CredentialStore, func(), error) {
	switch cfg.Store {
	case "sqlite":
		s, err := sqliteadapter.Open(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return s, func() { _ = s.Close() }, nil

	case "postgres":
		s, err := pgxadapter.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return s, s.Close, nil

	case "mongo":
		s, err := mongoadapter.Connect(ctx, cfg.DSN, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close(context.Background())
			return nil, nil, fmt.Errorf("migrate mongo: %w", err)
		}
		return s, func() { _ = s.Close(context.Background()) }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q (want sqlite, postgres or mongo)", cfg.Store)
	}
}
