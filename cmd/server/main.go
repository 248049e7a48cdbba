package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/backend"
	"finance-tracker/internal/config"
	"finance-tracker/internal/events"
	"finance-tracker/internal/handlers"
	"finance-tracker/internal/logger"
	"finance-tracker/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const requestTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(cfg.LogLevel)
	logCfg.Format = cfg.LogFormat
	logCfg.Component = "server"
	log := logger.New(logCfg)
	logger.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("Server error", "error", err)
		os.Exit(1)
	}
	log.Info("Server stopped gracefully")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(backend.Config{
		Type:     backend.Type(cfg.DataBackend),
		DBPath:   cfg.DBPath,
		BoltPath: cfg.BoltPath,
	}, log.WithComponent("storage").Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close store", "error", err)
		}
	}()

	issuer, err := auth.NewIssuer([]byte(cfg.JWTSecret))
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	deps := service.Deps{
		Store:    store,
		Hasher:   auth.NewHasher(cfg.BcryptCost),
		Tokens:   issuer,
		TokenTTL: cfg.TokenTTL,
		Logger:   log.WithComponent("service").Logger,
	}
	if cfg.AMQPURL != "" {
		publisher, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Warn("Event publishing disabled", "error", err)
		} else {
			defer publisher.Close()
			deps.Publisher = publisher
			log.Info("Publishing events", "exchange", cfg.AMQPExchange)
		}
	}
	svc := service.New(deps)

	if err := bootstrapAdmin(ctx, svc, cfg, log); err != nil {
		return err
	}
	if n, err := store.UserCount(ctx); err == nil {
		log.Info("Store ready", "backend", cfg.DataBackend, "users", n)
	}

	httpLog := log.WithComponent("http")
	h := handlers.NewHandlers(svc, httpLog.Logger)
	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        setupRouter(h, httpLog),
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   requestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting finance tracker", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// bootstrapAdmin registers the configured account unless it already exists.
func bootstrapAdmin(ctx context.Context, svc *service.Service, cfg *config.Config, log *logger.Logger) error {
	if cfg.AdminUser == "" {
		return nil
	}
	_, err := svc.Register(ctx, cfg.AdminUser, cfg.AdminPassword)
	switch {
	case err == nil:
		log.Info("Created bootstrap user", "username", cfg.AdminUser)
	case errors.Is(err, service.ErrUserExists):
		log.Debug("Bootstrap user already exists", "username", cfg.AdminUser)
	default:
		return fmt.Errorf("failed to create bootstrap user: %w", err)
	}
	return nil
}

func setupRouter(h *handlers.Handlers, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Mount("/", h.Routes())
	return r
}
