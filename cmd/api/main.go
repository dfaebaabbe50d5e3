package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/davidnjeri/carhub-backend/api/routes"
	authsvc "github.com/davidnjeri/carhub-backend/internal/auth"
	"github.com/davidnjeri/carhub-backend/internal/listings"
	"github.com/davidnjeri/carhub-backend/internal/payments"
	"github.com/davidnjeri/carhub-backend/internal/subscriptions"
	"github.com/davidnjeri/carhub-backend/internal/users"
	"github.com/davidnjeri/carhub-backend/pkg/auth/session"
	"github.com/davidnjeri/carhub-backend/pkg/clock"
	"github.com/davidnjeri/carhub-backend/pkg/config"
	"github.com/davidnjeri/carhub-backend/pkg/db"
	"github.com/davidnjeri/carhub-backend/pkg/logger"
	"github.com/davidnjeri/carhub-backend/pkg/metrics"
	"github.com/davidnjeri/carhub-backend/pkg/migrate"
	"github.com/davidnjeri/carhub-backend/pkg/mpesa"
	"github.com/davidnjeri/carhub-backend/pkg/redis"
	"github.com/davidnjeri/carhub-backend/pkg/security"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server exited with error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(cfg.DB)
	if err != nil {
		return fmt.Errorf("bootstrapping database: %w", err)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		return multierr.Append(fmt.Errorf("running dev migrations: %w", err), dbClient.Close())
	}

	redisClient := redis.New(cfg.Redis)

	closeAll := func() error {
		return multierr.Combine(dbClient.Close(), redisClient.Close())
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return multierr.Append(fmt.Errorf("creating session manager: %w", err), closeAll())
	}

	mpesaClient, err := mpesa.NewClient(cfg.Mpesa)
	if err != nil {
		return multierr.Append(fmt.Errorf("creating mpesa client: %w", err), closeAll())
	}

	registry := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(registry)
	billingMetrics := metrics.NewBillingMetrics(registry)

	clk := clock.System()
	gdb := dbClient.Gorm()

	usersRepo := users.NewRepository(gdb)
	subscriptionsService := subscriptions.NewService(dbClient, subscriptions.NewRepository(gdb), logg, clk, billingMetrics)
	listingsService := listings.NewService(listings.NewRepository(gdb), subscriptionsService, usersRepo, logg)
	paymentsService := payments.NewService(
		payments.NewRepository(gdb),
		mpesaClient,
		redisClient,
		subscriptionsService,
		logg,
		clk,
		cfg.Payments,
		billingMetrics,
	)
	authService := authsvc.NewService(
		usersRepo,
		security.NewHasher(cfg.Password),
		sessionManager,
		subscriptionsService,
		logg,
		clk,
		cfg.JWT,
	)

	handler := routes.NewRouter(
		cfg, logg, dbClient, redisClient, sessionManager,
		httpMetrics, registry,
		authService, listingsService, subscriptionsService, paymentsService,
	)

	addr := fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port)
	server := &http.Server{Addr: addr, Handler: handler}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	logCtx := logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "addr": addr})
	logg.Info(logCtx, "starting api server")

	var runErr error
	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("api server stopped unexpectedly: %w", err)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutdown signal received, draining")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			runErr = fmt.Errorf("draining api server: %w", err)
		}
		<-serveErr
	}

	return multierr.Append(runErr, closeAll())
}
