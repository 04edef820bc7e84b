package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mallhive/mallhive-backend/api/controllers"
	"github.com/mallhive/mallhive-backend/api/routes"
	"github.com/mallhive/mallhive-backend/internal/auth"
	"github.com/mallhive/mallhive-backend/internal/cart"
	"github.com/mallhive/mallhive-backend/internal/checkout"
	"github.com/mallhive/mallhive-backend/internal/orders"
	"github.com/mallhive/mallhive-backend/internal/payments"
	"github.com/mallhive/mallhive-backend/internal/products"
	"github.com/mallhive/mallhive-backend/internal/reporting"
	"github.com/mallhive/mallhive-backend/internal/shops"
	"github.com/mallhive/mallhive-backend/internal/stock"
	"github.com/mallhive/mallhive-backend/internal/users"
	"github.com/mallhive/mallhive-backend/pkg/config"
	"github.com/mallhive/mallhive-backend/pkg/db"
	"github.com/mallhive/mallhive-backend/pkg/logger"
	"github.com/mallhive/mallhive-backend/pkg/metrics"
	"github.com/mallhive/mallhive-backend/pkg/migrate"
	"github.com/mallhive/mallhive-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	svcs, err := buildServices(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	httpMetrics := metrics.NewHTTPMetrics()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	instance := os.Getenv("DYNO")
	if instance == "" {
		instance = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, svcs, routes.Deps{
			Idempotency: redisClient,
			HTTPMetrics: httpMetrics,
			Readiness: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
			},
		}),
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stopCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Services, error) {
	gdb := dbClient.DB()

	userRepo := users.NewRepository(gdb)
	orderRepo := orders.NewRepository(gdb)
	paymentRepo := payments.NewRepository(gdb)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:     userRepo,
		RateLimiter:  redisClient,
		JWTConfig:    cfg.JWT,
		PasswordCfg:  cfg.Password,
		RateLimitCfg: cfg.AuthRateLimit,
		Logger:       logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	productService, err := products.NewService(products.NewRepository(gdb))
	if err != nil {
		return routes.Services{}, err
	}

	shopService, err := shops.NewService(shops.NewRepository(gdb))
	if err != nil {
		return routes.Services{}, err
	}

	stockLedger, err := stock.NewLedger(stock.NewRepository(gdb))
	if err != nil {
		return routes.Services{}, err
	}

	cartService, err := cart.NewService(cart.NewRepository(gdb), dbClient, productService, shopService, logg)
	if err != nil {
		return routes.Services{}, err
	}

	checkoutService, err := checkout.NewService(cartService, productService, shopService, stockLedger, orderRepo, paymentRepo, dbClient, logg)
	if err != nil {
		return routes.Services{}, err
	}

	orderService, err := orders.NewService(orderRepo, dbClient, stockLedger, shopService, logg)
	if err != nil {
		return routes.Services{}, err
	}

	paymentService, err := payments.NewService(paymentRepo, dbClient, orderRepo, logg)
	if err != nil {
		return routes.Services{}, err
	}

	reportingService, err := reporting.NewService(reporting.NewRepository(gdb))
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Auth:      authService,
		Cart:      cartService,
		Checkout:  checkoutService,
		Orders:    orderService,
		Payments:  paymentService,
		Reporting: reportingService,
	}, nil
}
