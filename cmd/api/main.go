package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joaquinvalderas/regenmarket-backend/api/routes"
	"github.com/joaquinvalderas/regenmarket-backend/internal/auth"
	"github.com/joaquinvalderas/regenmarket-backend/internal/cart"
	"github.com/joaquinvalderas/regenmarket-backend/internal/checkout"
	"github.com/joaquinvalderas/regenmarket-backend/internal/flags"
	"github.com/joaquinvalderas/regenmarket-backend/internal/loyalty"
	"github.com/joaquinvalderas/regenmarket-backend/internal/notifications"
	"github.com/joaquinvalderas/regenmarket-backend/internal/orders"
	"github.com/joaquinvalderas/regenmarket-backend/internal/products"
	"github.com/joaquinvalderas/regenmarket-backend/internal/reviews"
	"github.com/joaquinvalderas/regenmarket-backend/internal/users"
	"github.com/joaquinvalderas/regenmarket-backend/internal/vendorapps"
	"github.com/joaquinvalderas/regenmarket-backend/internal/vendors"
	stripewebhook "github.com/joaquinvalderas/regenmarket-backend/internal/webhooks/stripe"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/config"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/db"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/logger"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/metrics"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/migrate"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/outbox"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/redis"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/stripe"
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	productsRepo := products.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	loyaltyRepo := loyalty.NewRepository(gormDB)
	vendorsRepo := vendors.NewRepository(gormDB)
	reviewsRepo := reviews.NewRepository(gormDB)
	flagsRepo := flags.NewRepository(gormDB)
	appsRepo := vendorapps.NewRepository(gormDB)
	notificationsRepo := notifications.NewRepository(gormDB)

	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	vendorCounter := vendors.NewCounter()

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	productsService, err := products.NewService(productsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create products service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo, productsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:       dbClient,
		Orders:   ordersRepo,
		Products: productsRepo,
		Cart:     cartRepo,
		Loyalty:  loyaltyRepo,
		Vendors:  vendorCounter,
		Outbox:   outboxService,
		Logger:   logg,
		Pricing:  cfg.Checkout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:    ordersRepo,
		Tx:      dbClient,
		Outbox:  outboxService,
		Stock:   orders.NewStockRestorer(),
		Vendors: vendorCounter,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notificationsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	reviewsService, err := reviews.NewService(reviews.ServiceParams{
		Repo:      reviewsRepo,
		Products:  productsRepo,
		Purchases: ordersRepo,
		Tx:        dbClient,
		Outbox:    outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reviews service", err)
		os.Exit(1)
	}

	flagsService, err := flags.NewService(flags.ServiceParams{
		Repo:     flagsRepo,
		Products: productsRepo,
		Reviews:  reviewsRepo,
		Tx:       dbClient,
		Outbox:   outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create flags service", err)
		os.Exit(1)
	}

	applicationsService, err := vendorapps.NewService(vendorapps.ServiceParams{
		Repo:    appsRepo,
		Users:   usersRepo,
		Vendors: vendorsRepo,
		Tx:      dbClient,
		Outbox:  outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create applications service", err)
		os.Exit(1)
	}

	loyaltyService, err := loyalty.NewService(loyaltyRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create loyalty service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookTTL, "stripe")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Orders:   ordersRepo,
		Products: productsRepo,
		Cart:     cartRepo,
		Loyalty:  loyaltyRepo,
		Vendors:  vendorCounter,
		Stripe:   stripewebhook.NewPaymentIntentClient(stripeClient),
		Tx:       dbClient,
		Outbox:   outboxService,
		Guard:    webhookGuard,
		Logger:   logg,
		Metrics:  metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Auth:          authService,
			Products:      productsService,
			Cart:          cartService,
			Checkout:      checkoutService,
			Orders:        ordersService,
			Notifications: notificationsService,
			Reviews:       reviewsService,
			Flags:         flagsService,
			Applications:  applicationsService,
			Loyalty:       loyaltyService,
			Stripe:        stripeClient,
			StripeWebhook: webhookService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
