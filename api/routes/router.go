package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/joaquinvalderas/regenmarket-backend/api/controllers"
	webhookcontrollers "github.com/joaquinvalderas/regenmarket-backend/api/controllers/webhooks"
	"github.com/joaquinvalderas/regenmarket-backend/api/middleware"
	"github.com/joaquinvalderas/regenmarket-backend/internal/auth"
	"github.com/joaquinvalderas/regenmarket-backend/internal/cart"
	checkoutsvc "github.com/joaquinvalderas/regenmarket-backend/internal/checkout"
	"github.com/joaquinvalderas/regenmarket-backend/internal/flags"
	"github.com/joaquinvalderas/regenmarket-backend/internal/loyalty"
	"github.com/joaquinvalderas/regenmarket-backend/internal/notifications"
	"github.com/joaquinvalderas/regenmarket-backend/internal/orders"
	"github.com/joaquinvalderas/regenmarket-backend/internal/products"
	"github.com/joaquinvalderas/regenmarket-backend/internal/reviews"
	"github.com/joaquinvalderas/regenmarket-backend/internal/vendorapps"
	stripewebhook "github.com/joaquinvalderas/regenmarket-backend/internal/webhooks/stripe"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/config"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/db"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/logger"
	pkgredis "github.com/joaquinvalderas/regenmarket-backend/pkg/redis"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/stripe"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *pkgredis.Client
	Auth          auth.Service
	Products      products.Service
	Cart          cart.Service
	Checkout      checkoutsvc.Service
	Orders        orders.Service
	Notifications notifications.Service
	Reviews       reviews.Service
	Flags         flags.Service
	Applications  vendorapps.Service
	Loyalty       *loyalty.Service
	Stripe        *stripe.Client
	StripeWebhook *stripewebhook.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy("login", time.Minute, 20, 5)
	registerPolicy := middleware.NewAuthRateLimitPolicy("register", time.Minute, 10, 3)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	r.Route("/api/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.Stripe, logg))
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, logg)).Post("/register", controllers.AuthRegister(deps.Auth, logg))
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", controllers.BrowseProducts(deps.Products, logg))
		r.Get("/{productID}", controllers.GetProduct(deps.Products, logg))
		r.Get("/{productID}/reviews", controllers.ListProductReviews(deps.Reviews, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(deps.Redis, logg))
			r.Post("/{productID}/reviews", controllers.CreateReview(deps.Reviews, logg))
		})
	})

	r.Route("/api/user", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(deps.Cart, logg))
			r.Put("/", controllers.CartPut(deps.Cart, logg))
			r.Delete("/{productID}", controllers.CartRemove(deps.Cart, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListUserOrders(deps.Orders, logg))
			r.Post("/", controllers.Checkout(deps.Checkout, logg))
			r.Get("/{orderID}", controllers.GetOrder(deps.Orders, logg))
			r.Post("/{orderID}/cancel", controllers.CancelOrder(deps.Orders, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})

		r.Get("/loyalty", controllers.LoyaltyBalance(deps.Loyalty, logg))
	})

	r.Route("/api/reviews", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))
		r.Delete("/{reviewID}", controllers.DeleteReview(deps.Reviews, logg))
		r.With(middleware.RequireRole(logg, enums.UserRoleVendor)).
			Post("/{reviewID}/reply", controllers.ReplyReview(deps.Reviews, logg))
	})

	r.Route("/api/flags", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))
		r.Post("/", controllers.CreateFlag(deps.Flags, logg))
	})

	r.Route("/api/vendor", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		// application endpoints are open to customers applying for the role
		r.Route("/applications", func(r chi.Router) {
			r.Post("/", controllers.SubmitApplication(deps.Applications, logg))
			r.Get("/me", controllers.OwnApplication(deps.Applications, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleVendor, enums.UserRoleAdmin))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.VendorListProducts(deps.Products, logg))
				r.Post("/", controllers.VendorCreateProduct(deps.Products, logg))
				r.Patch("/{productID}", controllers.VendorUpdateProduct(deps.Products, logg))
				r.Delete("/{productID}", controllers.VendorDeleteProduct(deps.Products, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.VendorListOrders(deps.Orders, logg))
				r.Post("/{orderID}/status", controllers.VendorOrderStatus(deps.Orders, logg))
			})
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/flags", func(r chi.Router) {
			r.Get("/", controllers.AdminListFlags(deps.Flags, logg))
			r.Post("/{flagID}/resolve", controllers.AdminResolveFlag(deps.Flags, logg))
			r.Post("/{flagID}/dismiss", controllers.AdminDismissFlag(deps.Flags, logg))
		})

		r.Route("/applications", func(r chi.Router) {
			r.Get("/", controllers.AdminListApplications(deps.Applications, logg))
			r.Post("/{applicationID}/approve", controllers.AdminApproveApplication(deps.Applications, logg))
			r.Post("/{applicationID}/reject", controllers.AdminRejectApplication(deps.Applications, logg))
		})
	})

	return r
}
