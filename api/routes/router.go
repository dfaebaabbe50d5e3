package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidnjeri/carhub-backend/api/controllers"
	"github.com/davidnjeri/carhub-backend/api/middleware"
	authsvc "github.com/davidnjeri/carhub-backend/internal/auth"
	"github.com/davidnjeri/carhub-backend/internal/listings"
	"github.com/davidnjeri/carhub-backend/internal/payments"
	"github.com/davidnjeri/carhub-backend/internal/subscriptions"
	"github.com/davidnjeri/carhub-backend/pkg/auth/session"
	"github.com/davidnjeri/carhub-backend/pkg/config"
	"github.com/davidnjeri/carhub-backend/pkg/logger"
	"github.com/davidnjeri/carhub-backend/pkg/metrics"
	"github.com/davidnjeri/carhub-backend/pkg/redis"
)

// NewRouter assembles the HTTP surface. Listing search and detail are
// public; everything that writes goes through auth and, for the routes
// that need it, idempotency.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	httpMetrics *metrics.HTTPMetrics,
	gatherer prometheus.Gatherer,
	authService *authsvc.Service,
	listingsService *listings.Service,
	subscriptionsService *subscriptions.Service,
	paymentsService *payments.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		0,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisClient,
		}))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Get("/plans", controllers.SubscriptionPlans())
		r.Get("/listings", controllers.ListingsSearch(listingsService, logg))
		r.Get("/listings/featured", controllers.ListingsFeatured(listingsService, logg))
		r.Get("/listings/{listingID}", controllers.ListingsGet(listingsService, logg))

		r.Route("/auth", func(r chi.Router) {
			r.With(
				middleware.AuthRateLimit(registerPolicy, redisClient, logg),
				middleware.Idempotency(redisClient, logg),
			).Post("/register", controllers.AuthRegister(authService, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).
				Post("/login", controllers.AuthLogin(authService, logg))
			r.Post("/refresh", controllers.AuthRefresh(authService, logg))
		})

		// Gateway result delivery, correlated by CheckoutRequestID.
		r.Post("/payments/mpesa/callback", controllers.PaymentsCallback(paymentsService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessions, logg))
			r.Use(middleware.Idempotency(redisClient, logg))

			r.Post("/auth/logout", controllers.AuthLogout(authService, logg))
			r.Get("/auth/me", controllers.AuthProfile(authService, logg))

			r.Post("/listings", controllers.ListingsCreate(listingsService, logg))
			r.Get("/listings/mine", controllers.ListingsMine(listingsService, logg))
			r.Put("/listings/{listingID}", controllers.ListingsUpdate(listingsService, logg))
			r.Delete("/listings/{listingID}", controllers.ListingsDelete(listingsService, logg))
			r.Post("/listings/{listingID}/sold", controllers.ListingsMarkSold(listingsService, logg))

			r.Route("/subscriptions", func(r chi.Router) {
				r.Get("/", controllers.SubscriptionsCurrent(subscriptionsService, logg))
				r.Post("/", controllers.SubscriptionsSubscribe(subscriptionsService, logg))
				r.Post("/cancel", controllers.SubscriptionsCancel(subscriptionsService, logg))
				r.Get("/history", controllers.SubscriptionsHistory(subscriptionsService, logg))
			})

			r.Route("/payments", func(r chi.Router) {
				r.Post("/mpesa", controllers.PaymentsStart(paymentsService, logg))
				r.Get("/mpesa/{checkoutRequestID}", controllers.PaymentsStatus(paymentsService, logg))
				r.Get("/history", controllers.PaymentsHistory(paymentsService, logg))
			})
		})
	})

	return r
}
