package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"prepvio-subscription/internal/config"
	"prepvio-subscription/internal/usecase"
)

var errNilDependency = errors.New("api: nil dependency")

// Deps are the use cases served over HTTP.
type Deps struct {
	Catalog       usecase.PlanCatalog
	Payments      usecase.PaymentUseCase
	Subscriptions usecase.SubscriptionUseCase
	Promos        usecase.PromoUseCase
	Users         usecase.UserUseCase
	Stats         usecase.StatsUseCase
	Notifications usecase.NotificationUseCase
}

type Server struct {
	catalog  usecase.PlanCatalog
	payments usecase.PaymentUseCase
	subs     usecase.SubscriptionUseCase
	promos   usecase.PromoUseCase
	users    usecase.UserUseCase
	stats    usecase.StatsUseCase
	notes    usecase.NotificationUseCase

	auth      *AuthManager
	ipLimit   *IPRateLimiter
	userLimit windowLimiter
	cfg       config.HTTPConfig
	log       *zerolog.Logger
}

// NewServer wires the handlers. userLimit may be nil to disable per-user limits.
func NewServer(d Deps, auth *AuthManager, ipLimit *IPRateLimiter, userLimit windowLimiter, cfg config.HTTPConfig, logger *zerolog.Logger) (*Server, error) {
	if d.Catalog == nil || d.Payments == nil || d.Subscriptions == nil || d.Promos == nil ||
		d.Users == nil || d.Stats == nil || d.Notifications == nil || auth == nil {
		return nil, errNilDependency
	}
	l := logger.With().Str("component", "api").Logger()
	return &Server{
		catalog:   d.Catalog,
		payments:  d.Payments,
		subs:      d.Subscriptions,
		promos:    d.Promos,
		users:     d.Users,
		stats:     d.Stats,
		notes:     d.Notifications,
		auth:      auth,
		ipLimit:   ipLimit,
		userLimit: userLimit,
		cfg:       cfg,
		log:       &l,
	}, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Use(TraceID())
	r.Use(RequestLog(s.log))
	r.Use(Recover(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if s.cfg.RequestTimeout > 0 {
		r.Use(Timeout(s.cfg.RequestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	// The gateway signs webhooks; it is never rate limited per IP.
	r.Post("/api/payment/webhook", s.webhook)

	r.Group(func(r chi.Router) {
		if s.ipLimit != nil {
			r.Use(s.ipLimit.Middleware())
		}
		r.Get("/api/payment/plans", s.plans)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireUser(s.users))

			perMinute := s.cfg.UserLimitPerMinute
			r.With(UserRateLimit(s.userLimit, "create-order", perMinute, time.Minute, s.log)).
				Post("/api/payment/create-order", s.createOrder)
			r.With(UserRateLimit(s.userLimit, "promo-validate", perMinute, time.Minute, s.log)).
				Post("/api/promo/validate", s.validatePromo)

			r.Post("/api/payment/verify", s.verify)
			r.Post("/api/payment/use-interview", s.consumeInterview)
			r.Post("/api/payment/consume-interview", s.consumeInterview)
			r.Get("/api/payment/interview-status", s.interviewStatus)
			r.Get("/api/payment/history", s.history)
			r.Get("/api/notifications", s.notifications)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Post("/api/promo/create", s.createPromo)
				r.Patch("/api/promo/deactivate/{code}", s.deactivatePromo)
				r.Get("/api/promo/stats/{code}", s.promoStats)
				r.Get("/api/promo/all", s.listPromos)
				r.Get("/api/admin/stats", s.adminStats)
			})
		})
	})
	return r
}

// NewHTTPServer applies the configured timeouts.
func NewHTTPServer(cfg config.HTTPConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}
}
