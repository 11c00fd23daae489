package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"laundry-billing/internal/domain/ports/usecase"
	uc "laundry-billing/internal/usecase"
)

// TriggerLimiter throttles manual billing runs per caller.
type TriggerLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Options struct {
	RequestTimeout time.Duration
	// RunTimeout bounds a billing run started over HTTP, like scheduler.run_timeout does for ticks.
	RunTimeout      time.Duration
	RunTriggerLimit int // per caller per minute; 0 disables
}

// Server exposes the billing HTTP API.
type Server struct {
	billing usecase.BillingRunner
	payUC   uc.PaymentUseCase
	subUC   uc.SubscriptionUseCase
	auth    *AuthManager
	limiter TriggerLimiter
	checks  map[string]HealthCheck
	opts    Options
	log     *zerolog.Logger
}

func NewServer(
	billing usecase.BillingRunner,
	payUC uc.PaymentUseCase,
	subUC uc.SubscriptionUseCase,
	auth *AuthManager,
	limiter TriggerLimiter,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 10 * time.Minute
	}
	l := logger.With().Str("component", "api").Logger()
	return &Server{
		billing: billing,
		payUC:   payUC,
		subUC:   subUC,
		auth:    auth,
		limiter: limiter,
		checks:  map[string]HealthCheck{},
		opts:    opts,
		log:     &l,
	}
}

// WithHealthCheck adds a dependency probe to /health.
func (s *Server) WithHealthCheck(name string, check HealthCheck) *Server {
	s.checks[name] = check
	return s
}

// Router builds the chi router with middleware and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(Timeout(s.opts.RunTimeout), s.authenticate(true), requireRole(RoleOwner, RoleScheduler)).
			Post("/billing/run", s.handleBillingRun)

		r.Group(func(r chi.Router) {
			r.Use(Timeout(s.opts.RequestTimeout), s.authenticate(false))

			r.With(requireRole(RoleOwner)).Get("/payments/pending", s.handleListPendingPayments)
			r.With(requireRole(RoleOwner)).Post("/payments/{paymentID}/approve", s.handleApprovePayment)
			r.With(requireRole(RoleOwner)).Post("/payments/{paymentID}/reject", s.handleRejectPayment)
			r.With(requireRole(RoleOwner)).Post("/subscriptions/{subscriptionID}/cancel", s.handleCancelSubscription)

			r.Route("/branches/{branchID}", func(r chi.Router) {
				r.Use(requireBranchAccess)
				r.Post("/payments", s.handleSubmitPayment)
				r.Get("/subscription", s.handleGetSubscription)
				r.With(requireRole(RoleOwner)).Post("/subscription", s.handleProvisionTrial)
			})
		})
	})
	return r
}

func requireBranchAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !principalFrom(r.Context()).CanAccessBranch(chi.URLParam(r, "branchID")) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	code := http.StatusOK
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			status[name] = "down"
			code = http.StatusServiceUnavailable
			s.log.Warn().Err(err).Str("dependency", name).Msg("health check failed")
			continue
		}
		status[name] = "ok"
	}
	writeJSON(w, code, map[string]any{"status": http.StatusText(code), "checks": status})
}
