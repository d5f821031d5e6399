package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"restaurant-pos-billing/internal/domain/ports/adapter"
	"restaurant-pos-billing/internal/infra/logging"
	"restaurant-pos-billing/internal/usecase"
)

// Locker serializes concurrent webhook deliveries for one provider reference.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// RateLimiter throttles abusable endpoints (OTP resend).
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Server struct {
	subUC        usecase.SubscriptionUseCase
	paymentUC    usecase.PaymentUseCase
	activationUC usecase.ActivationUseCase
	card         adapter.CardGateway

	auth         *AuthManager
	apiKey       string
	webhookToken string
	successURL   string
	cancelURL    string

	locker   Locker
	limiter  RateLimiter
	validate *validator.Validate
	log      *zerolog.Logger
}

func NewServer(
	subUC usecase.SubscriptionUseCase,
	paymentUC usecase.PaymentUseCase,
	activationUC usecase.ActivationUseCase,
	card adapter.CardGateway,
	auth *AuthManager,
	apiKey, webhookToken, successURL, cancelURL string,
	locker Locker,
	limiter RateLimiter,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		subUC:        subUC,
		paymentUC:    paymentUC,
		activationUC: activationUC,
		card:         card,
		auth:         auth,
		apiKey:       apiKey,
		webhookToken: webhookToken,
		successURL:   successURL,
		cancelURL:    cancelURL,
		locker:       locker,
		limiter:      limiter,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		log:          logger,
	}
}

// Router builds the HTTP surface: the billing API, the admin API, the
// provider webhook endpoints, and the operational endpoints.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/subscriptions", s.handleCreateSubscription)
		r.Get("/restaurants/{restaurantID}/subscription", s.handleCurrentSubscription)

		r.Route("/subscriptions/{subscriptionID}", func(r chi.Router) {
			r.Post("/payment-method", s.handleChangePaymentMethod)
			r.Post("/checkout", s.handleCardCheckout)
			r.Post("/card/confirm", s.handleCardConfirm)
			r.Post("/mobile-money", s.handleMobileMoneyInitiate)
			r.Post("/mobile-money/otp", s.handleMobileMoneyOTP)
			r.Post("/mobile-money/resend-otp", s.handleResendOTP)
		})

		r.Get("/checkout/verify", s.handleVerifyCheckout)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", s.handleAdminLogin)
			r.Group(func(r chi.Router) {
				r.Use(s.adminMiddleware)
				r.Post("/subscriptions/{subscriptionID}/validate-cash", s.handleValidateCash)
				r.Post("/subscriptions/{subscriptionID}/reject-cash", s.handleRejectCash)
				r.Post("/subscriptions/{subscriptionID}/suspend", s.handleSuspend)
				r.Post("/subscriptions/{subscriptionID}/reactivate", s.handleReactivate)
			})
		})
	})

	r.Post("/webhook/stripe", s.handleStripeWebhook)
	r.Post("/webhook/mobile-money/{provider}", s.handleMobileMoneyWebhook)

	return r
}

// requestLog tags the context with the request id as trace_id and emits one
// access log line per request.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if rid := middleware.GetReqID(ctx); rid != "" {
			ctx = logging.WithTraceID(ctx, rid)
		}
		l := logging.With(ctx, s.log)
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		l.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	})
}
