package api

import (
	"net/http"
	"time"

	"counselling-payments/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Options struct {
	WebhookPath   string
	WebhookSecret string
	MaxBodyBytes  int64
	Timeout       time.Duration
}

// Server exposes the webhook receiver and the app-facing payment API.
type Server struct {
	webhook usecase.WebhookUseCase
	orders  usecase.OrderUseCase
	premium usecase.PremiumUseCase
	auth    *AuthManager
	opts    Options
	log     *zerolog.Logger
}

func NewServer(
	webhook usecase.WebhookUseCase,
	orders usecase.OrderUseCase,
	premium usecase.PremiumUseCase,
	auth *AuthManager,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.WebhookPath == "" {
		opts.WebhookPath = "/webhook"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	l := logger.With().Str("component", "HTTP").Logger()
	return &Server{
		webhook: webhook,
		orders:  orders,
		premium: premium,
		auth:    auth,
		opts:    opts,
		log:     &l,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post(s.opts.WebhookPath, s.handleWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.auth.RequireUser)

		r.Route("/payment", func(r chi.Router) {
			r.Post("/create-order", s.handleCreateOrder)
			r.Get("/get-order/{orderId}", s.handleGetGatewayOrder)
			r.Post("/verify-payment", s.handleVerifyPayment)
			r.Get("/get-razorpay-key", s.handleGatewayKey)
			r.Get("/get-user-orders", s.handleListOrders)
			r.Get("/get-user-order/{orderId}", s.handleGetOrder)
			r.Get("/get-user-payment", s.handleListPayments)
			r.Get("/get-user-payment/{userId}", s.handleListPayments)
		})
		r.Route("/user", func(r chi.Router) {
			r.Get("/premium-status", s.handlePremiumStatus)
			r.Get("/{id}/premium-status", s.handlePremiumStatus)
			r.Post("/ispremium", s.handleIsPremium)
		})
	})

	return Chain(r,
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		Timeout(s.opts.Timeout),
	)
}
