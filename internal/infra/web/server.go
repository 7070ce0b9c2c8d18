package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"subscription-payments/internal/domain/ports/adapter"
	"subscription-payments/internal/domain/ports/repository"
	"subscription-payments/internal/usecase"
)

// Server wires the payment API and webhook intake onto a chi router.
type Server struct {
	checkoutUC  usecase.CheckoutUseCase
	reconcileUC usecase.ReconcileUseCase
	refundUC    usecase.RefundUseCase
	orders      repository.PaymentOrderRepository
	events      repository.PaymentEventRepository
	gateway     adapter.PaymentGateway
	auth        *AuthManager
	log         *zerolog.Logger
}

func NewServer(
	checkoutUC usecase.CheckoutUseCase,
	reconcileUC usecase.ReconcileUseCase,
	refundUC usecase.RefundUseCase,
	orders repository.PaymentOrderRepository,
	events repository.PaymentEventRepository,
	gateway adapter.PaymentGateway,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		checkoutUC:  checkoutUC,
		reconcileUC: reconcileUC,
		refundUC:    refundUC,
		orders:      orders,
		events:      events,
		gateway:     gateway,
		auth:        auth,
		log:         logger,
	}
}

// Router builds the full route tree. The webhook and health endpoints stay
// public (the webhook carries its own signature auth); everything else under
// /api/v1 requires a bearer token.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(TraceID(), Recover(s.log), RequestLog(s.log), Timeout(30*time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/webhook/phonepe", s.handleWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.RequireAuth)
		r.Post("/checkout", s.handleCheckout)
		r.Get("/orders/{orderID}", s.handleGetOrder)
		r.Post("/orders/{orderID}/refresh", s.handleRefreshOrder)
		r.Post("/orders/{orderID}/refund", s.handleRefundOrder)
		r.Get("/refunds/{merchantRefundID}", s.handleGetRefund)
	})

	return r
}
