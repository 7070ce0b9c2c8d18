package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"subscription-payments/internal/domain"
	"subscription-payments/internal/domain/model"
	"subscription-payments/internal/domain/ports/repository"
	"subscription-payments/internal/logging"
)

type checkoutRequest struct {
	PlanID     string `json:"plan_id"`
	CouponCode string `json:"coupon_code"`
}

type checkoutResponse struct {
	OrderID       string `json:"order_id"`
	MerchantTxID  string `json:"merchant_transaction_id"`
	RedirectURL   string `json:"redirect_url"`
	AmountPaise   int64  `json:"amount_paise"`
	FinalPaise    int64  `json:"final_amount_paise"`
	Status        string `json:"status"`
	ExpiresAtUnix int64  `json:"expires_at"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error to its HTTP status and stable code.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrPlanNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrRefundNotFound),
		errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrCouponInvalid),
		errors.Is(err, domain.ErrCouponNotStarted),
		errors.Is(err, domain.ErrCouponExpired),
		errors.Is(err, domain.ErrCouponMinAmount),
		errors.Is(err, domain.ErrCouponMaxRedeemed),
		errors.Is(err, domain.ErrCouponUserLimit),
		errors.Is(err, domain.ErrRefundAmountInvalid),
		errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRepurchaseBlocked),
		errors.Is(err, domain.ErrOrderNotRefundable):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrWebhookUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrProvider),
		errors.Is(err, domain.ErrConfigMissing):
		status = http.StatusBadGateway
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Code: domain.Code(err), Message: msg})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	if claims == nil || claims.Subject == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.PlanID == "" {
		writeError(w, domain.ErrInvalidArgument)
		return
	}

	ctx := logging.WithUserID(r.Context(), claims.Subject)
	res, err := s.checkoutUC.Checkout(ctx, claims.Subject, req.PlanID, req.CouponCode, r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:       res.Order.ID,
		MerchantTxID:  res.Order.MerchantTxID,
		RedirectURL:   res.RedirectURL,
		AmountPaise:   res.Order.AmountPaise,
		FinalPaise:    res.Order.FinalAmountPaise,
		Status:        string(res.Order.Status),
		ExpiresAtUnix: res.Order.ExpiresAt.Unix(),
	})
}

type orderResponse struct {
	OrderID      string `json:"order_id"`
	UserID       string `json:"user_id"`
	PlanID       string `json:"plan_id"`
	MerchantTxID string `json:"merchant_transaction_id"`
	AmountPaise  int64  `json:"amount_paise"`
	FinalPaise   int64  `json:"final_amount_paise"`
	Status       string `json:"status"`
	CouponCode   string `json:"coupon_code,omitempty"`
	CompletedAt  *int64 `json:"completed_at,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

func orderView(o *model.PaymentOrder) orderResponse {
	resp := orderResponse{
		OrderID:      o.ID,
		UserID:       o.UserID,
		PlanID:       o.PlanID,
		MerchantTxID: o.MerchantTxID,
		AmountPaise:  o.AmountPaise,
		FinalPaise:   o.FinalAmountPaise,
		Status:       string(o.Status),
		CouponCode:   o.CouponCode,
		CreatedAt:    o.CreatedAt.Unix(),
	}
	if o.CompletedAt != nil {
		t := o.CompletedAt.Unix()
		resp.CompletedAt = &t
	}
	return resp
}

// ownsOrder restricts order access to its owner; an admin role sees all.
func ownsOrder(claims *UserClaims, o *model.PaymentOrder) bool {
	if claims == nil {
		return false
	}
	return claims.Role == "admin" || claims.Subject == o.UserID
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	order, err := s.orders.FindByID(r.Context(), repository.NoTX, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ownsOrder(ClaimsFrom(r.Context()), order) {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, orderView(order))
}

func (s *Server) handleRefreshOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	existing, err := s.orders.FindByID(r.Context(), repository.NoTX, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ownsOrder(ClaimsFrom(r.Context()), existing) {
		http.NotFound(w, r)
		return
	}

	ctx := logging.WithOrderID(r.Context(), orderID)
	order, err := s.reconcileUC.RefreshOrderStatus(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderView(order))
}

type refundRequest struct {
	AmountPaise      *int64 `json:"amount_paise"` // nil = full remaining
	Reason           string `json:"reason"`
	MerchantRefundID string `json:"merchant_refund_id"` // optional caller idempotency key
}

type refundResponse struct {
	OrderID          string `json:"order_id"`
	MerchantRefundID string `json:"merchant_refund_id"`
	ProviderRefundID string `json:"provider_refund_id,omitempty"`
	State            string `json:"state"`
	OrderStatus      string `json:"order_status"`
}

func (s *Server) handleRefundOrder(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	if claims == nil || claims.Role != "admin" {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	orderID := chi.URLParam(r, "orderID")
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx := logging.WithOrderID(r.Context(), orderID)
	res, err := s.refundUC.RefundOrder(ctx, orderID, req.AmountPaise, req.Reason, req.MerchantRefundID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refundResponse{
		OrderID:          res.OrderID,
		MerchantRefundID: res.MerchantRefundID,
		ProviderRefundID: res.ProviderRefundID,
		State:            res.State,
		OrderStatus:      string(res.OrderStatus),
	})
}

func (s *Server) handleGetRefund(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	if claims == nil || claims.Role != "admin" {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	merchantRefundID := chi.URLParam(r, "merchantRefundID")
	ctx := logging.WithRefundID(r.Context(), merchantRefundID)
	res, err := s.refundUC.GetRefundStatus(ctx, merchantRefundID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refundResponse{
		OrderID:          res.OrderID,
		MerchantRefundID: res.MerchantRefundID,
		ProviderRefundID: res.ProviderRefundID,
		State:            res.State,
		OrderStatus:      string(res.OrderStatus),
	})
}
