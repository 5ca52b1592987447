package api

import (
	"net/http"

	"counselling-payments/internal/domain"
	"counselling-payments/internal/infra/logging"
	"counselling-payments/internal/usecase"

	"github.com/go-chi/chi/v5"
)

type createOrderRequest struct {
	Amount   float64        `json:"amount"`
	Currency string         `json:"currency"`
	Receipt  string         `json:"receipt"`
	Notes    map[string]any `json:"notes"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil || req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Valid amount is required"})
		return
	}
	claims := claimsFrom(r.Context())
	order, err := s.orders.CreateOrder(r.Context(), usecase.CreateOrderInput{
		UserID:   claims.ID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// handleGetGatewayOrder returns the live gateway view of one of the caller's orders.
func (s *Server) handleGetGatewayOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	ctx := logging.WithOrderID(r.Context(), orderID)
	entity, err := s.orders.GetGatewayOrder(ctx, claimsFrom(ctx).ID, orderID)
	if err != nil {
		writeError(w, r.WithContext(ctx), s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

type verifyPaymentRequest struct {
	PaymentID string `json:"razorpay_payment_id"`
	OrderID   string `json:"razorpay_order_id"`
	Signature string `json:"razorpay_signature"`
}

type verifyPaymentResponse struct {
	Success   bool   `json:"success"`
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	IsPremium bool   `json:"isPremium"`
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := decodeJSON(r, &req); err != nil || req.PaymentID == "" || req.OrderID == "" || req.Signature == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Payment details are required"})
		return
	}
	ctx := logging.WithOrderID(r.Context(), req.OrderID)
	res, err := s.orders.VerifyCheckout(ctx, usecase.VerifyCheckoutInput{
		UserID:    claimsFrom(ctx).ID,
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		writeError(w, r.WithContext(ctx), s.log, err)
		return
	}
	out := verifyPaymentResponse{Success: true, OrderID: req.OrderID, PaymentID: req.PaymentID}
	if res.User != nil {
		out.IsPremium = res.User.IsPremium
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGatewayKey(w http.ResponseWriter, r *http.Request) {
	key := s.orders.GatewayKey()
	if key == "" {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "payment gateway not configured"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.ListOrders(r.Context(), claimsFrom(r.Context()).ID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Order ID is required"})
		return
	}
	order, err := s.orders.GetOrder(r.Context(), claimsFrom(r.Context()).ID, orderID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// handleListPayments serves completed payments; a caller may only read its own.
func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	caller := claimsFrom(r.Context()).ID
	if userID == "" {
		userID = caller
	}
	if userID != caller {
		writeError(w, r, s.log, domain.ErrForbidden)
		return
	}
	payments, err := s.orders.ListCompletedPayments(r.Context(), userID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}
