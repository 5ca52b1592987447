package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"counselling-payments/internal/domain"
	"counselling-payments/internal/domain/model"
	"counselling-payments/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*RazorpayGateway)(nil)

// RazorpayGateway implements adapter.PaymentGateway over the Razorpay REST v1
// API with HTTP basic auth (key id / key secret).
type RazorpayGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
}

func NewRazorpayGateway(keyID, keySecret, baseURL string, timeout time.Duration) (*RazorpayGateway, error) {
	if keyID == "" || keySecret == "" {
		return nil, errors.New("razorpay key id and secret are required")
	}
	if baseURL == "" {
		baseURL = "https://api.razorpay.com/v1"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid razorpay base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RazorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
	}, nil
}

func (g *RazorpayGateway) Name() string  { return "razorpay" }
func (g *RazorpayGateway) KeyID() string { return g.keyID }

// CreateOrder calls POST /orders. Amount is in paise.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, req adapter.CreateOrderRequest) (*model.OrderEntity, error) {
	payload := map[string]any{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		payload["notes"] = req.Notes
	}
	raw, err := g.do(ctx, http.MethodPost, "/orders", payload)
	if err != nil {
		return nil, err
	}
	return model.DecodeOrderEntity(raw)
}

func (g *RazorpayGateway) FetchOrder(ctx context.Context, orderID string) (*model.OrderEntity, error) {
	raw, err := g.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return nil, err
	}
	return model.DecodeOrderEntity(raw)
}

func (g *RazorpayGateway) FetchPayment(ctx context.Context, paymentID string) (*model.PaymentEntity, error) {
	raw, err := g.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, err
	}
	return model.DecodePaymentEntity(raw)
}

func (g *RazorpayGateway) FetchOrderPayments(ctx context.Context, orderID string) ([]*model.PaymentEntity, error) {
	raw, err := g.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID)+"/payments", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("razorpay payments collection: %w", err)
	}
	payments := make([]*model.PaymentEntity, 0, len(out.Items))
	for _, item := range out.Items {
		p, err := model.DecodePaymentEntity(item)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// do sends one request and returns the raw JSON body of a 2xx response.
// 404 maps to domain.ErrNotFound.
func (g *RazorpayGateway) do(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("razorpay %s %s: %w", method, path, domain.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e apiError
		_ = json.Unmarshal(raw, &e)
		return nil, fmt.Errorf("razorpay %s %s: http %d %s: %s", method, path, resp.StatusCode, e.Error.Code, e.Error.Description)
	}
	return raw, nil
}
