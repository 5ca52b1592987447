package api

import (
	"errors"
	"io"
	"net/http"

	"counselling-payments/internal/domain"
	"counselling-payments/internal/infra/logging"
	"counselling-payments/internal/infra/metrics"
	"counselling-payments/internal/infra/security"
	"counselling-payments/internal/usecase"
)

const (
	signatureHeader = "X-Razorpay-Signature"
	eventIDHeader   = "X-Razorpay-Event-Id"
)

type webhookAck struct {
	Received bool   `json:"received"`
	Error    string `json:"error,omitempty"`
}

// handleWebhook authenticates the raw body before anything parses it. Once
// authenticated the delivery is always acknowledged with 200 so the gateway
// stops retrying; processing failures are recorded in the audit log.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "Payload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Unreadable body"})
		return
	}

	switch err := security.CheckWebhookSignature(body, r.Header.Get(signatureHeader), s.opts.WebhookSecret); {
	case errors.Is(err, domain.ErrMissingSignature):
		metrics.IncSignatureFailure("missing")
		l.Warn().Msg("webhook without signature")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Webhook signature missing"})
		return
	case err != nil:
		metrics.IncSignatureFailure("invalid")
		l.Warn().Msg("webhook signature mismatch")
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Invalid webhook signature"})
		return
	}

	res, err := s.webhook.Handle(r.Context(), usecase.Delivery{
		EventID: r.Header.Get(eventIDHeader),
		Body:    body,
	})
	ack := webhookAck{Received: true}
	if err != nil {
		ev := l.Error().Err(err)
		if res != nil {
			ev = ev.Str("event", res.EventType).Str("outcome", string(res.Outcome))
		}
		ev.Msg("webhook processing failed")
		ack.Error = "processing failed"
	}
	writeJSON(w, http.StatusOK, ack)
}
