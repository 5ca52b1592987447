package model

import (
	"encoding/json"
	"fmt"
	"time"

	"counselling-payments/internal/domain"
)

// EventKind is the handler class an event type maps to.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventPaymentCaptured
	EventPaymentFailed
	EventOrderPaid
	EventOrderCreated
	EventRefundCreated
)

var eventKinds = map[string]EventKind{
	"payment.captured":   EventPaymentCaptured,
	"payment.authorized": EventPaymentCaptured,
	"payment.failed":     EventPaymentFailed,
	"order.paid":         EventOrderPaid,
	"order.created":      EventOrderCreated,
	"refund.created":     EventRefundCreated,
}

// ClassifyEvent maps a gateway event type to its kind. Unlisted types are
// EventUnknown, never an error.
func ClassifyEvent(eventType string) EventKind {
	if k, ok := eventKinds[eventType]; ok {
		return k
	}
	return EventUnknown
}

func (k EventKind) String() string {
	switch k {
	case EventPaymentCaptured:
		return "payment_captured"
	case EventPaymentFailed:
		return "payment_failed"
	case EventOrderPaid:
		return "order_paid"
	case EventOrderCreated:
		return "order_created"
	case EventRefundCreated:
		return "refund_created"
	default:
		return "unknown"
	}
}

// PaymentEntity is the gateway payment object. Amount is in minor units.
type PaymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	Email            string `json:"email"`
	Contact          string `json:"contact"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	CreatedAt        int64  `json:"created_at"`

	Notes map[string]any `json:"-"`
	Raw   map[string]any `json:"-"`
}

// OrderEntity is the gateway order object. Amount is in minor units.
type OrderEntity struct {
	ID         string `json:"id"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	AmountDue  int64  `json:"amount_due"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	CreatedAt  int64  `json:"created_at"`

	Notes map[string]any `json:"-"`
	Raw   map[string]any `json:"-"`
}

// RefundEntity is the gateway refund object.
type RefundEntity struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`

	// OrderID comes from the payment entity delivered alongside the refund.
	OrderID string         `json:"-"`
	Raw     map[string]any `json:"-"`
}

// PaymentEvent is a decoded webhook delivery. Only the entities required by
// Kind are guaranteed non-nil.
type PaymentEvent struct {
	Type      string
	Kind      EventKind
	AccountID string
	CreatedAt time.Time

	Payment *PaymentEntity
	Order   *OrderEntity
	Refund  *RefundEntity
}

type envelope struct {
	Event     string `json:"event"`
	AccountID string `json:"account_id"`
	CreatedAt int64  `json:"created_at"`
	Payload   map[string]struct {
		Entity json.RawMessage `json:"entity"`
	} `json:"payload"`
}

// DecodeEvent parses a webhook body into a typed event. The returned event
// is never nil; on error it carries whatever type information was readable
// and the error wraps domain.ErrMalformedEvent.
func DecodeEvent(body []byte) (*PaymentEvent, error) {
	ev := &PaymentEvent{}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ev, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	ev.Type = env.Event
	ev.Kind = ClassifyEvent(env.Event)
	ev.AccountID = env.AccountID
	if env.CreatedAt > 0 {
		ev.CreatedAt = time.Unix(env.CreatedAt, 0).UTC()
	}
	if env.Event == "" {
		return ev, fmt.Errorf("%w: missing event type", domain.ErrMalformedEvent)
	}

	entity := func(name string) json.RawMessage {
		if p, ok := env.Payload[name]; ok {
			return p.Entity
		}
		return nil
	}

	var err error
	switch ev.Kind {
	case EventPaymentCaptured, EventPaymentFailed:
		ev.Payment, err = DecodePaymentEntity(entity("payment"))
		if err == nil && ev.Payment.OrderID == "" {
			err = fmt.Errorf("%w: payment %s has no order_id", domain.ErrMalformedEvent, ev.Payment.ID)
		}
	case EventOrderPaid:
		ev.Order, err = DecodeOrderEntity(entity("order"))
		if err == nil {
			ev.Payment, err = DecodePaymentEntity(entity("payment"))
		}
	case EventOrderCreated:
		ev.Order, err = DecodeOrderEntity(entity("order"))
	case EventRefundCreated:
		ev.Refund, err = decodeRefund(entity("refund"))
		if err == nil {
			if raw := entity("payment"); len(raw) > 0 {
				// optional; the refund stays usable without it
				if p, perr := DecodePaymentEntity(raw); perr == nil && p.ID == ev.Refund.PaymentID {
					ev.Refund.OrderID = p.OrderID
				}
			}
		}
	}
	if err != nil {
		return ev, err
	}
	return ev, nil
}

// OrderID is the order the event refers to, if any.
func (e *PaymentEvent) OrderID() string {
	switch {
	case e.Order != nil:
		return e.Order.ID
	case e.Payment != nil:
		return e.Payment.OrderID
	}
	return ""
}

// PaymentID is the payment the event refers to, if any.
func (e *PaymentEvent) PaymentID() string {
	switch {
	case e.Payment != nil:
		return e.Payment.ID
	case e.Refund != nil:
		return e.Refund.PaymentID
	}
	return ""
}

func DecodePaymentEntity(raw json.RawMessage) (*PaymentEntity, error) {
	var p PaymentEntity
	m, err := decodeEntity("payment", raw, &p)
	if err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, fmt.Errorf("%w: payment entity without id", domain.ErrMalformedEvent)
	}
	p.Raw = m
	p.Notes = notesOf(m)
	return &p, nil
}

func DecodeOrderEntity(raw json.RawMessage) (*OrderEntity, error) {
	var o OrderEntity
	m, err := decodeEntity("order", raw, &o)
	if err != nil {
		return nil, err
	}
	if o.ID == "" {
		return nil, fmt.Errorf("%w: order entity without id", domain.ErrMalformedEvent)
	}
	o.Raw = m
	o.Notes = notesOf(m)
	return &o, nil
}

func decodeRefund(raw json.RawMessage) (*RefundEntity, error) {
	var r RefundEntity
	m, err := decodeEntity("refund", raw, &r)
	if err != nil {
		return nil, err
	}
	if r.PaymentID == "" {
		return nil, fmt.Errorf("%w: refund entity without payment_id", domain.ErrMalformedEvent)
	}
	r.Raw = m
	return &r, nil
}

func decodeEntity(name string, raw json.RawMessage, dst any) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: payload.%s.entity missing", domain.ErrMalformedEvent, name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return nil, fmt.Errorf("%w: payload.%s.entity: %v", domain.ErrMalformedEvent, name, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: payload.%s.entity: %v", domain.ErrMalformedEvent, name, err)
	}
	return m, nil
}

// notesOf tolerates the gateway sending an empty array instead of an object.
func notesOf(entity map[string]any) map[string]any {
	if n, ok := entity["notes"].(map[string]any); ok {
		return n
	}
	return map[string]any{}
}
