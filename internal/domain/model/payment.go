package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // order created at the gateway, awaiting payment
	PaymentStatusCompleted PaymentStatus = "completed" // captured/authorized or order.paid
	PaymentStatusFailed    PaymentStatus = "failed"    // gateway reported a failed attempt
)

const RefundStatusRefunded = "refunded"

// Order is the embedded order sub-record inside a user document.
// Amount is in major units (rupees); gateway entities carry minor units.
type Order struct {
	OrderID  string         `json:"orderId" firestore:"orderId"`
	Amount   float64        `json:"amount" firestore:"amount"`
	Currency string         `json:"currency" firestore:"currency"`
	Receipt  string         `json:"receipt,omitempty" firestore:"receipt,omitempty"`
	Status   string         `json:"status" firestore:"status"` // gateway order status
	Notes    map[string]any `json:"notes,omitempty" firestore:"notes,omitempty"`

	PaymentStatus  PaymentStatus  `json:"paymentStatus" firestore:"paymentStatus"`
	PaymentID      string         `json:"paymentId,omitempty" firestore:"paymentId,omitempty"`
	PaymentDetails map[string]any `json:"paymentDetails,omitempty" firestore:"paymentDetails,omitempty"`
	FailureDetails map[string]any `json:"paymentFailureDetails,omitempty" firestore:"paymentFailureDetails,omitempty"`
	OrderDetails   map[string]any `json:"orderDetails,omitempty" firestore:"orderDetails,omitempty"`

	RefundStatus  string         `json:"refundStatus,omitempty" firestore:"refundStatus,omitempty"`
	RefundID      string         `json:"refundId,omitempty" firestore:"refundId,omitempty"`
	RefundDetails map[string]any `json:"refundDetails,omitempty" firestore:"refundDetails,omitempty"`
	RefundedAt    *time.Time     `json:"refundedAt,omitempty" firestore:"refundedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// NewPendingOrder builds the sub-record stored when an order is created at the gateway.
func NewPendingOrder(o *OrderEntity, now time.Time) Order {
	return Order{
		OrderID:       o.ID,
		Amount:        float64(o.Amount) / 100,
		Currency:      o.Currency,
		Receipt:       o.Receipt,
		Status:        o.Status,
		Notes:         o.Notes,
		PaymentStatus: PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (o *Order) IsCompleted() bool { return o.PaymentStatus == PaymentStatusCompleted }
func (o *Order) IsRefunded() bool  { return o.RefundStatus == RefundStatusRefunded }

// PlanName is the human label used in receipts.
func (o *Order) PlanName() string {
	if v, ok := o.Notes["planName"].(string); ok && v != "" {
		return v
	}
	if d, ok := ParsePlanDetails(o.Notes); ok && d.Plan != "" {
		return d.Plan
	}
	return ""
}
