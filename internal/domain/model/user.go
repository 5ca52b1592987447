package model

import (
	"slices"
	"time"

	"counselling-payments/internal/domain"

	"github.com/google/uuid"
)

// User is the identity + subscription + order-history aggregate.
// The whole record is one document; every mutation of Orders, IsPremium or
// PremiumPlan goes through the reconcile use case and a version CAS.
type User struct {
	ID    string `json:"id" firestore:"-"`
	Name  string `json:"name" firestore:"name"`
	Phone string `json:"phone" firestore:"phone"`
	Email string `json:"email" firestore:"email"`

	IsPremium   bool         `json:"isPremium" firestore:"isPremium"`
	PremiumPlan *PremiumPlan `json:"premiumPlan" firestore:"premiumPlan"`

	CurrentOrderID   string   `json:"currentOrderId,omitempty" firestore:"currentOrderId,omitempty"`
	OrderIDs         []string `json:"orderIds" firestore:"orderIds"`
	PaymentIDs       []string `json:"paymentIds" firestore:"paymentIds"`
	PendingOrderIDs  []string `json:"pendingOrderIds" firestore:"pendingOrderIds"`
	HasPendingOrders bool     `json:"hasPendingOrders" firestore:"hasPendingOrders"`
	Orders           []Order  `json:"orders" firestore:"orders"`

	Version   int64     `json:"version" firestore:"version"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// PremiumPlan is a copy of plan terms frozen at purchase time.
type PremiumPlan struct {
	PlanTitle     string    `json:"planTitle" firestore:"planTitle"`
	PurchasedDate time.Time `json:"purchasedDate" firestore:"purchasedDate"`
	ExpiryDate    time.Time `json:"expiryDate" firestore:"expiryDate"`
	Form          string    `json:"form" firestore:"form"`
}

func NewUser(id, name, phone, email string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if phone == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:        id,
		Name:      name,
		Phone:     phone,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// FindOrder returns a pointer into u.Orders, or nil.
func (u *User) FindOrder(orderID string) *Order {
	for i := range u.Orders {
		if u.Orders[i].OrderID == orderID {
			return &u.Orders[i]
		}
	}
	return nil
}

// FindOrderByPaymentID returns a pointer into u.Orders, or nil.
func (u *User) FindOrderByPaymentID(paymentID string) *Order {
	if paymentID == "" {
		return nil
	}
	for i := range u.Orders {
		if u.Orders[i].PaymentID == paymentID {
			return &u.Orders[i]
		}
	}
	return nil
}

// AppendOrder adds a new order sub-record and points currentOrderId at it.
// It reports false when the order id is already present.
func (u *User) AppendOrder(o Order) bool {
	if u.FindOrder(o.OrderID) != nil {
		return false
	}
	u.Orders = append(u.Orders, o)
	u.CurrentOrderID = o.OrderID
	u.OrderIDs = addUnique(u.OrderIDs, o.OrderID)
	u.Reindex()
	return true
}

// AddPaymentID keeps the payment lookup index in sync with the orders.
func (u *User) AddPaymentID(paymentID string) {
	if paymentID == "" {
		return
	}
	u.PaymentIDs = addUnique(u.PaymentIDs, paymentID)
}

// Reindex recomputes the derived pending-order fields from Orders and adds
// any order payment id missing from PaymentIDs, so documents written before
// that index existed become findable by payment after their next write.
func (u *User) Reindex() {
	pending := make([]string, 0)
	for _, o := range u.Orders {
		if o.PaymentStatus == PaymentStatusPending {
			pending = append(pending, o.OrderID)
		}
		u.AddPaymentID(o.PaymentID)
	}
	u.PendingOrderIDs = pending
	u.HasPendingOrders = len(pending) > 0
}

// PremiumExpired reports whether the user holds a premium flag whose plan
// expired before now.
func (u *User) PremiumExpired(now time.Time) bool {
	if !u.IsPremium || u.PremiumPlan == nil {
		return false
	}
	return u.PremiumPlan.ExpiryDate.Before(now)
}

// CompletedOrders returns copies of orders with a completed payment.
func (u *User) CompletedOrders() []Order {
	out := make([]Order, 0, len(u.Orders))
	for _, o := range u.Orders {
		if o.PaymentStatus == PaymentStatusCompleted {
			out = append(out, o)
		}
	}
	return out
}

// Clone returns a copy whose slices and plan can be mutated independently.
// Order maps are shared.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.OrderIDs = slices.Clone(u.OrderIDs)
	cp.PaymentIDs = slices.Clone(u.PaymentIDs)
	cp.PendingOrderIDs = slices.Clone(u.PendingOrderIDs)
	cp.Orders = slices.Clone(u.Orders)
	if u.PremiumPlan != nil {
		plan := *u.PremiumPlan
		cp.PremiumPlan = &plan
	}
	return &cp
}

func addUnique(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
