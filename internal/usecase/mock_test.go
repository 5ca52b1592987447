//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"io"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"counselling-payments/internal/domain"
	"counselling-payments/internal/domain/model"
	"counselling-payments/internal/domain/ports/adapter"
	"counselling-payments/internal/domain/ports/repository"
	"counselling-payments/internal/infra/worker"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// deepCopy round-trips through JSON so stored documents never alias the
// caller's maps or slices, the way a real document store behaves.
func deepCopy(u *model.User) *model.User {
	b, err := json.Marshal(u)
	if err != nil {
		panic(err)
	}
	var cp model.User
	if err := json.Unmarshal(b, &cp); err != nil {
		panic(err)
	}
	return &cp
}

// =============================
// Repositories
// =============================

// ---- Mock UserRepository ----

// MockUserRepo is an in-memory document store with version CAS.
type MockUserRepo struct {
	mu   sync.Mutex
	byID map[string]*model.User

	CASCalls int

	FindByIDFunc       func(ctx context.Context, id string) (*model.User, error)
	FindByOrderIDFunc  func(ctx context.Context, orderID string) ([]*model.User, error)
	CompareAndSwapFunc func(ctx context.Context, u *model.User, expectedVersion int64) error
	ListExpiredFunc    func(ctx context.Context, t time.Time, limit int) ([]*model.User, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo(users ...*model.User) *MockUserRepo {
	r := &MockUserRepo{byID: map[string]*model.User{}}
	for _, u := range users {
		if u.Version == 0 {
			u.Version = 1
		}
		r.byID[u.ID] = deepCopy(u)
	}
	return r
}

// Get returns a copy of the stored document, or nil.
func (r *MockUserRepo) Get(id string) *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		return deepCopy(u)
	}
	return nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, id)
	}
	if u := r.Get(id); u != nil {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	out := r.filter(func(u *model.User) bool { return u.Phone == phone })
	if len(out) == 0 {
		return nil, domain.ErrNotFound
	}
	return out[0], nil
}

func (r *MockUserRepo) FindByOrderID(ctx context.Context, orderID string) ([]*model.User, error) {
	if r.FindByOrderIDFunc != nil {
		return r.FindByOrderIDFunc(ctx, orderID)
	}
	return r.filter(func(u *model.User) bool { return slices.Contains(u.OrderIDs, orderID) }), nil
}

func (r *MockUserRepo) FindByCurrentOrderID(ctx context.Context, orderID string) ([]*model.User, error) {
	return r.filter(func(u *model.User) bool { return u.CurrentOrderID == orderID }), nil
}

// FindByPaymentID consults the paymentIds index only, as Firestore does.
func (r *MockUserRepo) FindByPaymentID(ctx context.Context, paymentID string) ([]*model.User, error) {
	return r.filter(func(u *model.User) bool {
		return slices.Contains(u.PaymentIDs, paymentID)
	}), nil
}

func (r *MockUserRepo) Save(ctx context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[u.ID]; ok {
		return domain.ErrAlreadyExists
	}
	u.Version = 1
	r.byID[u.ID] = deepCopy(u)
	return nil
}

func (r *MockUserRepo) CompareAndSwap(ctx context.Context, u *model.User, expectedVersion int64) error {
	if r.CompareAndSwapFunc != nil {
		return r.CompareAndSwapFunc(ctx, u, expectedVersion)
	}
	return r.cas(u, expectedVersion)
}

func (r *MockUserRepo) cas(u *model.User, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CASCalls++
	cur, ok := r.byID[u.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	u.Version = expectedVersion + 1
	r.byID[u.ID] = deepCopy(u)
	return nil
}

func (r *MockUserRepo) ListPremiumExpiredBefore(ctx context.Context, t time.Time, limit int) ([]*model.User, error) {
	if r.ListExpiredFunc != nil {
		return r.ListExpiredFunc(ctx, t, limit)
	}
	return r.filter(func(u *model.User) bool { return u.PremiumExpired(t) }), nil
}

func (r *MockUserRepo) ListWithPendingOrders(ctx context.Context, afterID string, limit int) ([]*model.User, error) {
	out := r.filter(func(u *model.User) bool { return u.HasPendingOrders && u.ID > afterID })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockUserRepo) filter(keep func(u *model.User) bool) []*model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.User{}
	for _, u := range r.byID {
		if keep(u) {
			out = append(out, deepCopy(u))
		}
	}
	return out
}

// ---- Mock PaymentLogRepository ----

type MockPaymentLogRepo struct {
	mu      sync.Mutex
	Entries []model.PaymentLogEntry

	AppendFunc func(ctx context.Context, e *model.PaymentLogEntry) error
}

var _ repository.PaymentLogRepository = (*MockPaymentLogRepo)(nil)

func (m *MockPaymentLogRepo) Append(ctx context.Context, e *model.PaymentLogEntry) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, *e)
	return nil
}

func (m *MockPaymentLogRepo) All() []model.PaymentLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.Entries)
}

// ---- Mock DeliveryDeduper ----

type MockDeduper struct {
	mu        sync.Mutex
	seen      map[string]bool
	Confirmed []string
	Forgotten []string

	ClaimErr error
}

var _ repository.DeliveryDeduper = (*MockDeduper)(nil)

func NewMockDeduper() *MockDeduper { return &MockDeduper{seen: map[string]bool{}} }

func (d *MockDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	if d.ClaimErr != nil {
		return false, d.ClaimErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[eventID] {
		return false, nil
	}
	d.seen[eventID] = true
	return true, nil
}

func (d *MockDeduper) Confirm(ctx context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Confirmed = append(d.Confirmed, eventID)
	return nil
}

func (d *MockDeduper) Forget(ctx context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, eventID)
	d.Forgotten = append(d.Forgotten, eventID)
	return nil
}

// ---- Mock OrderCache ----

type MockOrderCache struct {
	mu          sync.Mutex
	data        map[string][]model.Order
	Invalidated []string
}

var _ repository.OrderCache = (*MockOrderCache)(nil)

func NewMockOrderCache() *MockOrderCache { return &MockOrderCache{data: map[string][]model.Order{}} }

func (c *MockOrderCache) GetOrders(ctx context.Context, userID string) ([]model.Order, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.data[userID]
	return o, ok, nil
}

func (c *MockOrderCache) SetOrders(ctx context.Context, userID string, orders []model.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[userID] = slices.Clone(orders)
	return nil
}

func (c *MockOrderCache) Invalidate(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, userID)
	c.Invalidated = append(c.Invalidated, userID)
	return nil
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway (adapter) ----

type MockPaymentGateway struct {
	CreateOrderFunc  func(ctx context.Context, req adapter.CreateOrderRequest) (*model.OrderEntity, error)
	FetchOrderFunc   func(ctx context.Context, orderID string) (*model.OrderEntity, error)
	FetchPaymentFunc func(ctx context.Context, paymentID string) (*model.PaymentEntity, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string  { return "mockpay" }
func (m *MockPaymentGateway) KeyID() string { return "rzp_test_key" }

func (m *MockPaymentGateway) CreateOrder(ctx context.Context, req adapter.CreateOrderRequest) (*model.OrderEntity, error) {
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, req)
	}
	return &model.OrderEntity{ID: "order_new", Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Status: "created", Notes: req.Notes}, nil
}

func (m *MockPaymentGateway) FetchOrder(ctx context.Context, orderID string) (*model.OrderEntity, error) {
	if m.FetchOrderFunc != nil {
		return m.FetchOrderFunc(ctx, orderID)
	}
	return &model.OrderEntity{ID: orderID, Status: "created"}, nil
}

func (m *MockPaymentGateway) FetchPayment(ctx context.Context, paymentID string) (*model.PaymentEntity, error) {
	if m.FetchPaymentFunc != nil {
		return m.FetchPaymentFunc(ctx, paymentID)
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentGateway) FetchOrderPayments(ctx context.Context, orderID string) ([]*model.PaymentEntity, error) {
	return nil, nil
}

// ---- Mock SMS / Email senders ----

type MockSMS struct {
	mu      sync.Mutex
	Phones  []string
	SendErr error
}

var _ adapter.SMSSender = (*MockSMS)(nil)

func (m *MockSMS) Send(ctx context.Context, phone, templateID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Phones = append(m.Phones, phone)
	return m.SendErr
}

type MockEmail struct {
	mu      sync.Mutex
	Sent    []adapter.EmailMessage
	SendErr error
}

var _ adapter.EmailSender = (*MockEmail)(nil)

func (m *MockEmail) Send(ctx context.Context, msg adapter.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, msg)
	return m.SendErr
}

// ---- Task submitters ----

// inlineSubmitter runs tasks synchronously so assertions need no waiting.
type inlineSubmitter struct {
	Submitted int
	Err       error
}

func (s *inlineSubmitter) Submit(task worker.Task) error {
	if s.Err != nil {
		return s.Err
	}
	s.Submitted++
	_ = task(context.Background())
	return nil
}

// ---- Mock NotificationUseCase ----

type MockNotifier struct {
	mu    sync.Mutex
	Calls []string // order ids
}

func (m *MockNotifier) Dispatch(ctx context.Context, user *model.User, order *model.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, order.OrderID)
}

// ---- Mock RateLimiter ----

type MockLimiter struct {
	Allowed bool
	Err     error
}

func (m *MockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return m.Allowed, m.Err
}
