// Package checkout drives the sequence that turns a visitor's cart into a
// persisted order. Each visitor has an explicit flow state rather than a
// bare "pending" flag, so an abandoned login and a completed login are
// distinguishable transitions:
//
//	idle → awaiting_login → awaiting_confirmation → submitting → succeeded
//	                                                           → failed
//
// No order is ever inserted without an authenticated session, and an order
// is materialized at most once per confirmation.
package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"nullashop.io/shop/cart"
	"nullashop.io/shop/models"
	"nullashop.io/shop/models/enum"
)

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrLoginRequired  = errors.New("login required before checkout")
	ErrNotConfirmable = errors.New("checkout is not awaiting confirmation")
	ErrSubmitting     = errors.New("checkout already submitting")
)

// Gateway persists a confirmed order. The shop service implements it over
// the platform's row storage.
type Gateway interface {
	PlaceOrder(ctx context.Context, order *models.Order) (*models.Order, error)
}

// Receipt carries the transient confirmation-view state. It is not
// persisted; a view rendered without one degrades to zero values.
type Receipt struct {
	OrderID     uint64  `json:"order_id"`
	TotalAmount float64 `json:"total_amount"`
	TotalCount  uint64  `json:"total_count"`
}

type flow struct {
	state enum.CheckoutState
}

type Manager struct {
	mu       sync.Mutex
	flows    map[string]*flow
	carts    *cart.Store
	gateway  Gateway
	currency stripe.Currency
	logger   *zap.Logger
	now      func() time.Time
}

func NewManager(carts *cart.Store, gateway Gateway, currency stripe.Currency, logger *zap.Logger) *Manager {
	return &Manager{
		flows:    make(map[string]*flow),
		carts:    carts,
		gateway:  gateway,
		currency: currency,
		logger:   logger,
		now:      time.Now,
	}
}

// flow returns the visitor's flow, creating an idle one on first use.
// Caller must hold mu.
func (m *Manager) flow(key string) *flow {
	f, ok := m.flows[key]
	if !ok {
		f = &flow{state: enum.CheckoutStateIdle}
		m.flows[key] = f
	}
	return f
}

// State reports the visitor's current checkout state.
func (m *Manager) State(key string) enum.CheckoutState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flow(key).state
}

// Begin starts a checkout attempt. Without a session the flow parks in
// awaiting_login until SessionEstablished or Abandon; with one it moves
// straight to awaiting_confirmation. The cart must not be empty.
func (m *Manager) Begin(key string, session *models.Session) (enum.CheckoutState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f := m.flow(key)
	if f.state == enum.CheckoutStateSubmitting {
		return f.state, ErrSubmitting
	}

	if m.carts.TotalCount(key) == 0 {
		f.state = enum.CheckoutStateIdle
		return f.state, ErrEmptyCart
	}

	if session == nil || session.User == nil {
		f.state = enum.CheckoutStateAwaitingLogin
		return f.state, nil
	}

	f.state = enum.CheckoutStateAwaitingConfirmation
	return f.state, nil
}

// SessionEstablished resumes a checkout that was waiting on authentication.
// The transition happens synchronously under the lock, so even if the
// session signal is delivered more than once the confirmation step opens
// exactly once. Returns true when the flow advanced.
func (m *Manager) SessionEstablished(key string, session *models.Session) bool {
	if session == nil || session.User == nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	f := m.flow(key)
	if f.state != enum.CheckoutStateAwaitingLogin {
		return false
	}
	f.state = enum.CheckoutStateAwaitingConfirmation
	return true
}

// Abandon records that the visitor closed the login prompt without
// authenticating. The pending intent is dropped; the next checkout attempt
// re-arms it.
func (m *Manager) Abandon(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f := m.flow(key)
	if f.state == enum.CheckoutStateAwaitingLogin {
		f.state = enum.CheckoutStateIdle
	}
}

// Confirm materializes the cart into an order. A second confirmation while
// one is already submitting is a no-op error. On gateway failure the cart
// is left untouched and no retry is attempted.
func (m *Manager) Confirm(ctx context.Context, key string, session *models.Session) (*Receipt, error) {
	m.mu.Lock()

	f := m.flow(key)
	switch f.state {
	case enum.CheckoutStateSubmitting:
		m.mu.Unlock()
		return nil, ErrSubmitting
	case enum.CheckoutStateAwaitingConfirmation:
	default:
		m.mu.Unlock()
		return nil, ErrNotConfirmable
	}

	if session == nil || session.User == nil {
		f.state = enum.CheckoutStateAwaitingLogin
		m.mu.Unlock()
		return nil, ErrLoginRequired
	}

	items := m.carts.Items(key)
	if len(items) == 0 {
		f.state = enum.CheckoutStateIdle
		m.mu.Unlock()
		return nil, ErrEmptyCart
	}

	f.state = enum.CheckoutStateSubmitting
	m.mu.Unlock()

	order := &models.Order{
		UserID:    session.User.ID,
		Items:     items,
		Currency:  m.currency,
		Status:    enum.OrderStatusPlaced,
		CreatedAt: m.now(),
	}
	for _, item := range items {
		order.Total += item.Subtotal()
	}

	placed, err := m.gateway.PlaceOrder(ctx, order)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		f.state = enum.CheckoutStateFailed
		m.logger.Error("訂單儲存失敗",
			zap.String("user_id", session.User.ID),
			zap.Error(err))
		return nil, err
	}

	// Totals come from the pre-clear snapshot; the cart is cleared only
	// after the gateway accepted the order.
	receipt := &Receipt{
		OrderID:     placed.ID,
		TotalAmount: order.Total,
		TotalCount:  placed.TotalCount(),
	}
	m.carts.Clear(key)
	f.state = enum.CheckoutStateSucceeded

	m.logger.Info("訂單已儲存",
		zap.Uint64("order_id", placed.ID),
		zap.String("user_id", session.User.ID),
		zap.Float64("total", receipt.TotalAmount))

	return receipt, nil
}
