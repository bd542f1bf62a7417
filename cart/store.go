// Package cart holds every visitor's shopping cart in memory for the
// lifetime of the process. Nothing here touches the network: all operations
// are total functions over the current state, and derived totals are
// recomputed from the items on every read.
package cart

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"nullashop.io/shop/models"
)

// ErrInvalidQuantity is returned when an update would drop an item below one.
// The UI disables the decrement button at quantity 1; the store re-validates
// anyway so a stale client cannot corrupt the cart.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

type Store struct {
	mu     sync.RWMutex
	carts  map[string]*models.Cart
	logger *zap.Logger
}

func NewStore(logger *zap.Logger) *Store {
	return &Store{
		carts:  make(map[string]*models.Cart),
		logger: logger,
	}
}

// cart returns the visitor's cart, creating an empty one on first use.
// Caller must hold mu.
func (s *Store) cart(key string) *models.Cart {
	c, ok := s.carts[key]
	if !ok {
		c = models.NewCart()
		s.carts[key] = c
	}
	return c
}

// AddItem adds one unit of the product to the visitor's cart. When the
// product is already present its quantity is incremented by one and the
// item's last-known name, price and image are kept; the argument's catalog
// data is ignored. New products are appended with quantity 1.
func (s *Store) AddItem(key string, item models.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cart(key)
	if i := c.IndexOf(item.ProductID); i >= 0 {
		c.Items[i].Quantity++
		return
	}

	item.Quantity = 1
	c.Items = append(c.Items, item)
}

// RemoveItem deletes the product from the cart. Removing an absent product
// is a no-op, so the operation is idempotent.
func (s *Store) RemoveItem(key string, productID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cart(key)
	if i := c.IndexOf(productID); i >= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	}
}

// UpdateQuantity sets the product's quantity. Quantities below one are
// rejected; updating an absent product is a no-op.
func (s *Store) UpdateQuantity(key string, productID, quantity uint64) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cart(key)
	if i := c.IndexOf(productID); i >= 0 {
		c.Items[i].Quantity = quantity
	}
	return nil
}

// Clear empties the visitor's cart unconditionally.
func (s *Store) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.carts[key] = models.NewCart()
}

// Items returns a snapshot copy of the cart's items in insertion order.
func (s *Store) Items(key string) []models.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.carts[key]; ok {
		return c.Snapshot()
	}
	return []models.CartItem{}
}

// TotalAmount 總金額
func (s *Store) TotalAmount(key string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.carts[key]; ok {
		return c.TotalAmount()
	}
	return 0
}

// TotalCount 商品總數
func (s *Store) TotalCount(key string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.carts[key]; ok {
		return c.TotalCount()
	}
	return 0
}
