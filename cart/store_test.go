package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nullashop.io/shop/models"
)

func newTestStore() *Store {
	return NewStore(zap.NewNop())
}

func TestAddItemIncrementsExistingLine(t *testing.T) {
	s := newTestStore()

	s.AddItem("visitor", models.CartItem{ProductID: 1, Name: "茶壺", Price: 250})
	s.AddItem("visitor", models.CartItem{ProductID: 1, Name: "改名了", Price: 999})
	s.AddItem("visitor", models.CartItem{ProductID: 1, Name: "又改名", Price: 1})

	items := s.Items("visitor")
	require.Len(t, items, 1)
	assert.Equal(t, uint64(3), items[0].Quantity)

	// the line keeps its original catalog snapshot
	assert.Equal(t, "茶壺", items[0].Name)
	assert.Equal(t, 250.0, items[0].Price)
}

func TestAddItemAppendsNewLineWithQuantityOne(t *testing.T) {
	s := newTestStore()

	s.AddItem("visitor", models.CartItem{ProductID: 1, Name: "茶壺", Price: 250, Quantity: 42})
	s.AddItem("visitor", models.CartItem{ProductID: 2, Name: "茶杯", Price: 80})

	items := s.Items("visitor")
	require.Len(t, items, 2)
	assert.Equal(t, uint64(1), items[0].Quantity, "requested quantity is ignored on first add")
	assert.Equal(t, uint64(1), items[1].Quantity)
	assert.Equal(t, uint64(1), items[0].ProductID, "insertion order preserved")
	assert.Equal(t, uint64(2), items[1].ProductID)
}

func TestTotalsFollowItems(t *testing.T) {
	s := newTestStore()

	s.AddItem("visitor", models.CartItem{ProductID: 1, Price: 250})
	s.AddItem("visitor", models.CartItem{ProductID: 1, Price: 250})
	s.AddItem("visitor", models.CartItem{ProductID: 2, Price: 80})

	assert.Equal(t, 580.0, s.TotalAmount("visitor"))
	assert.Equal(t, uint64(3), s.TotalCount("visitor"))

	require.NoError(t, s.UpdateQuantity("visitor", 2, 5))
	assert.Equal(t, 900.0, s.TotalAmount("visitor"))
	assert.Equal(t, uint64(7), s.TotalCount("visitor"))
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	s := newTestStore()

	s.AddItem("visitor", models.CartItem{ProductID: 1, Price: 250})
	s.RemoveItem("visitor", 1)
	s.RemoveItem("visitor", 1)
	s.RemoveItem("visitor", 99)

	assert.Empty(t, s.Items("visitor"))
	assert.Equal(t, uint64(0), s.TotalCount("visitor"))
}

func TestUpdateQuantityRejectsZero(t *testing.T) {
	s := newTestStore()
	s.AddItem("visitor", models.CartItem{ProductID: 1, Price: 250})

	err := s.UpdateQuantity("visitor", 1, 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	items := s.Items("visitor")
	require.Len(t, items, 1)
	assert.Equal(t, uint64(1), items[0].Quantity, "cart untouched after rejected update")
}

func TestUpdateQuantityOnAbsentProductIsNoOp(t *testing.T) {
	s := newTestStore()

	require.NoError(t, s.UpdateQuantity("visitor", 99, 3))
	assert.Empty(t, s.Items("visitor"))
}

func TestClearEmptiesCart(t *testing.T) {
	s := newTestStore()

	s.AddItem("visitor", models.CartItem{ProductID: 1, Price: 250})
	s.AddItem("visitor", models.CartItem{ProductID: 2, Price: 80})
	s.Clear("visitor")

	assert.Empty(t, s.Items("visitor"))
	assert.Equal(t, 0.0, s.TotalAmount("visitor"))
	assert.Equal(t, uint64(0), s.TotalCount("visitor"))
}

func TestCartsAreIsolatedByKey(t *testing.T) {
	s := newTestStore()

	s.AddItem("a", models.CartItem{ProductID: 1, Price: 250})
	s.AddItem("b", models.CartItem{ProductID: 2, Price: 80})

	assert.Equal(t, uint64(1), s.TotalCount("a"))
	assert.Equal(t, uint64(1), s.TotalCount("b"))
	assert.Equal(t, 250.0, s.TotalAmount("a"))
	assert.Equal(t, 80.0, s.TotalAmount("b"))
}

func TestItemsReturnsSnapshot(t *testing.T) {
	s := newTestStore()
	s.AddItem("visitor", models.CartItem{ProductID: 1, Price: 250})

	items := s.Items("visitor")
	items[0].Quantity = 100

	assert.Equal(t, uint64(1), s.TotalCount("visitor"), "mutating the snapshot does not touch the cart")
}
