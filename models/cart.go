package models

// CartItem 代表購物車中的單個商品項目。
// Identity is ProductID: a cart never holds two items for the same product.
type CartItem struct {
	ProductID uint64  `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  uint64  `json:"quantity"`
	Image     string  `json:"image"`
}

// Subtotal 單項小計
func (ci CartItem) Subtotal() float64 {
	return ci.Price * float64(ci.Quantity)
}

// Cart 代表購物車，items 保持加入順序
type Cart struct {
	Items []CartItem `json:"items"`
}

func NewCart() *Cart {
	return new(Cart)
}

// IndexOf returns the position of the item with the given product id, or -1.
func (c *Cart) IndexOf(productID uint64) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// TotalAmount 總金額。Derived from the items on every call, never stored.
func (c *Cart) TotalAmount() float64 {
	var total float64
	for _, item := range c.Items {
		total += item.Subtotal()
	}
	return total
}

// TotalCount 商品總數
func (c *Cart) TotalCount() uint64 {
	var count uint64
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// Snapshot returns a copy of the items, safe to hand out.
func (c *Cart) Snapshot() []CartItem {
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	return items
}
