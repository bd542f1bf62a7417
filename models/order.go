package models

import (
	"time"

	"github.com/stripe/stripe-go/v79"

	"nullashop.io/shop/models/enum"
)

// Order 代表訂單，items 是結帳當下購物車的快照
type Order struct {
	ID        uint64           `json:"id"`
	UserID    string           `json:"user_id"`
	Items     []CartItem       `json:"items"`
	Total     float64          `json:"total"`
	Currency  stripe.Currency  `json:"currency"`
	Status    enum.OrderStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func NewOrder() *Order {
	return new(Order)
}

// AllowChangeStatus 檢查後台的狀態轉換是否有效。
// 已成立可以轉換到任何狀態，發貨中只能完成或取消，完成與取消為終態。
func (o *Order) AllowChangeStatus(newStatus enum.OrderStatus) bool {
	if !newStatus.Valid() || newStatus == o.Status {
		return false
	}
	switch o.Status {
	case enum.OrderStatusPlaced:
		return true
	case enum.OrderStatusShipping:
		return newStatus == enum.OrderStatusDone || newStatus == enum.OrderStatusCancelled
	default:
		return false
	}
}

// CanCancel 訂單擁有者只能取消尚未出貨的訂單
func (o *Order) CanCancel() bool {
	return o.Status == enum.OrderStatusPlaced
}

// TotalCount 訂單商品總數
func (o *Order) TotalCount() uint64 {
	var count uint64
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}
