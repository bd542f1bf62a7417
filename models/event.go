package models

import (
	"time"

	"nullashop.io/shop/models/enum"
)

type OrderEventType string

const (
	OrderEventCreated       OrderEventType = "order.created"
	OrderEventStatusChanged OrderEventType = "order.status_changed"
)

// OrderEvent 在訂單建立或狀態變更時發佈到 NATS
type OrderEvent struct {
	ID        string           `json:"id"`
	Type      OrderEventType   `json:"type"`
	OrderID   uint64           `json:"order_id"`
	UserID    string           `json:"user_id"`
	Status    enum.OrderStatus `json:"status"`
	Total     float64          `json:"total"`
	CreatedAt time.Time        `json:"created_at"`
}
