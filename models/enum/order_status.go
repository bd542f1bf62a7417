package enum

// OrderStatus 表示訂單的狀態，狀態值與後台顯示一致
type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "已成立" // 訂單已建立，等待出貨
	OrderStatusShipping  OrderStatus = "發貨中" // 訂單出貨中
	OrderStatusDone      OrderStatus = "完成"  // 訂單完成
	OrderStatusCancelled OrderStatus = "取消"  // 訂單取消
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPlaced, OrderStatusShipping, OrderStatusDone, OrderStatusCancelled:
		return true
	}
	return false
}
