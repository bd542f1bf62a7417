package enum

// CheckoutState 表示結帳流程的狀態
type CheckoutState string

const (
	CheckoutStateIdle                 CheckoutState = "idle"
	CheckoutStateAwaitingLogin        CheckoutState = "awaiting_login"
	CheckoutStateAwaitingConfirmation CheckoutState = "awaiting_confirmation"
	CheckoutStateSubmitting           CheckoutState = "submitting"
	CheckoutStateSucceeded            CheckoutState = "succeeded"
	CheckoutStateFailed               CheckoutState = "failed"
)
