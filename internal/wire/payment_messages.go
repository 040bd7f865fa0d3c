package wire

func init() {
	Register("RequestAuthorization", RequestAuthorization{})
	Register("AuthorizedOrder", AuthorizedOrder{})
	Register("DeniedOrder", DeniedOrder{})
	Register("RequestCharge", RequestCharge{})
	Register("PaymentCompleted", PaymentCompleted{})
}

// RequestAuthorization asks the payment authority to authorize an order.
// The authority is stateless w.r.t. ordering but keeps {authorized,
// captured} per order-id.
type RequestAuthorization struct {
	OrderID uint64 `json:"order_id"`
}

// AuthorizedOrder answers RequestAuthorization with success.
type AuthorizedOrder struct {
	OrderID uint64 `json:"order_id"`
}

// DeniedOrder answers RequestAuthorization with failure.
type DeniedOrder struct {
	OrderID uint64 `json:"order_id"`
}

// RequestCharge asks the authority to capture a previously authorized
// order. A no-op (no reply) on any order that was never authorized.
type RequestCharge struct {
	OrderID       uint64 `json:"order_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

// PaymentCompleted answers RequestCharge once the capture succeeds.
type PaymentCompleted struct {
	OrderID uint64 `json:"order_id"`
}
