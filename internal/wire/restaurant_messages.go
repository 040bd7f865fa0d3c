package wire

func init() {
	Register("NewOrder", NewOrder{})
	Register("UpdateOrderStatus", UpdateOrderStatus{})
	Register("CancelOrder", CancelOrder{})
	Register("RequestDelivery", RequestDelivery{})
	Register("DeliveryAvailable", DeliveryAvailable{})
}

// NewOrder notifies a restaurant of a freshly authorized order awaiting its
// accept/reject decision.
type NewOrder struct {
	Order OrderDTO `json:"order"`
}

// UpdateOrderStatus is sent by the restaurant to advance an order it owns:
// from Authorized to Pending (accept), Pending to Preparing, or Preparing to
// ReadyForDelivery.
type UpdateOrderStatus struct {
	OrderID uint64      `json:"order_id"`
	Status  OrderStatus `json:"status"`
}

// CancelOrder is sent by the restaurant to reject an authorized order, or by
// the core to inform the restaurant an order was cancelled upstream (e.g.
// the owning client was reaped).
type CancelOrder struct {
	OrderID uint64             `json:"order_id"`
	Reason  CancellationReason `json:"reason"`
}

// RequestDelivery is sent by the restaurant once an order is ready, asking
// the order service to begin courier offers. The order service also starts
// offering autonomously when it observes ReadyForDelivery, so this message
// is an optional accelerant, not the only trigger.
type RequestDelivery struct {
	OrderID uint64 `json:"order_id"`
}

// DeliveryAvailable tells the restaurant a courier has won the assignment
// mutex for its order; the restaurant confirms with DeliverThisOrder.
type DeliveryAvailable struct {
	Order    OrderDTO `json:"order"`
	CourierID string  `json:"courier_id"`
}
