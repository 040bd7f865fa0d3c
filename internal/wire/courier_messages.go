package wire

func init() {
	Register("IAmAvailable", IAmAvailable{})
	Register("NewOfferToDeliver", NewOfferToDeliver{})
	Register("DeliveryAccepted", DeliveryAccepted{})
	Register("DeliveryNotNeeded", DeliveryNotNeeded{})
	Register("DeliverThisOrder", DeliverThisOrder{})
	Register("Delivered", Delivered{})
}

// IAmAvailable is sent by a courier to announce (or re-announce, after
// reconnecting) that it is free to accept deliveries at its current
// position.
type IAmAvailable struct {
	CourierID string   `json:"courier_id"`
	Position  Position `json:"position"`
}

// NewOfferToDeliver is broadcast by the order service to every nearby
// available courier for a ready order; the store arbitrates acceptance.
type NewOfferToDeliver struct {
	Order OrderDTO `json:"order"`
}

// DeliveryAccepted is a courier's reply to NewOfferToDeliver. The first one
// the order service processes for a given order wins the assignment; the
// store's single-threaded arbitration makes the win atomic.
type DeliveryAccepted struct {
	OrderID   uint64 `json:"order_id"`
	CourierID string `json:"courier_id"`
}

// DeliveryNotNeeded tells a losing (or late) courier that another courier
// already won the order, or that the order no longer needs a courier at
// all.
type DeliveryNotNeeded struct {
	OrderID uint64 `json:"order_id"`
}

// DeliverThisOrder is forwarded to the winning courier once the restaurant
// confirms the handoff; the courier's status advances to Delivering.
type DeliverThisOrder struct {
	Order OrderDTO `json:"order"`
}

// Delivered is sent by the courier once the order physically reaches the
// client, triggering payment capture.
type Delivered struct {
	OrderID uint64 `json:"order_id"`
}
