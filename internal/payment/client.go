package payment

import (
	"fmt"
	"time"

	"github.com/foodmesh/core/internal/transport"
	"github.com/foodmesh/core/internal/wire"
)

// Client is the order service's handle to the payment authority, using the
// same one-shot dial-send-read-close RPC as internal/ring's control
// traffic (transport.Call/Notify) rather than a persistent PeerChannel —
// the order service never needs an unsolicited push from the authority, so
// a fresh connection per call is sufficient and keeps the authority process
// from having to track order-service identity at all.
type Client struct {
	addr    string
	timeout time.Duration
}

// NewClient builds a Client targeting the payment authority at addr.
func NewClient(addr wire.Endpoint, timeout time.Duration) *Client {
	return &Client{addr: addr.String(), timeout: timeout}
}

// Authorize requests authorization for orderID and reports whether it was
// granted.
func (c *Client) Authorize(orderID uint64) (bool, error) {
	tag, _, err := transport.Call(c.addr, "RequestAuthorization", wire.RequestAuthorization{OrderID: orderID}, c.timeout)
	if err != nil {
		return false, err
	}
	switch tag {
	case "AuthorizedOrder":
		return true, nil
	case "DeniedOrder":
		return false, nil
	default:
		return false, fmt.Errorf("payment: unexpected reply tag %q", tag)
	}
}

// Charge requests capture of a previously authorized order. idempotencyKey
// is carried for the wire contract even though this implementation's
// Authority keys purely on order id, which is already unique per order.
func (c *Client) Charge(orderID uint64, idempotencyKey string) error {
	tag, _, err := transport.Call(c.addr, "RequestCharge", wire.RequestCharge{OrderID: orderID, IdempotencyKey: idempotencyKey}, c.timeout)
	if err != nil {
		return err
	}
	if tag != "PaymentCompleted" {
		return fmt.Errorf("payment: unexpected reply tag %q", tag)
	}
	return nil
}
