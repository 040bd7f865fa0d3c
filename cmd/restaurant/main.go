// Command restaurant simulates a single restaurant process: it registers
// with a replica, accepts every order it is offered, advances it through
// the Pending/Preparing/ReadyForDelivery transitions on a fixed prep delay,
// and confirms the courier handoff once one is assigned (the
// restaurant-driven half of the order state machine). A dropped connection
// is not fatal: it reconnects with exponential backoff and re-registers,
// relying on the replica's recovery path to resume any order in flight.
//
// Configuration:
//   - RESTAURANT_ID: this restaurant's identity (required)
//   - REPLICA_ADDR: the replica to connect to (required)
//   - RESTAURANT_X / RESTAURANT_Y: this restaurant's position (default 0,0)
//   - RESTAURANT_PREP_DELAY: time spent in each prep stage (default 200ms)
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/foodmesh/core/internal/config"
	"github.com/foodmesh/core/internal/transport"
	"github.com/foodmesh/core/internal/wire"
)

var logFatal = log.Fatalf

func main() {
	restaurantID := config.MustGetenv("RESTAURANT_ID", logFatal)
	replicaAddr := config.MustGetenv("REPLICA_ADDR", logFatal)
	pos := readPosition("RESTAURANT_X", "RESTAURANT_Y")

	prepDelay := 200 * time.Millisecond
	if v := os.Getenv("RESTAURANT_PREP_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			logFatal("RESTAURANT_PREP_DELAY: %v", err)
			return
		}
		prepDelay = d
	}

	ctx, cancel := context.WithCancel(context.Background())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	for ctx.Err() == nil {
		runRestaurantSession(ctx, restaurantID, replicaAddr, pos, prepDelay)
	}
}

func runRestaurantSession(ctx context.Context, restaurantID, replicaAddr string, pos wire.Position, prepDelay time.Duration) {
	pc, err := transport.DialWithBackoff(ctx, replicaAddr, transport.DefaultBackoff)
	if err != nil {
		return
	}
	defer pc.Close(nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		err := pc.Run(func(tag string, msg any) {
			log.Printf("restaurant %s received %s: %+v", restaurantID, tag, msg)
			switch tag {
			case "NewOrder":
				go advanceOrder(pc, restaurantID, msg.(wire.NewOrder).Order.OrderID, prepDelay)
			case "DeliveryAvailable":
				order := msg.(wire.DeliveryAvailable).Order
				if err := pc.Send("DeliverThisOrder", wire.DeliverThisOrder{Order: order}); err != nil {
					log.Printf("restaurant %s: deliver this order: %v", restaurantID, err)
				}
			}
		})
		if err != nil {
			log.Printf("restaurant %s: connection closed: %v", restaurantID, err)
		}
	}()

	if err := pc.Send("RegisterUser", wire.RegisterUser{Role: wire.RoleRestaurant, UserID: restaurantID, Position: pos}); err != nil {
		log.Printf("restaurant %s: register: %v", restaurantID, err)
		return
	}

	select {
	case <-ctx.Done():
	case <-done:
	}
}

// advanceOrder walks a freshly authorized order through Pending, Preparing,
// and ReadyForDelivery on a fixed delay, simulating kitchen work.
func advanceOrder(pc *transport.PeerChannel, restaurantID string, orderID uint64, prepDelay time.Duration) {
	for _, status := range []wire.OrderStatus{wire.OrderPending, wire.OrderPreparing, wire.OrderReadyForDelivery} {
		time.Sleep(prepDelay)
		if err := pc.Send("UpdateOrderStatus", wire.UpdateOrderStatus{OrderID: orderID, Status: status}); err != nil {
			log.Printf("restaurant %s: advance order %d to %s: %v", restaurantID, orderID, status, err)
			return
		}
	}
}

func readPosition(xKey, yKey string) wire.Position {
	x, _ := strconv.ParseFloat(config.Getenv(xKey, "0"), 64)
	y, _ := strconv.ParseFloat(config.Getenv(yKey, "0"), 64)
	return wire.Position{X: x, Y: y}
}
