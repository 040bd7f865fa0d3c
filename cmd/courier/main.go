// Command courier simulates a single courier process: it registers with a
// replica, announces itself available, accepts the first offer it is sent,
// and reports delivery after a fixed transit delay once the restaurant
// confirms the handoff (the courier-facing half of the order flow). A
// dropped connection is not fatal: it reconnects with
// exponential backoff and re-registers, relying on the replica's recovery
// path to resume wherever the courier left off.
//
// Configuration:
//   - COURIER_ID: this courier's identity (required)
//   - REPLICA_ADDR: the replica to connect to (required)
//   - COURIER_X / COURIER_Y: this courier's position (default 0,0)
//   - COURIER_TRANSIT_DELAY: time from DeliverThisOrder to Delivered
//     (default 300ms)
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
	courierID := config.MustGetenv("COURIER_ID", logFatal)
	replicaAddr := config.MustGetenv("REPLICA_ADDR", logFatal)
	pos := readPosition("COURIER_X", "COURIER_Y")

	transitDelay := 300 * time.Millisecond
	if v := os.Getenv("COURIER_TRANSIT_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			logFatal("COURIER_TRANSIT_DELAY: %v", err)
			return
		}
		transitDelay = d
	}

	ctx, cancel := context.WithCancel(context.Background())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	for ctx.Err() == nil {
		runCourierSession(ctx, courierID, replicaAddr, pos, transitDelay)
	}
}

func runCourierSession(ctx context.Context, courierID, replicaAddr string, pos wire.Position, transitDelay time.Duration) {
	pc, err := transport.DialWithBackoff(ctx, replicaAddr, transport.DefaultBackoff)
	if err != nil {
		return
	}
	defer pc.Close(nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		err := pc.Run(func(tag string, msg any) {
			log.Printf("courier %s received %s: %+v", courierID, tag, msg)
			switch tag {
			case "NewOfferToDeliver":
				order := msg.(wire.NewOfferToDeliver).Order
				if err := pc.Send("DeliveryAccepted", wire.DeliveryAccepted{OrderID: order.OrderID, CourierID: courierID}); err != nil {
					log.Printf("courier %s: accept order %d: %v", courierID, order.OrderID, err)
				}
			case "DeliverThisOrder":
				orderID := msg.(wire.DeliverThisOrder).Order.OrderID
				go func() {
					time.Sleep(transitDelay)
					if err := pc.Send("Delivered", wire.Delivered{OrderID: orderID}); err != nil {
						log.Printf("courier %s: report delivered %d: %v", courierID, orderID, err)
					}
				}()
			}
		})
		if err != nil {
			log.Printf("courier %s: connection closed: %v", courierID, err)
		}
	}()

	if err := pc.Send("RegisterUser", wire.RegisterUser{Role: wire.RoleCourier, UserID: courierID, Position: pos}); err != nil {
		log.Printf("courier %s: register: %v", courierID, err)
		return
	}
	if err := pc.Send("IAmAvailable", wire.IAmAvailable{CourierID: courierID, Position: pos}); err != nil {
		log.Printf("courier %s: announce available: %v", courierID, err)
		return
	}

	select {
	case <-ctx.Done():
	case <-done:
	}
}

func readPosition(xKey, yKey string) wire.Position {
	x, _ := strconv.ParseFloat(config.Getenv(xKey, "0"), 64)
	y, _ := strconv.ParseFloat(config.Getenv(yKey, "0"), 64)
	return wire.Position{X: x, Y: y}
}
