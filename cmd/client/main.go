// Command client simulates a single food-delivery client process: it
// registers with a replica, places one order, and logs every push the core
// sends back until the connection closes or it is interrupted (the
// client-facing message catalog). A dropped connection is not fatal:
// it reconnects with exponential backoff and re-registers, relying on the
// replica's RecoveredUserInfo push to tell it whether an order is already
// in flight instead of placing a duplicate one.
//
// Configuration:
//   - CLIENT_ID: this client's identity (required)
//   - REPLICA_ADDR: the replica to connect to (required)
//   - CLIENT_RESTAURANT_ID: restaurant to order from (required)
//   - CLIENT_DISH: dish name to order (default "Pepperoni")
//   - CLIENT_X / CLIENT_Y: this client's position (default 0,0)
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/foodmesh/core/internal/config"
	"github.com/foodmesh/core/internal/transport"
	"github.com/foodmesh/core/internal/wire"
)

var logFatal = log.Fatalf

func main() {
	clientID := config.MustGetenv("CLIENT_ID", logFatal)
	replicaAddr := config.MustGetenv("REPLICA_ADDR", logFatal)
	restaurantID := config.MustGetenv("CLIENT_RESTAURANT_ID", logFatal)
	dish := config.Getenv("CLIENT_DISH", "Pepperoni")
	pos := readPosition("CLIENT_X", "CLIENT_Y")

	ctx, cancel := context.WithCancel(context.Background())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	for ctx.Err() == nil {
		runClientSession(ctx, clientID, replicaAddr, restaurantID, dish, pos)
	}
}

func runClientSession(ctx context.Context, clientID, replicaAddr, restaurantID, dish string, pos wire.Position) {
	pc, err := transport.DialWithBackoff(ctx, replicaAddr, transport.DefaultBackoff)
	if err != nil {
		return
	}
	defer pc.Close(nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		err := pc.Run(func(tag string, msg any) {
			log.Printf("client %s received %s: %+v", clientID, tag, msg)
			if tag == "RecoveredUserInfo" {
				info := msg.(wire.RecoveredUserInfo)
				if info.Order != nil {
					log.Printf("client %s already has order %d in flight, status %s", clientID, info.Order.OrderID, info.Order.Status)
					return
				}
				if err := pc.Send("RequestThisOrder", wire.RequestThisOrder{ClientID: clientID, RestaurantID: restaurantID, Dish: dish}); err != nil {
					log.Printf("client %s: request order: %v", clientID, err)
				}
			}
		})
		if err != nil {
			log.Printf("client %s: connection closed: %v", clientID, err)
		}
	}()

	if err := pc.Send("RegisterUser", wire.RegisterUser{Role: wire.RoleClient, UserID: clientID, Position: pos}); err != nil {
		log.Printf("client %s: register: %v", clientID, err)
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
