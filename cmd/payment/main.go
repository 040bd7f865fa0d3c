// Command payment runs the payment authority (authorization and capture
// decisions), reachable over the same framed-TCP transport
// every replica speaks, behind a transport.Acceptor the way cmd/replica
// serves the coordinator.
//
// Configuration:
//   - PAYMENT_ADDR: listen address (required)
//   - FOODMESH_P_AUTH: authorization success probability (default 0.9)
//   - PAYMENT_SEED: deterministic RNG seed (default 1)
package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/foodmesh/core/internal/config"
	"github.com/foodmesh/core/internal/payment"
	"github.com/foodmesh/core/internal/transport"
)

var logFatal = log.Fatalf

func main() {
	addr := config.MustGetenv("PAYMENT_ADDR", logFatal)

	pAuth := 0.9
	if v := os.Getenv("FOODMESH_P_AUTH"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			logFatal("FOODMESH_P_AUTH: %v", err)
			return
		}
		pAuth = p
	}
	seed := int64(1)
	if v := os.Getenv("PAYMENT_SEED"); v != "" {
		s, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			logFatal("PAYMENT_SEED: %v", err)
			return
		}
		seed = s
	}

	acc, err := transport.Listen(addr)
	if err != nil {
		logFatal("listen %s: %v", addr, err)
		return
	}

	auth := payment.NewAuthority(pAuth, seed)

	go func() {
		log.Printf("payment authority listening on %s (p_auth=%.2f)", acc.Addr(), pAuth)
		err := acc.Serve(func(pc *transport.PeerChannel) {
			pc.Run(func(tag string, msg any) {
				if replyTag, reply, ok := auth.Handle(tag, msg); ok {
					_ = pc.Send(replyTag, reply)
				}
			})
		})
		if err != nil {
			log.Printf("payment authority acceptor stopped: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	_ = acc.Close()
	auth.Close()
	log.Println("payment authority stopped")
}
