// Command replica runs one replica of the food delivery coordination core:
// a ring participant holding the replicated store, the order service, and
// the connection acceptor that every client, restaurant, and courier process
// dials into.
//
// Configuration follows a convention of small per-process settings from
// environment variables (no command-line flags are parsed) plus shared
// cluster parameters from config.Load:
//   - REPLICA_ADDR: this replica's own endpoint (required)
//   - FOODMESH_REPLICAS: comma-separated host:port list of every replica
//   - FOODMESH_PAYMENT_ADDR: the payment authority's host:port
//   - FOODMESH_CONFIG_FILE: path to a JSON replica-set document, used in
//     place of FOODMESH_REPLICAS/FOODMESH_PAYMENT_ADDR when set
//
// Example usage:
//
//	FOODMESH_REPLICAS=127.0.0.1:9001,127.0.0.1:9002,127.0.0.1:9003 \
//	FOODMESH_PAYMENT_ADDR=127.0.0.1:9100 \
//	REPLICA_ADDR=127.0.0.1:9001 \
//	./replica
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/foodmesh/core/internal/config"
	"github.com/foodmesh/core/internal/coordinator"
	"github.com/foodmesh/core/internal/locator"
	"github.com/foodmesh/core/internal/orders"
	"github.com/foodmesh/core/internal/payment"
	"github.com/foodmesh/core/internal/reaper"
	"github.com/foodmesh/core/internal/ring"
	"github.com/foodmesh/core/internal/store"
	"github.com/foodmesh/core/internal/transport"
	"github.com/foodmesh/core/internal/wire"
)

// logFatal is a variable so tests can intercept a fatal config error
// without killing the test process.
var logFatal = log.Fatalf

func main() {
	var cfg config.Config
	var err error
	if path := os.Getenv("FOODMESH_CONFIG_FILE"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logFatal("config: %v", err)
		return
	}
	if len(cfg.Endpoints) == 0 {
		logFatal("FOODMESH_REPLICAS must name at least one replica endpoint")
		return
	}
	if cfg.PaymentAddr.Host == "" {
		logFatal("FOODMESH_PAYMENT_ADDR is required")
		return
	}

	selfAddr := config.MustGetenv("REPLICA_ADDR", logFatal)
	self, err := wire.ParseEndpoint(selfAddr)
	if err != nil {
		logFatal("REPLICA_ADDR: %v", err)
		return
	}

	acc, err := transport.Listen(self.String())
	if err != nil {
		logFatal("listen %s: %v", self, err)
		return
	}

	st := store.New()
	mgr := ring.New(self, cfg.Endpoints, st, cfg)
	loc := locator.New(st, cfg.ProximityRadius)
	coord := coordinator.New(st, mgr, loc)

	rp := reaper.New(st, coord, cfg.TReap)
	coord.SetReaper(rp)

	payClient := payment.NewClient(cfg.PaymentAddr, 5*time.Second)
	orderSvc := orders.New(st, loc, coord, payClient, cfg.ProximityRadius, cfg.OfferTimeout, cfg.MaxOfferAttempts, cfg.OfferRadiusGrowth)
	coord.SetOrderService(orderSvc)

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)

	go func() {
		log.Printf("replica %s listening on %s", self, acc.Addr())
		if err := acc.Serve(coord.HandleConnection); err != nil {
			log.Printf("replica %s acceptor stopped: %v", self, err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	cancel()
	_ = acc.Close()
	orderSvc.Close()
	rp.Close()
	mgr.Close()
	coord.Close()
	st.Close()
	log.Printf("replica %s stopped", self)
}
