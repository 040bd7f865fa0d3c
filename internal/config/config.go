// Package config loads the static cluster configuration every role needs to
// start: the set of possible replica endpoints, the payment authority's
// endpoint, and the timing/probability constants the cluster runs on.
//
// A role reads its local endpoint and identity from environment variables
// (no command-line flags or arguments are parsed), and the shared
// cluster parameters from environment variables or an optional JSON file
// naming the replica set (getenv/mustGetenv reading process environment
// with defaults) — a single coordinator address doesn't generalize to a
// K-way static peer list, so a file or a comma-separated env var is used
// instead.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/foodmesh/core/internal/wire"
)

// Config holds every static parameter a replica, client, restaurant, or
// courier process needs at startup.
type Config struct {
	// Endpoints is the static set of possible replica endpoints.
	Endpoints []wire.Endpoint

	// PaymentAddr is the payment authority's endpoint.
	PaymentAddr wire.Endpoint

	// TLeader is the leader heartbeat timeout; a follower that observes no
	// Pong within this window initiates an election. Runs at roughly 3x
	// the ping interval.
	TLeader time.Duration

	// TReap is the grace window the reaper waits before removing a user
	// whose connection closed and did not reappear.
	TReap time.Duration

	// PingInterval is how often a follower pings the leader.
	PingInterval time.Duration

	// ReplicationInterval is how often a replica pulls updates from its
	// predecessor.
	ReplicationInterval time.Duration

	// DiscoveryWindow bounds how long a starting replica waits for a
	// LeaderIs reply before self-declaring leader.
	DiscoveryWindow time.Duration

	// OfferTimeout bounds how long the order service waits for a
	// DeliveryAccepted before re-issuing courier offers.
	OfferTimeout time.Duration

	// PAuth is the payment authority's authorization success probability.
	PAuth float64

	// ProximityRadius is the distance threshold the locator services use
	// to decide "nearby".
	ProximityRadius float64

	// MaxOfferAttempts bounds the re-issue-offers-with-expanding-radius
	// loop: after this many OfferTimeout windows with no courier
	// accepting, the order is cancelled with ReasonNoCourierAvailable
	// instead of retried again.
	MaxOfferAttempts int

	// OfferRadiusGrowth multiplies the search radius on each retry after
	// the first offer round, so a sparse area eventually finds a courier
	// instead of repeating the same empty search forever.
	OfferRadiusGrowth float64
}

// Defaults returns a Config with timing constants suited to the
// end-to-end delivery scenarios this cluster runs, and an empty endpoint
// set — callers must fill in Endpoints and PaymentAddr.
func Defaults() Config {
	return Config{
		TLeader:             900 * time.Millisecond,
		TReap:               5 * time.Second,
		PingInterval:        300 * time.Millisecond,
		ReplicationInterval: 250 * time.Millisecond,
		DiscoveryWindow:     500 * time.Millisecond,
		OfferTimeout:        2 * time.Second,
		PAuth:               0.9,
		ProximityRadius:     5.0,
		MaxOfferAttempts:    3,
		OfferRadiusGrowth:   2.0,
	}
}

// Load builds a Config from environment variables, falling back to
// Defaults() for anything unset. FOODMESH_REPLICAS is a comma-separated
// list of host:port endpoints; FOODMESH_PAYMENT_ADDR is the payment
// authority's host:port.
func Load() (Config, error) {
	cfg := Defaults()

	if v := os.Getenv("FOODMESH_REPLICAS"); v != "" {
		endpoints, err := parseEndpointList(v)
		if err != nil {
			return Config{}, err
		}
		cfg.Endpoints = endpoints
	}
	if v := os.Getenv("FOODMESH_PAYMENT_ADDR"); v != "" {
		ep, err := wire.ParseEndpoint(v)
		if err != nil {
			return Config{}, err
		}
		cfg.PaymentAddr = ep
	}
	if v := os.Getenv("FOODMESH_P_AUTH"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: FOODMESH_P_AUTH: %w", err)
		}
		cfg.PAuth = p
	}
	if v := os.Getenv("FOODMESH_PROXIMITY_RADIUS"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: FOODMESH_PROXIMITY_RADIUS: %w", err)
		}
		cfg.ProximityRadius = r
	}
	if v := os.Getenv("FOODMESH_T_REAP"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: FOODMESH_T_REAP: %w", err)
		}
		cfg.TReap = d
	}
	return cfg, nil
}

// LoadFile reads a JSON document describing the replica set and payment
// endpoint, for deployments that prefer a config file to environment
// variables. It starts from Defaults() the same way Load does.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var doc struct {
		Replicas    []string `json:"replicas"`
		PaymentAddr string   `json:"payment_addr"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	endpoints, err := parseEndpointList(strings.Join(doc.Replicas, ","))
	if err != nil {
		return Config{}, err
	}
	cfg.Endpoints = endpoints
	if doc.PaymentAddr != "" {
		ep, err := wire.ParseEndpoint(doc.PaymentAddr)
		if err != nil {
			return Config{}, err
		}
		cfg.PaymentAddr = ep
	}
	return cfg, nil
}

func parseEndpointList(csv string) ([]wire.Endpoint, error) {
	parts := strings.Split(csv, ",")
	endpoints := make([]wire.Endpoint, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		ep, err := wire.ParseEndpoint(p)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}

// Getenv retrieves an environment variable with a default fallback, for
// the small pieces of per-process (not per-cluster) config: the local
// endpoint and role.
func Getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// MustGetenv retrieves a required environment variable, calling logFatal
// (overridable for tests) if it is unset.
func MustGetenv(k string, logFatal func(format string, args ...any)) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	logFatal("missing required environment variable %s", k)
	return ""
}
