package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/foodmesh/core/internal/corelog"
)

// BackoffConfig controls DialWithBackoff's retry schedule.
type BackoffConfig struct {
	Base       time.Duration
	Max        time.Duration
	MaxRetries int // 0 means retry indefinitely
}

// DefaultBackoff bounds a reconnect loop with exponential growth and a
// cap: a one-shot startup registration can afford a short fixed window,
// but a ring peer or external user may reappear at any point over a
// long-running process's lifetime, so retries must not give up and must
// not hammer the network at a fixed short interval forever.
var DefaultBackoff = BackoffConfig{Base: 100 * time.Millisecond, Max: 5 * time.Second, MaxRetries: 0}

// DialWithBackoff dials addr, retrying with exponential backoff (capped at
// cfg.Max) until it succeeds, ctx is cancelled, or cfg.MaxRetries is
// exhausted. A transient transport failure is exactly what this loop
// recovers from without surfacing anything to the caller's caller.
func DialWithBackoff(ctx context.Context, addr string, cfg BackoffConfig) (*PeerChannel, error) {
	log := corelog.New("transport")
	delay := cfg.Base
	for attempt := 1; ; attempt++ {
		pc, err := Dial(addr)
		if err == nil {
			return pc, nil
		}
		log.Warn("dial failed, backing off", map[string]any{
			"addr": addr, "attempt": attempt, "delay": delay.String(), "error": err.Error(),
		})
		if cfg.MaxRetries > 0 && attempt >= cfg.MaxRetries {
			return nil, fmt.Errorf("transport: dial %s: exhausted %d retries: %w", addr, cfg.MaxRetries, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > cfg.Max {
			delay = cfg.Max
		}
	}
}
