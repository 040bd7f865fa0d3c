package locator

import (
	"math"

	"github.com/foodmesh/core/internal/store"
	"github.com/foodmesh/core/internal/wire"
)

// Service answers proximity queries against the store. It carries no state
// beyond the radius threshold and a handle to the store it reads: pure
// store reads, no state of its own.
type Service struct {
	store  *store.Store
	radius float64
}

// New builds a locator Service reading st, filtering to entities within
// radius (the configured proximity_radius).
func New(st *store.Store, radius float64) *Service {
	return &Service{store: st, radius: radius}
}

// NearbyRestaurants returns every restaurant within radius of pos.
func (s *Service) NearbyRestaurants(pos wire.Position) []wire.RestaurantDTO {
	var out []wire.RestaurantDTO
	s.store.View(func(r store.Reader) {
		for _, rest := range r.Restaurants() {
			if distance(pos, rest.Position) <= s.radius {
				out = append(out, rest.DTO())
			}
		}
	})
	return out
}

// NearbyAvailableCouriers returns every Available courier within radius of
// pos.
func (s *Service) NearbyAvailableCouriers(pos wire.Position) []wire.CourierDTO {
	return s.NearbyAvailableCouriersWithin(pos, s.radius)
}

// NearbyAvailableCouriersWithin is NearbyAvailableCouriers with an explicit
// radius override, for the order service's assignment-timeout retry, which
// re-issues offers with an expanding radius and so must search wider than
// the locator's own configured default.
func (s *Service) NearbyAvailableCouriersWithin(pos wire.Position, radius float64) []wire.CourierDTO {
	var out []wire.CourierDTO
	s.store.View(func(r store.Reader) {
		for _, c := range r.Couriers() {
			if c.Status == wire.CourierAvailable && distance(pos, c.Position) <= radius {
				out = append(out, c.DTO())
			}
		}
	})
	return out
}

// distance is plain Euclidean distance over the abstract 2-D coordinates
// standing in for real geography.
func distance(a, b wire.Position) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}
