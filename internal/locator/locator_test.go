package locator

import (
	"testing"

	"github.com/foodmesh/core/internal/store"
	"github.com/foodmesh/core/internal/wire"
	"github.com/stretchr/testify/assert"
)

func newTestStore(t *testing.T) *store.Store {
	s := store.New()
	t.Cleanup(s.Close)
	return s
}

func TestNearbyRestaurants_FiltersByRadius(t *testing.T) {
	st := newTestStore(t)
	st.Transact(func(r store.Reader) []store.Mutation {
		return []store.Mutation{
			store.AddRestaurant{RestaurantID: "near", Position: wire.Position{X: 1, Y: 1}},
			store.AddRestaurant{RestaurantID: "far", Position: wire.Position{X: 100, Y: 100}},
		}
	})

	svc := New(st, 5.0)
	got := svc.NearbyRestaurants(wire.Position{X: 0, Y: 0})
	assert.Len(t, got, 1)
	assert.Equal(t, "near", got[0].RestaurantID)
}

func TestNearbyAvailableCouriers_ExcludesUnavailable(t *testing.T) {
	st := newTestStore(t)
	st.Transact(func(r store.Reader) []store.Mutation {
		return []store.Mutation{
			store.AddCourier{CourierID: "d1", Position: wire.Position{X: 1, Y: 0}},
			store.AddCourier{CourierID: "d2", Position: wire.Position{X: 1, Y: 0}},
		}
	})
	st.Transact(func(r store.Reader) []store.Mutation {
		return []store.Mutation{store.SetCourierStatus{CourierID: "d2", Status: wire.CourierDelivering}}
	})

	svc := New(st, 5.0)
	got := svc.NearbyAvailableCouriers(wire.Position{X: 0, Y: 0})
	assert.Len(t, got, 1)
	assert.Equal(t, "d1", got[0].CourierID)
}
