// Package locator implements the Locator Services component: pure store
// reads that filter restaurants near a client and available couriers near
// a restaurant, by straight-line distance. It holds no state of its own.
package locator
