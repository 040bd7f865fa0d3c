// Package payment implements the payment authority's wire contract: an
// Authority that answers RequestAuthorization and RequestCharge, and a
// Client the order service uses to call it.
//
// The authority is modeled as stateful per order-id (holding
// {authorized, captured}) rather than stateless — see Authority's doc
// comment.
package payment
