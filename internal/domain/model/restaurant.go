package model

import "time"

// Restaurant is the billing tenant. Everything else in the POS hangs off it,
// but the billing core only cares about activation and the pointer to the
// subscription that currently governs it.
type Restaurant struct {
	ID     string // UUID
	Name   string
	Active bool
	// CurrentSubscriptionID points at the subscription row that governs this
	// restaurant. Updated in the same transaction that creates or reactivates
	// a subscription, so "current" never depends on row ordering.
	CurrentSubscriptionID *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
