package repository

import (
	"context"
	"time"

	"restaurant-pos-billing/internal/domain/model"
)

type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	// FindCurrentByRestaurant resolves the subscription that currently governs
	// the restaurant: the row named by restaurants.current_subscription_id,
	// falling back to the most recently updated row (highest id on ties) for
	// rows predating the pointer. Implementations must read fresh state, never
	// a cache.
	FindCurrentByRestaurant(ctx context.Context, tx Tx, restaurantID string) (*model.Subscription, error)
	// SetPaymentMethod switches the payment rail and resets the payment state
	// to pending in one statement.
	SetPaymentMethod(ctx context.Context, tx Tx, id string, method model.PaymentMethod) error
	SetOTP(ctx context.Context, tx Tx, id string, code string, expiresAt time.Time) error
	ClearOTP(ctx context.Context, tx Tx, id string) error
	// Confirm applies the terminal success transition. Must be a no-op when
	// the payment state is already confirmed; returns whether a row changed.
	Confirm(ctx context.Context, tx Tx, id, transactionRef string, paidAt time.Time) (bool, error)
	// Reject applies the terminal failure transition with reviewer notes.
	Reject(ctx context.Context, tx Tx, id, notes string) error
	SetStatus(ctx context.Context, tx Tx, id string, status model.SubscriptionStatus, active bool) error
}
