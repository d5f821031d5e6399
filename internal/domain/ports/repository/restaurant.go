package repository

import (
	"context"

	"restaurant-pos-billing/internal/domain/model"
)

type RestaurantRepository interface {
	Save(ctx context.Context, tx Tx, r *model.Restaurant) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Restaurant, error)
	// SetCurrentSubscription repoints the restaurant at a new subscription
	// row. Called in the same transaction that creates the row.
	SetCurrentSubscription(ctx context.Context, tx Tx, restaurantID, subscriptionID string) error
	SetActive(ctx context.Context, tx Tx, restaurantID string, active bool) error
}
