package repository

import (
	"context"

	"restaurant-pos-billing/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	// FindAdminByRestaurant returns the restaurant's admin-role account, the
	// one activated when a payment is confirmed.
	FindAdminByRestaurant(ctx context.Context, tx Tx, restaurantID string) (*model.User, error)
	SetActive(ctx context.Context, tx Tx, userID string, active bool) error
}
